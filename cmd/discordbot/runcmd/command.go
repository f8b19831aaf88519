// Package runcmd wires configuration into the orchestrator and runs it
// until an interrupt.
package runcmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0xliangjiang/discord-bot-private/bot"
	"github.com/0xliangjiang/discord-bot-private/config"
	"github.com/0xliangjiang/discord-bot-private/internal/logutil"
	"github.com/0xliangjiang/discord-bot-private/providers/openai"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reply workers for every configured account",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.New(logutil.Config{
				Level:     viper.GetString("logging.level"),
				Format:    viper.GetString("logging.format"),
				AddSource: viper.GetBool("logging.add_source"),
			})
			if err != nil {
				return err
			}

			cfg, err := config.FromViper()
			if err != nil {
				return err
			}

			llmClient := openai.New(cfg.Settings.AIBaseURL, cfg.Settings.AIAPIKey, 0)
			orch, err := bot.NewOrchestrator(cfg, llmClient, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return orch.Run(ctx)
		},
	}

	cmd.Flags().String("accounts-file", "", "Path to the accounts roster JSON.")
	cmd.Flags().String("keyword-file", "", "Path to the keyword rules file (JSON or YAML).")
	cmd.Flags().String("state-dir", "", "Directory for per-channel history files.")
	_ = viper.BindPFlag("accounts.file", cmd.Flags().Lookup("accounts-file"))
	_ = viper.BindPFlag("keyword.file", cmd.Flags().Lookup("keyword-file"))
	_ = viper.BindPFlag("state_dir", cmd.Flags().Lookup("state-dir"))

	return cmd
}
