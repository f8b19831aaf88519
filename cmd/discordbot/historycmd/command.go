// Package historycmd exposes offline maintenance of the per-channel
// history files. Run it only while the daemon is stopped; the store
// assumes single ownership of each file.
package historycmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0xliangjiang/discord-bot-private/history"
	"github.com/0xliangjiang/discord-bot-private/internal/logutil"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and maintain conversation history files",
	}

	cmd.PersistentFlags().String("channel-id", "", "Channel id of the history file.")
	cmd.PersistentFlags().String("state-dir", "", "Directory holding the history files.")
	_ = viper.BindPFlag("history.channel_id", cmd.PersistentFlags().Lookup("channel-id"))
	_ = viper.BindPFlag("state_dir", cmd.PersistentFlags().Lookup("state-dir"))

	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newClearCmd())
	return cmd
}

func openStore() (*history.Store, error) {
	channelID := viper.GetString("history.channel_id")
	if channelID == "" {
		return nil, fmt.Errorf("history: --channel-id is required")
	}
	logger, err := logutil.New(logutil.Config{
		Level:  viper.GetString("logging.level"),
		Format: viper.GetString("logging.format"),
	})
	if err != nil {
		return nil, err
	}
	return history.NewStore(history.Options{
		StateDir:  viper.GetString("state_dir"),
		ChannelID: channelID,
		Logger:    logger,
	}), nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print per-user entry counts for one channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			stats := store.Stats()

			userIDs := make([]string, 0, len(stats))
			for id := range stats {
				userIDs = append(userIDs, id)
			}
			sort.Strings(userIDs)

			for _, id := range userIDs {
				st := stats[id]
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %d entries (%d user, %d bot)\n",
					st.Username, id, st.TotalEntries, st.UserMessages, st.BotReplies)
			}
			if len(userIDs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no history")
			}
			return nil
		},
	}
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove duplicate entries from one channel's history",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			removed := store.RemoveDuplicates()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d duplicate entries\n", removed)
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete history for one user, or the whole channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString("user")
			if userID != "" {
				store.ClearUser(userID)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared history for user %s\n", userID)
				return nil
			}
			store.ClearAll()
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "cleared channel history")
			return nil
		},
	}
	cmd.Flags().String("user", "", "Clear only this user id.")
	return cmd
}
