package bot

import (
	"context"
	"log/slog"

	"github.com/0xliangjiang/discord-bot-private/config"
	"github.com/0xliangjiang/discord-bot-private/internal/statepaths"
	"github.com/0xliangjiang/discord-bot-private/internal/workerpool"
	"github.com/0xliangjiang/discord-bot-private/keyword"
	"github.com/0xliangjiang/discord-bot-private/llm"
)

// Orchestrator owns the shared pieces (keyword matcher, AI client) and
// fans one worker out per account on a bounded pool.
type Orchestrator struct {
	cfg     config.Config
	matcher *keyword.Matcher
	client  llm.Client
	logger  *slog.Logger
}

// NewOrchestrator validates the configuration and loads the keyword
// rules. A malformed rule file aborts startup rather than surfacing as a
// silent no-match later.
func NewOrchestrator(cfg config.Config, llmClient llm.Client, logger *slog.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	matcher, err := keyword.Load(cfg.Settings.KeywordFile, logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:     cfg,
		matcher: matcher,
		client:  llmClient,
		logger:  logger,
	}, nil
}

// Run blocks until ctx is cancelled and every worker has drained.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.cfg.Settings.ClearOnStart {
		n, err := statepaths.PurgeHistoryFiles(o.cfg.Settings.StateDir)
		if err != nil {
			o.logger.Warn("history_purge_error", "error", err.Error())
		} else if n > 0 {
			o.logger.Info("history_purged", "files", n)
		}
	}

	size := o.cfg.Settings.MaxWorkers
	if len(o.cfg.Accounts) < size {
		size = len(o.cfg.Accounts)
	}
	pool := workerpool.New(size)

	for _, acct := range o.cfg.Accounts {
		worker := NewWorker(acct, o.cfg.Settings, o.matcher, o.client, o.logger)
		pool.Go(ctx, worker.Run)
	}
	o.logger.Info("orchestrator_started",
		"accounts", len(o.cfg.Accounts),
		"pool_size", size,
		"whitelist_mode", o.cfg.Settings.WhitelistMode,
		"keyword_rules", o.matcher.RuleCount(),
	)

	pool.Wait()
	o.logger.Info("orchestrator_stopped")
	return nil
}
