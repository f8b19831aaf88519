// Package bot runs the per-account polling loops and their lifecycle.
package bot

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/0xliangjiang/discord-bot-private/activity"
	"github.com/0xliangjiang/discord-bot-private/config"
	"github.com/0xliangjiang/discord-bot-private/discord"
	"github.com/0xliangjiang/discord-bot-private/history"
	"github.com/0xliangjiang/discord-bot-private/internal/retryutil"
	"github.com/0xliangjiang/discord-bot-private/keyword"
	"github.com/0xliangjiang/discord-bot-private/llm"
	"github.com/0xliangjiang/discord-bot-private/reply"
)

const (
	fetchFailureDelay  = 60 * time.Second
	identityAttempts   = 3
	identityRetryDelay = 2 * time.Second
	identityTimeout    = 5 * time.Second
)

// Worker drives one account against one channel. Each cycle: fetch,
// activity gate, eligibility, generate, send, randomized delay. The loop
// only exits when ctx is cancelled; every error path logs and continues.
type Worker struct {
	account   config.Account
	settings  config.Settings
	client    *discord.Client
	store     *history.Store
	monitor   *activity.Monitor
	generator *reply.Generator
	logger    *slog.Logger
}

func NewWorker(acct config.Account, settings config.Settings, matcher *keyword.Matcher, llmClient llm.Client, logger *slog.Logger) *Worker {
	logger = logger.With("account", acct.Name, "channel_id", acct.ChannelID)

	client := discord.NewClient(&http.Client{Timeout: 30 * time.Second}, settings.DiscordBaseURL, acct.Token)
	store := history.NewStore(history.Options{
		StateDir:      settings.StateDir,
		ChannelID:     acct.ChannelID,
		MaxEntries:    settings.HistoryMaxLength,
		Whitelist:     acct.Whitelist,
		WhitelistMode: settings.WhitelistMode,
		Logger:        logger,
	})
	monitor := activity.NewMonitor(activity.MonitorOptions{
		Enabled:  settings.ActivityEnabled,
		Window:   settings.ActivityWindow(),
		MinUsers: settings.MinActiveUsers,
		Logger:   logger,
	})
	generator := reply.NewGenerator(reply.GeneratorOptions{
		Matcher:           matcher,
		Client:            llmClient,
		Store:             store,
		Model:             settings.AIModel,
		Language:          settings.ReplyLanguage,
		WhitelistMode:     settings.WhitelistMode,
		CustomTemplate:    settings.PromptTemplate,
		UseCustomTemplate: settings.CustomTemplateForWhitelist,
		Logger:            logger,
	})

	return &Worker{
		account:   acct,
		settings:  settings,
		client:    client,
		store:     store,
		monitor:   monitor,
		generator: generator,
		logger:    logger,
	}
}

func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("bot_start")

	identity := w.resolveIdentity(ctx)
	resolver := reply.NewResolver(reply.ResolverOptions{
		ChannelID:     w.account.ChannelID,
		WhitelistMode: w.settings.WhitelistMode,
		Store:         w.store,
		Lookup:        w.client,
		Identity:      identity,
		Logger:        w.logger,
	})

	for {
		if ctx.Err() != nil {
			w.logger.Info("bot_stop", "reason", "context_canceled")
			return
		}
		if !w.cycle(ctx, resolver) {
			w.logger.Info("bot_stop", "reason", "context_canceled")
			return
		}
	}
}

// cycle runs one fetch/gate/reply pass and the trailing delay. It
// returns false when the stop signal interrupted a sleep.
func (w *Worker) cycle(ctx context.Context, resolver *reply.Resolver) bool {
	batch, err := w.client.Messages(ctx, w.account.ChannelID, w.settings.MessageLimit)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.logger.Error("discord_fetch_error", "error", err.Error())
		return retryutil.Sleep(ctx, fetchFailureDelay)
	}

	active, reason := w.monitor.Assess(batch)
	w.logger.Info("activity_check", "active", active, "reason", reason)
	if !active {
		return w.delay(ctx)
	}

	res := resolver.Resolve(ctx, batch)
	cycleID := uuid.NewString()

	if w.settings.WhitelistMode {
		if res.TargetUserID == "" {
			w.logger.Debug("cycle_no_target", "cycle_id", cycleID)
			return w.delay(ctx)
		}
		if !w.store.AddUserMessage(res.TargetUserID, res.TargetUsername, res.TargetText, res.ReplyToID) {
			w.logger.Debug("cycle_target_already_processed", "cycle_id", cycleID, "msg_id", res.ReplyToID)
			return w.delay(ctx)
		}
		rep := w.generator.Generate(ctx, res.Texts, res.TargetUserID)
		if rep.Text != "" {
			w.send(ctx, rep, res.ReplyToID, cycleID)
		} else {
			w.logger.Warn("cycle_no_reply_generated", "cycle_id", cycleID)
		}
		return w.delay(ctx)
	}

	if len(res.Texts) > 0 {
		rep := w.generator.Generate(ctx, res.Texts, "")
		if rep.Text != "" {
			// Keyword hits thread under the newest non-bot message;
			// plain completions post directly to the channel.
			replyTo := ""
			if rep.Keyword {
				replyTo = res.ReplyToID
			}
			w.send(ctx, rep, replyTo, cycleID)
		}
	}
	return w.delay(ctx)
}

func (w *Worker) send(ctx context.Context, rep reply.Reply, replyToID, cycleID string) {
	if err := w.client.Send(ctx, w.account.ChannelID, rep.Text, replyToID); err != nil {
		w.logger.Error("discord_send_error", "cycle_id", cycleID, "error", err.Error())
		return
	}
	w.logger.Info("reply_sent",
		"cycle_id", cycleID,
		"keyword", rep.Keyword,
		"reply_to", replyToID,
		"length", len(rep.Text),
	)
}

// resolveIdentity fetches the account's own user. Failure is tolerated:
// the worker keeps running with an empty identity, which makes every
// reference conservatively count as someone else's message.
func (w *Worker) resolveIdentity(ctx context.Context) reply.Identity {
	var me *discord.User
	err := retryutil.Do(ctx, identityAttempts, identityRetryDelay, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, identityTimeout)
		defer cancel()
		u, err := w.client.Me(reqCtx)
		if err != nil {
			return err
		}
		me = u
		return nil
	})
	if err != nil {
		w.logger.Warn("bot_identity_unresolved", "error", err.Error())
		return reply.Identity{}
	}
	w.logger.Info("bot_identity", "user_id", me.ID, "username", me.Username)
	return reply.Identity{UserID: me.ID, Username: me.Username}
}

func (w *Worker) delay(ctx context.Context) bool {
	minDelay, maxDelay := w.settings.DelayRange()
	d := minDelay
	if maxDelay > minDelay {
		d += time.Duration(rand.Int63n(int64(maxDelay-minDelay) + 1))
	}
	w.logger.Info("cycle_delay", "seconds", int(d.Seconds()))
	return retryutil.Sleep(ctx, d)
}
