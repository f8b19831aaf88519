// Package reply decides whether a fetched batch deserves a reply and
// produces the reply text.
package reply

import (
	"context"
	"log/slog"
	"time"

	"github.com/0xliangjiang/discord-bot-private/activity"
	"github.com/0xliangjiang/discord-bot-private/discord"
	"github.com/0xliangjiang/discord-bot-private/history"
)

const referenceLookupTimeout = 3 * time.Second

// MessageLookup fetches a single message by id; the resolver needs it
// when a referenced message falls outside the polled batch.
type MessageLookup interface {
	Message(ctx context.Context, channelID, messageID string) (*discord.Message, error)
}

// Identity is the bot account as resolved at worker start. Own-message
// detection compares the id first and falls back to the username.
type Identity struct {
	UserID   string
	Username string
}

func (id Identity) Owns(author discord.User) bool {
	if id.UserID != "" && author.ID == id.UserID {
		return true
	}
	return id.Username != "" && author.Username == id.Username
}

type ResolverOptions struct {
	ChannelID     string
	WhitelistMode bool
	Store         *history.Store
	Lookup        MessageLookup
	Identity      Identity
	Logger        *slog.Logger
}

type Resolver struct {
	channelID     string
	whitelistMode bool
	store         *history.Store
	lookup        MessageLookup
	identity      Identity
	logger        *slog.Logger
}

// Resolution is the outcome of one batch. Texts are clean message
// contents in chronological order. In whitelist mode a zero TargetUserID
// means nothing is eligible this cycle; otherwise eligibility is
// unconditional whenever Texts is non-empty.
type Resolution struct {
	Texts          []string
	TargetUserID   string
	TargetUsername string
	TargetText     string
	ReplyToID      string
}

func NewResolver(opts ResolverOptions) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		channelID:     opts.ChannelID,
		whitelistMode: opts.WhitelistMode,
		store:         opts.Store,
		lookup:        opts.Lookup,
		identity:      opts.Identity,
		logger:        logger,
	}
}

type candidate struct {
	msg discord.Message
	ts  time.Time
	ok  bool
}

// Resolve filters the latest-first batch and, in whitelist mode, picks
// the single target whose new referencing message is earliest by
// timestamp.
func (r *Resolver) Resolve(ctx context.Context, batch []discord.Message) Resolution {
	var res Resolution
	var eligible []candidate

	for _, msg := range batch {
		if msg.Content == "" || activity.Noisy(msg.Content) {
			continue
		}

		if !r.whitelistMode {
			res.Texts = append(res.Texts, msg.Content)
			if !msg.Author.Bot && res.ReplyToID == "" {
				res.ReplyToID = msg.ID
			}
			continue
		}

		whitelisted := r.store.Whitelisted(msg.Author.ID)
		if !whitelisted && !msg.Author.Bot {
			continue
		}
		res.Texts = append(res.Texts, msg.Content)
		if msg.Author.Bot || !whitelisted {
			continue
		}
		if r.store.IsProcessed(msg.Author.ID, msg.ID, msg.Content) {
			continue
		}
		if msg.Reference == nil || msg.Reference.MessageID == "" {
			r.logger.Debug("resolver_direct_message_skipped", "user_id", msg.Author.ID, "msg_id", msg.ID)
			continue
		}
		if !r.referencesMe(ctx, batch, msg.Reference.MessageID) {
			r.logger.Debug("resolver_foreign_reference_skipped", "user_id", msg.Author.ID, "msg_id", msg.ID)
			continue
		}

		c := candidate{msg: msg}
		if ts, err := discord.ParseTimestamp(msg.Timestamp); err == nil {
			c.ts, c.ok = ts, true
		}
		eligible = append(eligible, c)
	}

	// Batch arrives newest first; callers expect chronological order.
	reverse(res.Texts)

	if r.whitelistMode && len(eligible) > 0 {
		chosen := earliest(eligible)
		res.TargetUserID = chosen.msg.Author.ID
		res.TargetUsername = chosen.msg.Author.Username
		res.TargetText = chosen.msg.Content
		res.ReplyToID = chosen.msg.ID
		r.logger.Info("resolver_target_selected",
			"user_id", res.TargetUserID,
			"msg_id", res.ReplyToID,
			"eligible", len(eligible),
		)
	}
	return res
}

// referencesMe resolves the referenced message's author, preferring the
// batch over an extra fetch. A failed fetch conservatively counts as
// someone else's message.
func (r *Resolver) referencesMe(ctx context.Context, batch []discord.Message, referencedID string) bool {
	for _, m := range batch {
		if m.ID == referencedID {
			return r.identity.Owns(m.Author)
		}
	}
	if r.lookup == nil {
		return false
	}

	lookupCtx, cancel := context.WithTimeout(ctx, referenceLookupTimeout)
	defer cancel()
	msg, err := r.lookup.Message(lookupCtx, r.channelID, referencedID)
	if err != nil {
		r.logger.Warn("resolver_reference_lookup_failed", "msg_id", referencedID, "error", err.Error())
		return false
	}
	return r.identity.Owns(msg.Author)
}

// earliest prefers parseable timestamps; when none parse, arrival order
// stands.
func earliest(candidates []candidate) candidate {
	chosen := candidates[0]
	for _, c := range candidates[1:] {
		if !c.ok {
			continue
		}
		if !chosen.ok || c.ts.Before(chosen.ts) {
			chosen = c
		}
	}
	return chosen
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
