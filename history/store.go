// Package history owns the persisted per-channel conversation state. A
// Store belongs to exactly one account worker; there is no cross-worker
// sharing, so the type carries no locks. Every accepted mutation rewrites
// the channel's file in full so state and disk stay consistent across
// restarts.
package history

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/0xliangjiang/discord-bot-private/internal/fsstore"
	"github.com/0xliangjiang/discord-bot-private/internal/statepaths"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

const (
	recencyWindow    = 5 * time.Minute
	processedIDCap   = 1000
	processedIDKeep  = 500
	botDupGuardDepth = 5
	contextDepth     = 8
)

type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"type"`
	Text      string    `json:"message"`
	MessageID string    `json:"msg_id,omitempty"`
}

type UserRecord struct {
	Username     string   `json:"username"`
	Entries      []Entry  `json:"conversations"`
	ProcessedIDs []string `json:"processed_message_ids,omitempty"`
}

type Options struct {
	StateDir   string
	ChannelID  string
	MaxEntries int
	// Whitelist is the set of user ids this channel engages with; only
	// consulted when WhitelistMode is on.
	Whitelist     []string
	WhitelistMode bool
	Logger        *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

type Store struct {
	path          string
	channelID     string
	maxEntries    int
	whitelist     map[string]bool
	whitelistMode bool
	logger        *slog.Logger
	now           func() time.Time

	users map[string]*UserRecord
	// processed mirrors each record's ProcessedIDs for O(1) dedup checks.
	processed map[string]map[string]bool
	// recent guards against redelivery of the same (user, text) pair
	// without an id. In-memory only; reset on restart.
	recent map[string]time.Time
}

func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.MaxEntries < 1 {
		opts.MaxEntries = 50
	}
	whitelist := make(map[string]bool, len(opts.Whitelist))
	for _, id := range opts.Whitelist {
		id = strings.TrimSpace(id)
		if id != "" {
			whitelist[id] = true
		}
	}

	s := &Store{
		path:          statepaths.HistoryFile(opts.StateDir, opts.ChannelID),
		channelID:     opts.ChannelID,
		maxEntries:    opts.MaxEntries,
		whitelist:     whitelist,
		whitelistMode: opts.WhitelistMode,
		logger:        logger,
		now:           now,
		users:         make(map[string]*UserRecord),
		processed:     make(map[string]map[string]bool),
		recent:        make(map[string]time.Time),
	}
	s.load()
	return s
}

func (s *Store) load() {
	loaded, err := fsstore.ReadJSON(s.path, &s.users)
	if err != nil {
		s.logger.Warn("history_load_error", "channel_id", s.channelID, "error", err.Error())
		s.users = make(map[string]*UserRecord)
		return
	}
	if !loaded {
		return
	}
	for userID, rec := range s.users {
		set := make(map[string]bool, len(rec.ProcessedIDs))
		for _, id := range rec.ProcessedIDs {
			set[id] = true
		}
		s.processed[userID] = set
	}
	s.logger.Info("history_loaded", "channel_id", s.channelID, "users", len(s.users))
}

func (s *Store) persist() {
	if err := fsstore.WriteJSONAtomic(s.path, s.users); err != nil {
		s.logger.Error("history_persist_error", "channel_id", s.channelID, "error", err.Error())
	}
}

// Whitelisted reports whether the store engages with userID. With
// whitelist mode off every user passes.
func (s *Store) Whitelisted(userID string) bool {
	if !s.whitelistMode {
		return true
	}
	return s.whitelist[userID]
}

// IsProcessed reports whether (userID, msgID, text) would be rejected as a
// duplicate, without mutating anything. The eligibility resolver uses it
// to find new messages before committing the selected target.
func (s *Store) IsProcessed(userID, msgID, text string) bool {
	if msgID != "" && s.processed[userID][msgID] {
		return true
	}
	seenAt, ok := s.recent[recencyKey(userID, text)]
	return ok && s.now().Sub(seenAt) <= recencyWindow
}

// AddUserMessage appends a user entry and reports whether it was new.
// Rejections are silent: non-whitelisted user, already-processed id, or
// the same (user, text) pair accepted within the last five minutes.
func (s *Store) AddUserMessage(userID, username, text, msgID string) bool {
	if !s.Whitelisted(userID) {
		return false
	}

	rec, ok := s.users[userID]
	if !ok {
		rec = &UserRecord{Username: username}
		s.users[userID] = rec
		s.processed[userID] = make(map[string]bool)
	}
	rec.Username = username

	if msgID != "" && s.processed[userID][msgID] {
		return false
	}

	now := s.now()
	s.pruneRecent(now)
	key := recencyKey(userID, text)
	if seenAt, ok := s.recent[key]; ok && now.Sub(seenAt) <= recencyWindow {
		return false
	}

	rec.Entries = append(rec.Entries, Entry{
		Timestamp: now,
		Role:      RoleUser,
		Text:      text,
		MessageID: msgID,
	})
	if msgID != "" {
		rec.ProcessedIDs = append(rec.ProcessedIDs, msgID)
		s.processed[userID][msgID] = true
	}
	s.recent[key] = now

	s.trim(userID, rec)
	s.persist()
	s.logger.Info("history_user_message", "channel_id", s.channelID, "user_id", userID, "msg_id", msgID)
	return true
}

// AddBotReply appends a bot entry unless the user is unknown or the text
// repeats one of the user's last few bot replies.
func (s *Store) AddBotReply(userID, text string) {
	rec, ok := s.users[userID]
	if !ok || !s.Whitelisted(userID) {
		return
	}

	seen := 0
	for i := len(rec.Entries) - 1; i >= 0 && seen < botDupGuardDepth; i-- {
		if rec.Entries[i].Role != RoleBot {
			continue
		}
		seen++
		if rec.Entries[i].Text == text {
			s.logger.Debug("history_duplicate_reply_skipped", "channel_id", s.channelID, "user_id", userID)
			return
		}
	}

	rec.Entries = append(rec.Entries, Entry{
		Timestamp: s.now(),
		Role:      RoleBot,
		Text:      text,
	})
	s.trim(userID, rec)
	s.persist()
}

// LatestUserText returns the user's most recent stored message.
func (s *Store) LatestUserText(userID string) (string, bool) {
	rec, ok := s.users[userID]
	if !ok {
		return "", false
	}
	for i := len(rec.Entries) - 1; i >= 0; i-- {
		if rec.Entries[i].Role == RoleUser {
			return rec.Entries[i].Text, true
		}
	}
	return "", false
}

// ContextFor builds the natural-language transcript handed to the
// completion prompt: the last few entries plus an explicit restatement of
// the user's latest message. Empty when whitelist mode is off or the user
// is unknown.
func (s *Store) ContextFor(userID string) string {
	if !s.whitelistMode {
		return ""
	}
	rec, ok := s.users[userID]
	if !ok || len(rec.Entries) == 0 {
		return ""
	}

	entries := rec.Entries
	if len(entries) > contextDepth {
		entries = entries[len(entries)-contextDepth:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Conversation with %s so far:\n", rec.Username)
	for _, e := range entries {
		if e.Role == RoleUser {
			fmt.Fprintf(&b, "%s: %s\n", rec.Username, e.Text)
		} else {
			fmt.Fprintf(&b, "me: %s\n", e.Text)
		}
	}
	if latest, ok := s.LatestUserText(userID); ok {
		fmt.Fprintf(&b, "\n%s just said: %s\n", rec.Username, latest)
	}
	return b.String()
}

func (s *Store) trim(userID string, rec *UserRecord) {
	if len(rec.Entries) > s.maxEntries {
		rec.Entries = append([]Entry(nil), rec.Entries[len(rec.Entries)-s.maxEntries:]...)
	}
	if len(rec.ProcessedIDs) > processedIDCap {
		kept := append([]string(nil), rec.ProcessedIDs[len(rec.ProcessedIDs)-processedIDKeep:]...)
		rec.ProcessedIDs = kept
		set := make(map[string]bool, len(kept))
		for _, id := range kept {
			set[id] = true
		}
		s.processed[userID] = set
	}
}

func (s *Store) pruneRecent(now time.Time) {
	for key, seenAt := range s.recent {
		if now.Sub(seenAt) > recencyWindow {
			delete(s.recent, key)
		}
	}
}

func recencyKey(userID, text string) string {
	return userID + ":" + text
}
