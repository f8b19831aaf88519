// Package activity gates reply attempts on recent channel liveliness.
package activity

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/0xliangjiang/discord-bot-private/discord"
)

// noisyContent matches mention/link/command-looking text that should not
// count toward activity and is never replied to.
var noisyContent = regexp.MustCompile(`[<>@http?0x]`)

// Noisy reports whether content looks like a mention, link or command.
func Noisy(content string) bool {
	return noisyContent.MatchString(content)
}

type Monitor struct {
	enabled  bool
	window   time.Duration
	minUsers int
	logger   *slog.Logger
	now      func() time.Time
}

type MonitorOptions struct {
	Enabled  bool
	Window   time.Duration
	MinUsers int
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewMonitor(opts MonitorOptions) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Window <= 0 {
		opts.Window = 10 * time.Minute
	}
	if opts.MinUsers < 1 {
		opts.MinUsers = 1
	}
	return &Monitor{
		enabled:  opts.Enabled,
		window:   opts.Window,
		minUsers: opts.MinUsers,
		logger:   logger,
		now:      now,
	}
}

// Assess counts distinct non-bot authors of clean messages inside the
// trailing window. Messages with unparseable timestamps are skipped, not
// fatal.
func (m *Monitor) Assess(batch []discord.Message) (bool, string) {
	if !m.enabled {
		return true, "activity monitor disabled"
	}

	cutoff := m.now().UTC().Add(-m.window)
	authors := make(map[string]bool)
	counted := 0

	for _, msg := range batch {
		if msg.Author.Bot || msg.Content == "" || Noisy(msg.Content) {
			continue
		}
		ts, err := discord.ParseTimestamp(msg.Timestamp)
		if err != nil {
			m.logger.Warn("activity_bad_timestamp", "msg_id", msg.ID, "timestamp", msg.Timestamp)
			continue
		}
		if ts.Before(cutoff) {
			continue
		}
		authors[msg.Author.ID] = true
		counted++
	}

	active := len(authors) >= m.minUsers
	reason := fmt.Sprintf("%d/%d active users, %d messages within %s",
		len(authors), m.minUsers, counted, m.window)
	return active, reason
}
