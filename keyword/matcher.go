// Package keyword evaluates ordered reply rules against incoming text
// before any completion request is made.
package keyword

import (
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
)

// Matcher is immutable after Load and safe to share across workers.
type Matcher struct {
	settings Settings
	buckets  map[MatchType][]rule
	logger   *slog.Logger
}

func newMatcher(settings Settings, logger *slog.Logger) *Matcher {
	return &Matcher{
		settings: settings,
		buckets:  make(map[MatchType][]rule),
		logger:   logger,
	}
}

func (m *Matcher) addRules(mt MatchType, rules []rule) {
	for _, r := range rules {
		if mt == MatchRegex {
			re, err := regexp.Compile("(?i)" + r.pattern)
			if err != nil {
				m.logger.Warn("keyword_regex_invalid", "pattern", r.pattern, "error", err.Error())
				continue
			}
			r.re = re
		}
		m.buckets[mt] = append(m.buckets[mt], r)
	}
}

func (m *Matcher) Enabled() bool {
	return m != nil && m.settings.Enabled && len(m.buckets) > 0
}

func (m *Matcher) FallbackToAI() bool {
	return m == nil || m.settings.FallbackToAI
}

func (m *Matcher) RuleCount() int {
	n := 0
	for _, bucket := range m.buckets {
		n += len(bucket)
	}
	return n
}

// Match normalizes text and evaluates match types in priority order,
// returning the selected reply on the first rule that fires.
func (m *Matcher) Match(text string) (string, bool) {
	if !m.Enabled() {
		return "", false
	}
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}

	for _, mt := range m.settings.Priority {
		for _, r := range m.buckets[mt] {
			hit := false
			switch mt {
			case MatchExact:
				hit = text == strings.ToLower(r.pattern)
			case MatchContains:
				hit = strings.Contains(text, strings.ToLower(r.pattern))
			case MatchRegex:
				hit = r.re != nil && r.re.MatchString(text)
			}
			if !hit {
				continue
			}
			reply, ok := m.selectReply(r.replies)
			if !ok {
				continue
			}
			m.logger.Debug("keyword_match", "match_type", string(mt), "pattern", r.pattern)
			return reply, true
		}
	}
	return "", false
}

func (m *Matcher) selectReply(replies []string) (string, bool) {
	if len(replies) == 0 {
		return "", false
	}
	if m.settings.RandomReply {
		return replies[rand.Intn(len(replies))], true
	}
	return replies[0], true
}
