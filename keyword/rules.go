package keyword

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type MatchType string

const (
	MatchExact    MatchType = "exact_match"
	MatchContains MatchType = "contains_match"
	MatchRegex    MatchType = "regex_match"
)

var defaultPriority = []MatchType{MatchExact, MatchContains, MatchRegex}

type Settings struct {
	Enabled      bool
	RandomReply  bool
	FallbackToAI bool
	Priority     []MatchType
}

// rule keeps one pattern with its candidate replies. Rules stay in file
// order; within a bucket the first hit wins.
type rule struct {
	pattern string
	replies []string
	re      *regexp.Regexp
}

type ruleFile struct {
	Settings struct {
		Enabled      *bool    `json:"enable_keyword_responses" yaml:"enable_keyword_responses"`
		Priority     []string `json:"match_priority" yaml:"match_priority"`
		RandomReply  *bool    `json:"random_response" yaml:"random_response"`
		FallbackToAI *bool    `json:"fallback_to_ai" yaml:"fallback_to_ai"`
	} `json:"settings" yaml:"settings"`
	Rules map[string]struct {
		Responses json.RawMessage `json:"responses" yaml:"-"`
	} `json:"rules" yaml:"-"`
}

// Load reads a rule file (.json, .yaml or .yml by extension). A missing
// file yields a disabled matcher; a file that does not match the expected
// shape is an error so startup fails fast instead of deferring to lookup
// time.
func Load(path string, logger *slog.Logger) (*Matcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("keyword_rules_missing", "path", path)
			return &Matcher{logger: logger}, nil
		}
		return nil, fmt.Errorf("read keyword rules %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(data, path, logger)
	default:
		return loadJSON(data, path, logger)
	}
}

func loadJSON(data []byte, path string, logger *slog.Logger) (*Matcher, error) {
	var file ruleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("keyword rules %s: %w", path, err)
	}

	m := newMatcher(settingsFromFile(file), logger)
	for matchType, bucket := range file.Rules {
		mt := MatchType(matchType)
		if !knownMatchType(mt) {
			return nil, fmt.Errorf("keyword rules %s: unknown match type %q", path, matchType)
		}
		if len(bucket.Responses) == 0 {
			continue
		}
		rules, err := decodeOrderedJSONRules(bucket.Responses)
		if err != nil {
			return nil, fmt.Errorf("keyword rules %s (%s): %w", path, matchType, err)
		}
		m.addRules(mt, rules)
	}
	return m, nil
}

// decodeOrderedJSONRules walks the object token by token so file order is
// preserved; json.Unmarshal into a map would lose it.
func decodeOrderedJSONRules(raw json.RawMessage) ([]rule, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("responses must be an object")
	}

	var rules []rule
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		pattern, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("response key must be a string")
		}
		var replies []string
		if err := dec.Decode(&replies); err != nil {
			return nil, fmt.Errorf("replies for %q: %w", pattern, err)
		}
		rules = append(rules, rule{pattern: pattern, replies: replies})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return rules, nil
}

func loadYAML(data []byte, path string, logger *slog.Logger) (*Matcher, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("keyword rules %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("keyword rules %s: %w", path, err)
	}

	m := newMatcher(settingsFromFile(file), logger)
	rulesNode := findMappingValue(&doc, "rules")
	if rulesNode == nil {
		return m, nil
	}
	if rulesNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("keyword rules %s: rules must be a mapping", path)
	}
	for i := 0; i+1 < len(rulesNode.Content); i += 2 {
		mt := MatchType(rulesNode.Content[i].Value)
		if !knownMatchType(mt) {
			return nil, fmt.Errorf("keyword rules %s: unknown match type %q", path, rulesNode.Content[i].Value)
		}
		responses := findMappingValue(rulesNode.Content[i+1], "responses")
		if responses == nil {
			continue
		}
		if responses.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("keyword rules %s (%s): responses must be a mapping", path, mt)
		}
		var rules []rule
		for j := 0; j+1 < len(responses.Content); j += 2 {
			var replies []string
			if err := responses.Content[j+1].Decode(&replies); err != nil {
				return nil, fmt.Errorf("keyword rules %s (%s): replies for %q: %w", path, mt, responses.Content[j].Value, err)
			}
			rules = append(rules, rule{pattern: responses.Content[j].Value, replies: replies})
		}
		m.addRules(mt, rules)
	}
	return m, nil
}

// findMappingValue returns the value node for key, descending through a
// document node when needed. yaml.Node mappings keep file order.
func findMappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return findMappingValue(n.Content[0], key)
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func settingsFromFile(file ruleFile) Settings {
	s := Settings{
		Enabled:      true,
		RandomReply:  true,
		FallbackToAI: true,
		Priority:     defaultPriority,
	}
	if file.Settings.Enabled != nil {
		s.Enabled = *file.Settings.Enabled
	}
	if file.Settings.RandomReply != nil {
		s.RandomReply = *file.Settings.RandomReply
	}
	if file.Settings.FallbackToAI != nil {
		s.FallbackToAI = *file.Settings.FallbackToAI
	}
	if len(file.Settings.Priority) > 0 {
		priority := make([]MatchType, 0, len(file.Settings.Priority))
		for _, p := range file.Settings.Priority {
			priority = append(priority, MatchType(p))
		}
		s.Priority = priority
	}
	return s
}

func knownMatchType(mt MatchType) bool {
	switch mt {
	case MatchExact, MatchContains, MatchRegex:
		return true
	}
	return false
}
