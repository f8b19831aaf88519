// Package config loads all runtime settings eagerly into typed structs at
// startup. Nothing reads viper after boot; the orchestrator and workers
// receive a fully resolved Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrMissingAIKey  = errors.New("config: missing ai.api_key")
	ErrNoAccounts    = errors.New("config: no accounts configured")
	ErrMissingToken  = errors.New("config: account missing token")
	ErrMissingChanID = errors.New("config: account missing channel_id")
)

// Account is one Discord identity bound to one channel. Immutable after
// load; owned by its worker.
type Account struct {
	Name      string   `json:"name"`
	Token     string   `json:"token"`
	ChannelID string   `json:"channel_id"`
	Whitelist []string `json:"whitelist_users,omitempty"`
}

// Settings are the knobs shared by every account. Durations are kept as
// plain numbers so the settings file stays hand-editable.
type Settings struct {
	AIAPIKey       string `json:"ai_api_key"`
	AIBaseURL      string `json:"ai_base_url"`
	AIModel        string `json:"ai_model"`
	ReplyLanguage  string `json:"reply_language"`
	PromptTemplate string `json:"prompt_template"`
	// CustomTemplateForWhitelist switches whitelist-mode prompts from the
	// built-in template to PromptTemplate.
	CustomTemplateForWhitelist bool `json:"custom_template_for_whitelist"`

	MessageLimit  int `json:"message_limit"`
	ReplyDelayMin int `json:"reply_delay_min"`
	ReplyDelayMax int `json:"reply_delay_max"`
	MaxWorkers    int `json:"max_workers"`

	WhitelistMode    bool `json:"whitelist_mode"`
	HistoryMaxLength int  `json:"history_max_length"`
	ClearOnStart     bool `json:"clear_on_start"`

	ActivityEnabled       bool `json:"activity_enabled"`
	ActivityWindowMinutes int  `json:"activity_window_minutes"`
	MinActiveUsers        int  `json:"min_active_users"`

	KeywordFile    string `json:"keyword_file"`
	StateDir       string `json:"state_dir"`
	DiscordBaseURL string `json:"discord_base_url"`
}

type Config struct {
	Settings Settings
	Accounts []Account
}

func (s Settings) DelayRange() (time.Duration, time.Duration) {
	minDelay := time.Duration(s.ReplyDelayMin) * time.Second
	maxDelay := time.Duration(s.ReplyDelayMax) * time.Second
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return minDelay, maxDelay
}

func (s Settings) ActivityWindow() time.Duration {
	return time.Duration(s.ActivityWindowMinutes) * time.Minute
}

// FromViper resolves the full configuration and fails fast on anything
// the workers would otherwise trip over mid-cycle.
func FromViper() (Config, error) {
	settings := Settings{
		AIAPIKey:                   viper.GetString("ai.api_key"),
		AIBaseURL:                  viper.GetString("ai.base_url"),
		AIModel:                    viper.GetString("ai.model"),
		ReplyLanguage:              viper.GetString("reply.language"),
		PromptTemplate:             viper.GetString("reply.prompt_template"),
		CustomTemplateForWhitelist: viper.GetBool("reply.custom_template_for_whitelist"),
		MessageLimit:               viper.GetInt("reply.message_limit"),
		ReplyDelayMin:              viper.GetInt("reply.delay_min"),
		ReplyDelayMax:              viper.GetInt("reply.delay_max"),
		MaxWorkers:                 viper.GetInt("max_workers"),
		WhitelistMode:              viper.GetBool("whitelist.enabled"),
		HistoryMaxLength:           viper.GetInt("history.max_length"),
		ClearOnStart:               viper.GetBool("history.clear_on_start"),
		ActivityEnabled:            viper.GetBool("activity.enabled"),
		ActivityWindowMinutes:      viper.GetInt("activity.window_minutes"),
		MinActiveUsers:             viper.GetInt("activity.min_users"),
		KeywordFile:                viper.GetString("keyword.file"),
		StateDir:                   viper.GetString("state_dir"),
		DiscordBaseURL:             viper.GetString("discord.base_url"),
	}

	accounts, err := resolveAccounts()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{Settings: settings, Accounts: accounts}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Settings.AIAPIKey) == "" {
		return ErrMissingAIKey
	}
	if len(c.Accounts) == 0 {
		return ErrNoAccounts
	}
	for i, acct := range c.Accounts {
		if strings.TrimSpace(acct.Token) == "" {
			return fmt.Errorf("%w: account %d (%s)", ErrMissingToken, i+1, acct.Name)
		}
		if strings.TrimSpace(acct.ChannelID) == "" {
			return fmt.Errorf("%w: account %d (%s)", ErrMissingChanID, i+1, acct.Name)
		}
	}
	return nil
}

func SetDefaults() {
	viper.SetDefault("ai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("ai.model", "gpt-4o-mini")
	viper.SetDefault("reply.language", "English")
	viper.SetDefault("reply.message_limit", 20)
	viper.SetDefault("reply.delay_min", 300)
	viper.SetDefault("reply.delay_max", 350)
	viper.SetDefault("max_workers", 4)
	viper.SetDefault("whitelist.enabled", false)
	viper.SetDefault("history.max_length", 50)
	viper.SetDefault("history.clear_on_start", false)
	viper.SetDefault("activity.enabled", true)
	viper.SetDefault("activity.window_minutes", 10)
	viper.SetDefault("activity.min_users", 5)
	viper.SetDefault("keyword.file", "keyword_responses.json")
	viper.SetDefault("state_dir", "data")
	viper.SetDefault("discord.base_url", "")
	viper.SetDefault("accounts.file", "accounts.json")
}
