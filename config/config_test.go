package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() Config {
	return Config{
		Settings: Settings{AIAPIKey: "sk-test"},
		Accounts: []Account{{Name: "a", Token: "tok", ChannelID: "c1"}},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cfg := validConfig()
	cfg.Settings.AIAPIKey = " "
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAIKey) {
		t.Fatalf("error = %v, want ErrMissingAIKey", err)
	}

	cfg = validConfig()
	cfg.Accounts = nil
	if err := cfg.Validate(); !errors.Is(err, ErrNoAccounts) {
		t.Fatalf("error = %v, want ErrNoAccounts", err)
	}

	cfg = validConfig()
	cfg.Accounts[0].Token = ""
	if err := cfg.Validate(); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("error = %v, want ErrMissingToken", err)
	}

	cfg = validConfig()
	cfg.Accounts[0].ChannelID = ""
	if err := cfg.Validate(); !errors.Is(err, ErrMissingChanID) {
		t.Fatalf("error = %v, want ErrMissingChanID", err)
	}
}

func TestDelayRangeClamped(t *testing.T) {
	t.Parallel()

	s := Settings{ReplyDelayMin: 300, ReplyDelayMax: 200}
	minDelay, maxDelay := s.DelayRange()
	if minDelay != 300*time.Second || maxDelay != 300*time.Second {
		t.Fatalf("DelayRange() = %v, %v", minDelay, maxDelay)
	}
}

func TestAccountsRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "accounts.json")
	in := []Account{
		{Name: "first", Token: "t1", ChannelID: "c1", Whitelist: []string{"u1", "u2"}},
		{Name: "second", Token: "t2", ChannelID: "c2"},
	}
	if err := SaveAccounts(path, in); err != nil {
		t.Fatalf("SaveAccounts() error = %v", err)
	}

	out, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("LoadAccounts() error = %v", err)
	}
	if len(out) != 2 || out[0].Name != "first" || out[1].ChannelID != "c2" {
		t.Fatalf("LoadAccounts() = %+v", out)
	}
	if len(out[0].Whitelist) != 2 {
		t.Fatalf("whitelist = %v", out[0].Whitelist)
	}
}

func TestLoadAccountsMissingFile(t *testing.T) {
	t.Parallel()

	out, err := LoadAccounts(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadAccounts() error = %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("LoadAccounts() = %+v, want empty", out)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	in := Settings{AIAPIKey: "sk", AIModel: "m1", MessageLimit: 7, WhitelistMode: true}
	if err := SaveSettings(path, in); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	out, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if out != in {
		t.Fatalf("LoadSettings() = %+v, want %+v", out, in)
	}
}

func TestFromViperInlineAccounts(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
	SetDefaults()
	viper.Set("ai.api_key", "sk-test")
	viper.Set("accounts.json", "[\n  {\"name\": \"a\", \"token\": \"tok\", \"channel_id\": \"c1\"}\n]")
	viper.Set("accounts.file", "")

	cfg, err := FromViper()
	if err != nil {
		t.Fatalf("FromViper() error = %v", err)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0].ChannelID != "c1" {
		t.Fatalf("Accounts = %+v", cfg.Accounts)
	}
	if cfg.Settings.MessageLimit != 20 || cfg.Settings.ReplyDelayMin != 300 {
		t.Fatalf("defaults not applied: %+v", cfg.Settings)
	}
}

func TestFromViperSingleAccountFallback(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
	SetDefaults()
	viper.Set("ai.api_key", "sk-test")
	viper.Set("accounts.file", "")
	viper.Set("discord.token", "tok")
	viper.Set("discord.channel_id", "c9")
	viper.Set("whitelist.users", []string{"u1"})

	cfg, err := FromViper()
	if err != nil {
		t.Fatalf("FromViper() error = %v", err)
	}
	if len(cfg.Accounts) != 1 {
		t.Fatalf("Accounts = %+v", cfg.Accounts)
	}
	acct := cfg.Accounts[0]
	if acct.Name != "default" || acct.Token != "tok" || acct.ChannelID != "c9" || len(acct.Whitelist) != 1 {
		t.Fatalf("fallback account = %+v", acct)
	}
}

func TestFromViperNoAccounts(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
	SetDefaults()
	viper.Set("ai.api_key", "sk-test")
	viper.Set("accounts.file", "")

	if _, err := FromViper(); !errors.Is(err, ErrNoAccounts) {
		t.Fatalf("FromViper() error = %v, want ErrNoAccounts", err)
	}
}
