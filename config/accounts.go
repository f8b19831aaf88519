package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/0xliangjiang/discord-bot-private/internal/fsstore"
)

// resolveAccounts tries, in order: an inline JSON roster from the
// environment, the roster file, and finally a single-account fallback
// from discrete settings.
func resolveAccounts() ([]Account, error) {
	if inline := strings.TrimSpace(viper.GetString("accounts.json")); inline != "" {
		cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(inline)
		var accounts []Account
		if err := json.Unmarshal([]byte(cleaned), &accounts); err != nil {
			return nil, fmt.Errorf("config: parse inline accounts: %w", err)
		}
		if len(accounts) > 0 {
			return accounts, nil
		}
	}

	path := strings.TrimSpace(viper.GetString("accounts.file"))
	if path != "" {
		accounts, err := LoadAccounts(path)
		if err != nil {
			return nil, err
		}
		if len(accounts) > 0 {
			return accounts, nil
		}
	}

	token := strings.TrimSpace(viper.GetString("discord.token"))
	channelID := strings.TrimSpace(viper.GetString("discord.channel_id"))
	if token != "" && channelID != "" {
		return []Account{{
			Name:      "default",
			Token:     token,
			ChannelID: channelID,
			Whitelist: viper.GetStringSlice("whitelist.users"),
		}}, nil
	}

	return nil, nil
}

// LoadAccounts reads the ordered roster file. A missing file is an empty
// roster, not an error; the console saves before the daemon first runs.
func LoadAccounts(path string) ([]Account, error) {
	var accounts []Account
	if _, err := fsstore.ReadJSON(path, &accounts); err != nil {
		return nil, fmt.Errorf("config: load accounts %s: %w", path, err)
	}
	return accounts, nil
}

// SaveAccounts rewrites the roster file preserving order. This is one of
// the two interfaces the configuration console consumes.
func SaveAccounts(path string, accounts []Account) error {
	if err := fsstore.WriteJSONAtomic(path, accounts); err != nil {
		return fmt.Errorf("config: save accounts %s: %w", path, err)
	}
	return nil
}

// LoadSettings and SaveSettings are the second console interface: the
// shared settings as one JSON document.
func LoadSettings(path string) (Settings, error) {
	var settings Settings
	if _, err := fsstore.ReadJSON(path, &settings); err != nil {
		return Settings{}, fmt.Errorf("config: load settings %s: %w", path, err)
	}
	return settings, nil
}

func SaveSettings(path string, settings Settings) error {
	if err := fsstore.WriteJSONAtomic(path, settings); err != nil {
		return fmt.Errorf("config: save settings %s: %w", path, err)
	}
	return nil
}
