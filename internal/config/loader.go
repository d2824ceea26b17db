package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Paths returns the default locations searched for a config file, in order.
func Paths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		"./meshbridge.toml",
		home + "/.meshbridge/config.toml",
		"/etc/meshbridge/config.toml",
	}
}

// Load reads a TOML config file at path (or the first default path found
// when path is empty), applies environment overrides, and validates the
// result. An empty path with no default file found starts from Default(),
// which still goes through the environment overrides and validation;
// Default() leaves adapter_id empty, so validation fails unless the
// environment supplies it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, p := range Paths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MESHBRIDGE_PLATFORM"); v != "" {
		cfg.Platform = Platform(v)
	}
	if v := os.Getenv("MESHBRIDGE_ADAPTER_TYPE"); v != "" {
		cfg.Adapter.AdapterType = v
	}
	if v := os.Getenv("MESHBRIDGE_ADAPTER_ID"); v != "" {
		cfg.Adapter.AdapterID = v
	}
	if v := os.Getenv("MESHBRIDGE_ADAPTER_NAME"); v != "" {
		cfg.Adapter.AdapterName = v
	}
	if v := os.Getenv("MESHBRIDGE_CONTROLLER_URL"); v != "" {
		cfg.Controller.URL = v
	}
	if v := os.Getenv("MESHBRIDGE_CONTROLLER_TOKEN"); v != "" {
		cfg.Controller.AuthToken = v
	}
	if v := os.Getenv("MESHBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MESHBRIDGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MESHBRIDGE_LOG_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}
	if v := os.Getenv("MESHBRIDGE_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("MESHBRIDGE_DISCORD_TOKEN"); v != "" {
		cfg.Discord.BotToken = v
	}
	if v := os.Getenv("MESHBRIDGE_DISCORD_WEBHOOK_URL"); v != "" {
		cfg.DiscordWebhook.WebhookURL = v
	}
	if v := os.Getenv("MESHBRIDGE_SLACK_BOT_TOKEN"); v != "" {
		cfg.Slack.BotToken = v
	}
	if v := os.Getenv("MESHBRIDGE_SLACK_APP_TOKEN"); v != "" {
		cfg.Slack.AppToken = v
	}
	if v := os.Getenv("MESHBRIDGE_ZULIP_SITE"); v != "" {
		cfg.Zulip.SiteURL = v
	}
	if v := os.Getenv("MESHBRIDGE_ZULIP_EMAIL"); v != "" {
		cfg.Zulip.Email = v
	}
	if v := os.Getenv("MESHBRIDGE_ZULIP_API_KEY"); v != "" {
		cfg.Zulip.APIKey = v
	}
}
