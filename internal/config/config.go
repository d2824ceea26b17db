// Package config loads and validates the configuration surface named in
// spec.md §6: rate-limit buckets, attachment storage, cache bounds,
// adapter identity, and the file/shell adapter-specific blocks.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Platform identifies which upstream this process bridges.
type Platform string

const (
	PlatformTelegram       Platform = "telegram"
	PlatformDiscordBot     Platform = "discord"
	PlatformDiscordWebhook Platform = "discord_webhook"
	PlatformSlack          Platform = "slack"
	PlatformZulip          Platform = "zulip"
	PlatformFile           Platform = "file"
	PlatformShell          Platform = "shell"
)

// Config is the top-level configuration for one adapter process.
type Config struct {
	Platform Platform `toml:"platform" env:"MESHBRIDGE_PLATFORM"`

	Adapter     AdapterConfig     `toml:"adapter"`
	RateLimit   map[string]BucketConfig `toml:"rate_limit"`
	Attachments AttachmentsConfig `toml:"attachments"`
	Caching     CachingConfig     `toml:"caching"`
	Controller  ControllerConfig  `toml:"controller"`
	Logging     LoggingConfig     `toml:"logging"`
	Dispatch    DispatchConfig    `toml:"dispatch"`
	Metrics     MetricsConfig     `toml:"metrics"`

	Telegram       TelegramConfig       `toml:"telegram"`
	Discord        DiscordConfig        `toml:"discord"`
	DiscordWebhook DiscordWebhookConfig `toml:"discord_webhook"`
	Slack          SlackConfig          `toml:"slack"`
	Zulip          ZulipConfig          `toml:"zulip"`
	File           FileAdapterConfig    `toml:"file"`
	Shell          ShellAdapterConfig   `toml:"shell"`
}

// AdapterConfig is the `adapter.*` surface from spec.md §6.
type AdapterConfig struct {
	AdapterType             string `toml:"adapter_type" env:"MESHBRIDGE_ADAPTER_TYPE"`
	AdapterID               string `toml:"adapter_id" env:"MESHBRIDGE_ADAPTER_ID"`
	AdapterName             string `toml:"adapter_name" env:"MESHBRIDGE_ADAPTER_NAME"`
	MaxHistoryLimit         int    `toml:"max_history_limit"`
	MaxPaginationIterations int    `toml:"max_pagination_iterations"`
	MaxMessageLength        int    `toml:"max_message_length"`
	MaxAttachmentsPerMessage int   `toml:"max_attachments_per_message"`
	ConnectionCheckInterval int    `toml:"connection_check_interval_seconds"`
	MaxReconnectAttempts    int    `toml:"max_reconnect_attempts"`
	CacheFetchedHistory     bool   `toml:"cache_fetched_history"`
}

// BucketConfig is one C1 rate-limit bucket: three sliding windows plus a
// scoping rule.
type BucketConfig struct {
	Scope             string `toml:"scope"` // global | per_conversation | per_url
	RequestsPerSecond float64 `toml:"requests_per_second"`
	RequestsPerMinute float64 `toml:"requests_per_minute"`
	RequestsPerHour   float64 `toml:"requests_per_hour"`
}

// AttachmentsConfig is `attachments.*`.
type AttachmentsConfig struct {
	StorageDir               string `toml:"storage_dir"`
	MaxFileSizeMB            int    `toml:"max_file_size_mb"`
	LargeFileThresholdMB     int    `toml:"large_file_threshold_mb"`
	MaxAttachmentsPerMessage int    `toml:"max_attachments_per_message"`
}

// CachingConfig is `caching.*`.
type CachingConfig struct {
	MaxMessagesPerConversation int     `toml:"max_messages_per_conversation"`
	MaxTotalMessages           int     `toml:"max_total_messages"`
	MaxAgeHours                float64 `toml:"max_age_hours"`
	MaintenanceIntervalSeconds int     `toml:"maintenance_interval_seconds"`
	EnableMaintenance          bool    `toml:"enable_maintenance"`
}

// ControllerConfig points the socket.io transport at the downstream
// controller process.
type ControllerConfig struct {
	URL         string `toml:"url" env:"MESHBRIDGE_CONTROLLER_URL"`
	AuthToken   string `toml:"auth_token" env:"MESHBRIDGE_CONTROLLER_TOKEN"`
}

// LoggingConfig is the ambient logging surface.
type LoggingConfig struct {
	Level  string `toml:"level" env:"MESHBRIDGE_LOG_LEVEL"`
	Format string `toml:"format" env:"MESHBRIDGE_LOG_FORMAT"`
	Output string `toml:"output" env:"MESHBRIDGE_LOG_OUTPUT"`
}

// DispatchConfig configures the optional durable outbound dispatch queue
// (SPEC_FULL.md §4 supplement).
type DispatchConfig struct {
	Enabled                 bool   `toml:"enabled"`
	DBPath                  string `toml:"db_path"`
	CircuitBreakerThreshold int    `toml:"circuit_breaker_threshold"`
	CircuitBreakerTimeoutSeconds int `toml:"circuit_breaker_timeout_seconds"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type TelegramConfig struct {
	BotToken string `toml:"bot_token" env:"MESHBRIDGE_TELEGRAM_TOKEN"`
}

type DiscordConfig struct {
	BotToken string `toml:"bot_token" env:"MESHBRIDGE_DISCORD_TOKEN"`
}

type DiscordWebhookConfig struct {
	WebhookURL string `toml:"webhook_url" env:"MESHBRIDGE_DISCORD_WEBHOOK_URL"`
}

type SlackConfig struct {
	BotToken string `toml:"bot_token" env:"MESHBRIDGE_SLACK_BOT_TOKEN"`
	AppToken string `toml:"app_token" env:"MESHBRIDGE_SLACK_APP_TOKEN"`
}

type ZulipConfig struct {
	SiteURL string `toml:"site_url" env:"MESHBRIDGE_ZULIP_SITE"`
	Email   string `toml:"email" env:"MESHBRIDGE_ZULIP_EMAIL"`
	APIKey  string `toml:"api_key" env:"MESHBRIDGE_ZULIP_API_KEY"`
}

// FileAdapterConfig is the file-adapter-specific surface from spec.md §6.
type FileAdapterConfig struct {
	WorkspaceDirectory  string   `toml:"workspace_directory"`
	BackupDirectory     string   `toml:"backup_directory"`
	EventTTLHours       float64  `toml:"event_ttl_hours"`
	CleanupIntervalHours float64 `toml:"cleanup_interval_hours"`
	MaxEventsPerFile    int      `toml:"max_events_per_file"`
	MaxFileSize         int64    `toml:"max_file_size"`
	MaxTokenCount       int      `toml:"max_token_count"`
	SecurityMode        string   `toml:"security_mode"` // strict | permissive | unrestricted
	AllowedExtensions   []string `toml:"allowed_extensions"`
	BlockedExtensions   []string `toml:"blocked_extensions"`
}

// ShellAdapterConfig is the shell-adapter-specific surface.
type ShellAdapterConfig struct {
	WorkspaceDirectory     string  `toml:"workspace_directory"`
	SessionMaxLifetimeMin  float64 `toml:"session_max_lifetime_minutes"`
	CommandMaxLifetimeSec  float64 `toml:"command_max_lifetime_seconds"`
	CPUPercentLimit        float64 `toml:"cpu_percent_limit"`
	MemoryMBLimit          int     `toml:"memory_mb_limit"`
	MaxOutputSize          int     `toml:"max_output_size"`
	BeginOutputSize        int     `toml:"begin_output_size"`
	EndOutputSize          int     `toml:"end_output_size"`
}

// Default returns a Config with every numeric/duration field at the value
// the teacher repo used for comparable knobs, adjusted to this domain.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Adapter: AdapterConfig{
			MaxHistoryLimit:          200,
			MaxPaginationIterations:  10,
			MaxMessageLength:         4096,
			MaxAttachmentsPerMessage: 10,
			ConnectionCheckInterval:  30,
			MaxReconnectAttempts:     5,
			CacheFetchedHistory:      true,
		},
		RateLimit: map[string]BucketConfig{
			"send_message": {Scope: "per_conversation", RequestsPerSecond: 1, RequestsPerMinute: 20, RequestsPerHour: 500},
			"edit_message": {Scope: "per_conversation", RequestsPerSecond: 1, RequestsPerMinute: 20, RequestsPerHour: 500},
			"fetch_history": {Scope: "per_conversation", RequestsPerSecond: 2, RequestsPerMinute: 30, RequestsPerHour: 1000},
			"reaction":      {Scope: "per_conversation", RequestsPerSecond: 2, RequestsPerMinute: 40, RequestsPerHour: 1000},
			"global":        {Scope: "global", RequestsPerSecond: 30, RequestsPerMinute: 600, RequestsPerHour: 10000},
		},
		Attachments: AttachmentsConfig{
			StorageDir:               filepath.Join(home, ".meshbridge", "attachments"),
			MaxFileSizeMB:            50,
			LargeFileThresholdMB:     10,
			MaxAttachmentsPerMessage: 10,
		},
		Caching: CachingConfig{
			MaxMessagesPerConversation: 500,
			MaxTotalMessages:           20000,
			MaxAgeHours:                72,
			MaintenanceIntervalSeconds: 300,
			EnableMaintenance:          false,
		},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Dispatch: DispatchConfig{
			Enabled:                      false,
			DBPath:                       filepath.Join(home, ".meshbridge", "dispatch.db"),
			CircuitBreakerThreshold:      5,
			CircuitBreakerTimeoutSeconds: 60,
		},
		Metrics: MetricsConfig{Enabled: false, Addr: ":9090"},
		File: FileAdapterConfig{
			EventTTLHours:        24,
			CleanupIntervalHours: 1,
			MaxEventsPerFile:     20,
			MaxFileSize:          10 * 1024 * 1024,
			MaxTokenCount:        200000,
			SecurityMode:         "strict",
		},
		Shell: ShellAdapterConfig{
			SessionMaxLifetimeMin: 60,
			CommandMaxLifetimeSec: 120,
			CPUPercentLimit:       80,
			MemoryMBLimit:         1024,
			MaxOutputSize:         64 * 1024,
			BeginOutputSize:       16 * 1024,
			EndOutputSize:         16 * 1024,
		},
	}
}

// Validate checks the invariants the rest of the system assumes hold.
func (c *Config) Validate() error {
	if c.Adapter.AdapterID == "" {
		return fmt.Errorf("%w: adapter.adapter_id is required", ErrInvalidConfig)
	}
	if c.Adapter.MaxMessageLength <= 0 {
		return fmt.Errorf("%w: adapter.max_message_length must be positive", ErrInvalidConfig)
	}
	if c.Caching.MaxMessagesPerConversation <= 0 || c.Caching.MaxTotalMessages <= 0 {
		return fmt.Errorf("%w: caching bounds must be positive", ErrInvalidConfig)
	}
	if c.Caching.MaxMessagesPerConversation > c.Caching.MaxTotalMessages {
		return fmt.Errorf("%w: caching.max_messages_per_conversation cannot exceed max_total_messages", ErrInvalidConfig)
	}
	switch c.File.SecurityMode {
	case "", "strict", "permissive", "unrestricted":
	default:
		return fmt.Errorf("%w: file.security_mode must be strict, permissive, or unrestricted", ErrInvalidConfig)
	}
	return nil
}
