// Package config defines the top-level configuration for the curator and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CURATOR_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	OpenAI     OpenAIConfig     `toml:"openai"`
	Slack      SlackConfig      `toml:"slack"`
	ImageGen   ImageGenConfig   `toml:"imagegen"`
	Apechain   ApechainConfig   `toml:"apechain"`
	Approval   ApprovalConfig   `toml:"approval"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds the upstream Gamma API parameters.
type PolymarketConfig struct {
	GammaHost  string `toml:"gamma_host"`
	FetchLimit int    `toml:"fetch_limit"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	SeenTTL    duration `toml:"seen_ttl"`
}

// S3Config holds S3-compatible object storage parameters for the raw
// payload archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OpenAIConfig holds the categorizer's API parameters.
type OpenAIConfig struct {
	APIKey      string   `toml:"api_key"`
	BaseURL     string   `toml:"base_url"`
	Model       string   `toml:"model"`
	Timeout     duration `toml:"timeout"`
	MaxAttempts int      `toml:"max_attempts"`
}

// SlackConfig holds the review surface parameters. Stage one messages go to
// the review channel, stage two messages to the image channel.
type SlackConfig struct {
	Token         string `toml:"token"`
	ReviewChannel string `toml:"review_channel"`
	ImageChannel  string `toml:"image_channel"`
	BotUserID     string `toml:"bot_user_id"`
}

// ImageGenConfig holds the banner generation service parameters.
type ImageGenConfig struct {
	Enabled bool     `toml:"enabled"`
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// ApechainConfig holds deployment target parameters.
type ApechainConfig struct {
	Enabled          bool   `toml:"enabled"`
	RPCURL           string `toml:"rpc_url"`
	ChainID          int64  `toml:"chain_id"`
	ContractAddress  string `toml:"contract_address"`
	GasLimit         uint64 `toml:"gas_limit"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ApprovalConfig holds review lifecycle timing.
type ApprovalConfig struct {
	TimeoutHorizon duration `toml:"timeout_horizon"`
	SweepInterval  duration `toml:"sweep_interval"`
	PollInterval   duration `toml:"poll_interval"`
}

// PipelineConfig holds fetch cadence and curation parameters.
type PipelineConfig struct {
	FetchInterval     duration `toml:"fetch_interval"`
	AllowedImageHosts []string `toml:"allowed_image_hosts"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost:  "https://gamma-api.polymarket.com",
			FetchLimit: 100,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "curator",
			User:          "curator",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			SeenTTL:    duration{24 * time.Hour},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "curator-raw",
			ForcePathStyle: true,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Timeout:     duration{30 * time.Second},
			MaxAttempts: 3,
		},
		ImageGen: ImageGenConfig{
			Enabled: false,
			Timeout: duration{60 * time.Second},
		},
		Apechain: ApechainConfig{
			Enabled: false,
			ChainID: 33139,
		},
		Approval: ApprovalConfig{
			TimeoutHorizon: duration{7 * 24 * time.Hour},
			SweepInterval:  duration{time.Hour},
			PollInterval:   duration{time.Minute},
		},
		Pipeline: PipelineConfig{
			FetchInterval: duration{5 * time.Minute},
			AllowedImageHosts: []string{
				"polymarket-upload.s3.us-east-2.amazonaws.com",
				"polymarket-upload.s3.amazonaws.com",
			},
		},
		Notify: NotifyConfig{
			Events: []string{"imagegen.failed", "deploy.failed", "market.deployed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":      true,
	"ingest":    true,
	"decisions": true,
	"sweep":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, ingest, decisions, sweep)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.FetchLimit < 1 {
		errs = append(errs, "polymarket: fetch_limit must be >= 1")
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	if c.OpenAI.APIKey == "" {
		errs = append(errs, "openai: api_key must not be empty")
	}

	if c.Slack.Token == "" {
		errs = append(errs, "slack: token must not be empty")
	}
	if c.Slack.ReviewChannel == "" {
		errs = append(errs, "slack: review_channel must not be empty")
	}
	if c.Slack.ImageChannel == "" {
		errs = append(errs, "slack: image_channel must not be empty")
	}

	if c.ImageGen.Enabled && c.ImageGen.BaseURL == "" {
		errs = append(errs, "imagegen: base_url must not be empty when enabled")
	}

	if c.Apechain.Enabled {
		if c.Apechain.RPCURL == "" {
			errs = append(errs, "apechain: rpc_url must not be empty when enabled")
		}
		if c.Apechain.ChainID <= 0 {
			errs = append(errs, "apechain: chain_id must be positive")
		}
		if c.Apechain.ContractAddress == "" {
			errs = append(errs, "apechain: contract_address must not be empty when enabled")
		}
		if c.Apechain.PrivateKey == "" && c.Apechain.EncryptedKeyPath == "" {
			errs = append(errs, "apechain: either private_key or encrypted_key_path must be set when enabled")
		}
		if c.Apechain.EncryptedKeyPath != "" && c.Apechain.KeyPassword == "" {
			errs = append(errs, "apechain: key_password is required when encrypted_key_path is set")
		}
	}

	if c.Approval.TimeoutHorizon.Duration <= 0 {
		errs = append(errs, "approval: timeout_horizon must be positive")
	}
	if c.Approval.SweepInterval.Duration <= 0 {
		errs = append(errs, "approval: sweep_interval must be positive")
	}
	if c.Approval.PollInterval.Duration <= 0 {
		errs = append(errs, "approval: poll_interval must be positive")
	}
	if c.Pipeline.FetchInterval.Duration <= 0 {
		errs = append(errs, "pipeline: fetch_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
