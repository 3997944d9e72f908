package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CURATOR_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CURATOR_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "CURATOR_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.FetchLimit, "CURATOR_POLYMARKET_FETCH_LIMIT")

	// ── Database ──
	setStr(&cfg.Database.DSN, "CURATOR_DATABASE_DSN")
	setStr(&cfg.Database.Host, "CURATOR_DATABASE_HOST")
	setInt(&cfg.Database.Port, "CURATOR_DATABASE_PORT")
	setStr(&cfg.Database.Database, "CURATOR_DATABASE_NAME")
	setStr(&cfg.Database.User, "CURATOR_DATABASE_USER")
	setStr(&cfg.Database.Password, "CURATOR_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "CURATOR_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "CURATOR_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "CURATOR_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "CURATOR_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CURATOR_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CURATOR_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CURATOR_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CURATOR_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CURATOR_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CURATOR_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.SeenTTL, "CURATOR_REDIS_SEEN_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CURATOR_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CURATOR_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CURATOR_S3_REGION")
	setStr(&cfg.S3.Bucket, "CURATOR_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CURATOR_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CURATOR_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CURATOR_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CURATOR_S3_FORCE_PATH_STYLE")

	// ── OpenAI ──
	setStr(&cfg.OpenAI.APIKey, "CURATOR_OPENAI_API_KEY")
	setStr(&cfg.OpenAI.BaseURL, "CURATOR_OPENAI_BASE_URL")
	setStr(&cfg.OpenAI.Model, "CURATOR_OPENAI_MODEL")
	setDuration(&cfg.OpenAI.Timeout, "CURATOR_OPENAI_TIMEOUT")
	setInt(&cfg.OpenAI.MaxAttempts, "CURATOR_OPENAI_MAX_ATTEMPTS")

	// ── Slack ──
	setStr(&cfg.Slack.Token, "CURATOR_SLACK_TOKEN")
	setStr(&cfg.Slack.ReviewChannel, "CURATOR_SLACK_REVIEW_CHANNEL")
	setStr(&cfg.Slack.ImageChannel, "CURATOR_SLACK_IMAGE_CHANNEL")
	setStr(&cfg.Slack.BotUserID, "CURATOR_SLACK_BOT_USER_ID")

	// ── ImageGen ──
	setBool(&cfg.ImageGen.Enabled, "CURATOR_IMAGEGEN_ENABLED")
	setStr(&cfg.ImageGen.BaseURL, "CURATOR_IMAGEGEN_BASE_URL")
	setStr(&cfg.ImageGen.APIKey, "CURATOR_IMAGEGEN_API_KEY")
	setDuration(&cfg.ImageGen.Timeout, "CURATOR_IMAGEGEN_TIMEOUT")

	// ── Apechain ──
	setBool(&cfg.Apechain.Enabled, "CURATOR_APECHAIN_ENABLED")
	setStr(&cfg.Apechain.RPCURL, "CURATOR_APECHAIN_RPC_URL")
	setInt64(&cfg.Apechain.ChainID, "CURATOR_APECHAIN_CHAIN_ID")
	setStr(&cfg.Apechain.ContractAddress, "CURATOR_APECHAIN_CONTRACT_ADDRESS")
	setStr(&cfg.Apechain.PrivateKey, "CURATOR_APECHAIN_PRIVATE_KEY")
	setStr(&cfg.Apechain.EncryptedKeyPath, "CURATOR_APECHAIN_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Apechain.KeyPassword, "CURATOR_APECHAIN_KEY_PASSWORD")

	// ── Approval ──
	setDuration(&cfg.Approval.TimeoutHorizon, "CURATOR_APPROVAL_TIMEOUT_HORIZON")
	setDuration(&cfg.Approval.SweepInterval, "CURATOR_APPROVAL_SWEEP_INTERVAL")
	setDuration(&cfg.Approval.PollInterval, "CURATOR_APPROVAL_POLL_INTERVAL")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.FetchInterval, "CURATOR_PIPELINE_FETCH_INTERVAL")
	setStringSlice(&cfg.Pipeline.AllowedImageHosts, "CURATOR_PIPELINE_ALLOWED_IMAGE_HOSTS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CURATOR_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CURATOR_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CURATOR_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CURATOR_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CURATOR_MODE")
	setStr(&cfg.LogLevel, "CURATOR_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
