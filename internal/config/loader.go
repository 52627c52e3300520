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
// built-in defaults, applies SETTLE_* environment variable overrides, and
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

// applyEnvOverrides reads well-known SETTLE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "SETTLE_CHAIN_RPC_URL")
	setStr(&cfg.Chain.StateViewAddress, "SETTLE_CHAIN_STATE_VIEW_ADDRESS")
	setInt64(&cfg.Chain.ChainID, "SETTLE_CHAIN_ID")

	// ── Pair ──
	setStr(&cfg.Pair.Token0, "SETTLE_PAIR_TOKEN0")
	setStr(&cfg.Pair.Token1, "SETTLE_PAIR_TOKEN1")
	setStr(&cfg.Pair.Extension, "SETTLE_PAIR_EXTENSION")

	// ── Relayer ──
	setStr(&cfg.Relayer.BaseURL, "SETTLE_RELAYER_BASE_URL")
	setStr(&cfg.Relayer.APIKey, "SETTLE_RELAYER_API_KEY")
	setBool(&cfg.Relayer.DryRun, "SETTLE_RELAYER_DRY_RUN")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SETTLE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SETTLE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SETTLE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SETTLE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SETTLE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SETTLE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SETTLE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SETTLE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SETTLE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SETTLE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SETTLE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SETTLE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SETTLE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SETTLE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SETTLE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SETTLE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SETTLE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SETTLE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SETTLE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SETTLE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SETTLE_S3_REGION")
	setStr(&cfg.S3.Bucket, "SETTLE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SETTLE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SETTLE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SETTLE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SETTLE_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "SETTLE_S3_RETENTION_DAYS")

	// ── Policy ──
	setFloat64(&cfg.Policy.MaxSlippage, "SETTLE_POLICY_MAX_SLIPPAGE")
	setFloat64(&cfg.Policy.MaxPriceImpact, "SETTLE_POLICY_MAX_PRICE_IMPACT")
	setFloat64(&cfg.Policy.MinConfidence, "SETTLE_POLICY_MIN_CONFIDENCE")
	setFloat64(&cfg.Policy.MaxLatencySeconds, "SETTLE_POLICY_MAX_LATENCY_SECONDS")
	setInt(&cfg.Policy.RetryAttempts, "SETTLE_POLICY_RETRY_ATTEMPTS")
	setFloat64(&cfg.Policy.RetryDelaySeconds, "SETTLE_POLICY_RETRY_DELAY_SECONDS")
	setStr(&cfg.Policy.FallbackStrategy, "SETTLE_POLICY_FALLBACK_STRATEGY")
	setFloat64(&cfg.Policy.MinLiquidity, "SETTLE_POLICY_MIN_LIQUIDITY")
	setInt(&cfg.Policy.TickRangeWidth, "SETTLE_POLICY_TICK_RANGE_WIDTH")
	setStr(&cfg.Policy.PositionType, "SETTLE_POLICY_POSITION_TYPE")

	// ── Risk ──
	setStr(&cfg.Risk.Scenario, "SETTLE_RISK_SCENARIO")
	setFloat64(&cfg.Risk.LatencyP50, "SETTLE_RISK_LATENCY_P50")
	setFloat64(&cfg.Risk.LatencyP95, "SETTLE_RISK_LATENCY_P95")
	setFloat64(&cfg.Risk.LatencyP99, "SETTLE_RISK_LATENCY_P99")

	// ── Settle ──
	setStr(&cfg.Settle.Amount, "SETTLE_AMOUNT")
	setStr(&cfg.Settle.Recipient, "SETTLE_RECIPIENT")
	setInt(&cfg.Settle.FeeTier, "SETTLE_FEE_TIER")
	setInt(&cfg.Settle.TickLower, "SETTLE_TICK_LOWER")
	setInt(&cfg.Settle.TickUpper, "SETTLE_TICK_UPPER")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SETTLE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SETTLE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SETTLE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SETTLE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "SETTLE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SETTLE_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SETTLE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SETTLE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SETTLE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SETTLE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SETTLE_MODE")
	setStr(&cfg.LogLevel, "SETTLE_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
