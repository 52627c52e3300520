// Package config defines the top-level configuration for the settlement
// agent and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/winverse2755/settlekit/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SETTLE_* environment
// variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Pair     PairConfig     `toml:"pair"`
	Relayer  RelayerConfig  `toml:"relayer"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Policy   PolicyConfig   `toml:"policy"`
	Risk     RiskConfig     `toml:"risk"`
	Settle   SettleConfig   `toml:"settle"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds RPC endpoint and view-contract parameters.
type ChainConfig struct {
	RPCURL string `toml:"rpc_url"`
	// StateViewAddress is the read-only lens contract exposing slot0 and
	// liquidity per pool ID.
	StateViewAddress string `toml:"state_view_address"`
	ChainID          int64  `toml:"chain_id"`
}

// PairConfig identifies the token pair whose pools are discoverable.
// Addresses are 0x-prefixed hex.
type PairConfig struct {
	Token0    string `toml:"token0"`
	Token1    string `toml:"token1"`
	Extension string `toml:"extension"`
}

// Spec converts the hex addresses into a domain.PairSpec.
func (p PairConfig) Spec() domain.PairSpec {
	return domain.PairSpec{
		Token0:    common.HexToAddress(p.Token0),
		Token1:    common.HexToAddress(p.Token1),
		Extension: common.HexToAddress(p.Extension),
	}
}

// RelayerConfig holds the execution relayer endpoint. DryRun swaps the HTTP
// relayer for a local gateway that sizes the position but submits nothing.
type RelayerConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	DryRun  bool   `toml:"dry_run"`
}

// PostgresConfig holds PostgreSQL connection parameters for the durable
// decision log.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// RedisConfig holds Redis connection parameters for locks, the pool meta
// cache, and API rate limiting.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for decision-log
// archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// RetentionDays is how long decision-log rows stay in Postgres before
	// the archiver moves them to the bucket.
	RetentionDays int `toml:"retention_days"`
}

// PolicyConfig mirrors domain.AgentPolicy in TOML form. Zero values fall
// back to the domain defaults, so a partial [policy] table works.
type PolicyConfig struct {
	MaxSlippage       float64 `toml:"max_slippage"`
	MaxPriceImpact    float64 `toml:"max_price_impact"`
	MinConfidence     float64 `toml:"min_confidence"`
	MaxLatencySeconds float64 `toml:"max_latency_seconds"`
	RetryAttempts     int     `toml:"retry_attempts"`
	RetryDelaySeconds float64 `toml:"retry_delay_seconds"`
	FallbackStrategy  string  `toml:"fallback_strategy"`
	MinLiquidity      float64 `toml:"min_liquidity"`
	PreferredFeeTiers []int   `toml:"preferred_fee_tiers"`
	MinFeeTier        int     `toml:"min_fee_tier"`
	MaxFeeTier        int     `toml:"max_fee_tier"`
	TickRangeWidth    int     `toml:"tick_range_width"`
	PositionType      string  `toml:"position_type"`
}

// Policy overlays the configured values on the domain defaults.
func (p PolicyConfig) Policy() domain.AgentPolicy {
	out := domain.DefaultPolicy()
	if p.MaxSlippage > 0 {
		out.MaxSlippage = p.MaxSlippage
	}
	if p.MaxPriceImpact > 0 {
		out.MaxPriceImpact = p.MaxPriceImpact
	}
	if p.MinConfidence > 0 {
		out.MinConfidence = p.MinConfidence
	}
	if p.MaxLatencySeconds > 0 {
		out.MaxLatencySeconds = p.MaxLatencySeconds
	}
	if p.RetryAttempts > 0 {
		out.RetryAttempts = p.RetryAttempts
	}
	if p.RetryDelaySeconds > 0 {
		out.RetryDelaySeconds = p.RetryDelaySeconds
	}
	if p.FallbackStrategy != "" {
		out.Fallback = domain.FallbackStrategy(p.FallbackStrategy)
	}
	if p.MinLiquidity > 0 {
		out.Selection.MinLiquidity = p.MinLiquidity
	}
	if len(p.PreferredFeeTiers) > 0 {
		tiers := make([]domain.FeeTier, 0, len(p.PreferredFeeTiers))
		for _, t := range p.PreferredFeeTiers {
			tiers = append(tiers, domain.FeeTier(t))
		}
		out.Selection.PreferredFeeTiers = tiers
	}
	if p.MinFeeTier > 0 {
		out.Selection.FeeTierBounds.Min = domain.FeeTier(p.MinFeeTier)
	}
	if p.MaxFeeTier > 0 {
		out.Selection.FeeTierBounds.Max = domain.FeeTier(p.MaxFeeTier)
	}
	if p.TickRangeWidth > 0 {
		out.Selection.TickRangeWidth = p.TickRangeWidth
	}
	if p.PositionType != "" {
		out.Selection.PositionType = domain.PositionType(p.PositionType)
	}
	return out
}

// RiskConfig tunes the risk simulator.
type RiskConfig struct {
	// Scenario is one of optimistic, default, pessimistic.
	Scenario string `toml:"scenario"`
	// LatencyP50/P95/P99 override the built-in finality delay table, in
	// seconds. Zero keeps the default.
	LatencyP50 float64 `toml:"latency_p50"`
	LatencyP95 float64 `toml:"latency_p95"`
	LatencyP99 float64 `toml:"latency_p99"`
}

// SettleConfig holds the deposit parameters for the one-shot CLI modes.
// Amount is a decimal string in raw token units.
type SettleConfig struct {
	Amount    string `toml:"amount"`
	Recipient string `toml:"recipient"`
	// FeeTier targets a specific pool in settle mode. Ignored in auto mode,
	// where the catalog picks the pool.
	FeeTier   int `toml:"fee_tier"`
	TickLower int `toml:"tick_lower"`
	TickUpper int `toml:"tick_upper"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	d.Duration = parsed
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:  "http://localhost:8545",
			ChainID: 1,
		},
		Relayer: RelayerConfig{
			DryRun: true,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "settlekit-data",
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Risk: RiskConfig{
			Scenario: string(domain.ScenarioDefault),
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"execution_completed", "execution_failed", "decision_aborted", "risk_fallback"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"settle":   true,
	"auto":     true,
	"simulate": true,
	"serve":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// isHexAddress reports whether s parses as a 20-byte hex address.
func isHexAddress(s string) bool {
	return common.IsHexAddress(s)
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: settle, auto, simulate, serve)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.StateViewAddress != "" && !isHexAddress(c.Chain.StateViewAddress) {
		errs = append(errs, fmt.Sprintf("chain: state_view_address %q is not a hex address", c.Chain.StateViewAddress))
	}

	if !isHexAddress(c.Pair.Token0) {
		errs = append(errs, fmt.Sprintf("pair: token0 %q is not a hex address", c.Pair.Token0))
	}
	if !isHexAddress(c.Pair.Token1) {
		errs = append(errs, fmt.Sprintf("pair: token1 %q is not a hex address", c.Pair.Token1))
	}
	if c.Pair.Extension != "" && !isHexAddress(c.Pair.Extension) {
		errs = append(errs, fmt.Sprintf("pair: extension %q is not a hex address", c.Pair.Extension))
	}

	// Live execution needs a relayer endpoint; dry runs do not.
	if !c.Relayer.DryRun && c.Relayer.BaseURL == "" {
		errs = append(errs, "relayer: base_url is required unless dry_run is set")
	}

	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" && c.Postgres.Host == "" {
		errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: archival requires postgres to be enabled")
		}
	}

	switch domain.Scenario(strings.ToLower(c.Risk.Scenario)) {
	case domain.ScenarioOptimistic, domain.ScenarioDefault, domain.ScenarioPessimistic:
	default:
		errs = append(errs, fmt.Sprintf("risk: unknown scenario %q (valid: optimistic, default, pessimistic)", c.Risk.Scenario))
	}

	// One-shot modes need a deposit to settle.
	if mode == "settle" || mode == "auto" || mode == "simulate" {
		if c.Settle.Amount == "" {
			errs = append(errs, "settle: amount is required for mode "+mode)
		}
		if c.Settle.Recipient != "" && !isHexAddress(c.Settle.Recipient) {
			errs = append(errs, fmt.Sprintf("settle: recipient %q is not a hex address", c.Settle.Recipient))
		}
	}
	if mode == "settle" && c.Settle.FeeTier <= 0 {
		errs = append(errs, "settle: fee_tier is required for mode settle (use mode auto for pool selection)")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}

	// The policy itself gets a second pass through domain validation so
	// threshold relationships hold before the engine ever starts.
	if err := c.Policy.Policy().Validate(); err != nil {
		errs = append(errs, "policy: "+err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
