// Package config defines all configuration for the razor research harness.
// Config is loaded from a TOML file (default: config.toml) with selected
// fields overridable via RAZOR_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"razor/internal/schema"
)

// Config is the top-level configuration. Maps directly to the TOML file
// structure, one section per concern.
type Config struct {
	Polymarket    PolymarketConfig `mapstructure:"polymarket"`
	Run           RunConfig        `mapstructure:"run"`
	SchemaVersion string           `mapstructure:"schema_version"`
	Brain         BrainConfig      `mapstructure:"brain"`
	Buckets       BucketConfig     `mapstructure:"buckets"`
	Shadow        ShadowConfig     `mapstructure:"shadow"`
	Report        ReportConfig     `mapstructure:"report"`
	Logging       LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds the public, unauthenticated endpoints the feed
// client reads from. No signing credentials: this harness never places
// orders.
type PolymarketConfig struct {
	GammaBase   string `mapstructure:"gamma_base"`
	WSBase      string `mapstructure:"ws_base"`
	DataAPIBase string `mapstructure:"data_api_base"`
}

// RunConfig controls where a run's artifacts land and which markets it
// watches.
type RunConfig struct {
	DataDir   string   `mapstructure:"data_dir"`
	MarketIDs []string `mapstructure:"market_ids"`
}

// BrainConfig tunes the Signal Engine's edge gate and dedup cooldown.
//
//   - RiskPremiumBps: subtracted from raw edge before the min-edge gate, as
//     a conservative cushion against model error.
//   - MinNetEdgeBps: a signal is only admitted if expected_net_bps is at
//     least this value.
//   - QReq: requested notional quantity per leg for every signal.
//   - SignalCooldownMs: minimum time between two admitted signals that share
//     a (market, strategy, quantized cost) dedup key.
type BrainConfig struct {
	RiskPremiumBps   int     `mapstructure:"risk_premium_bps"`
	MinNetEdgeBps    int     `mapstructure:"min_net_edge_bps"`
	QReq             float64 `mapstructure:"q_req"`
	SignalCooldownMs int64   `mapstructure:"signal_cooldown_ms"`
}

// BucketConfig sets the assumed p25 fill share per liquidity bucket, used by
// the Shadow Ledger's baseline settlement.
type BucketConfig struct {
	FillShareLiquidP25 float64 `mapstructure:"fill_share_liquid_p25"`
	FillShareThinP25   float64 `mapstructure:"fill_share_thin_p25"`
}

// ShadowConfig tunes the Shadow Ledger's settlement window and the trade
// poller/store feeding it.
type ShadowConfig struct {
	WindowStartMs       int64 `mapstructure:"window_start_ms"`
	WindowEndMs         int64 `mapstructure:"window_end_ms"`
	TradePollIntervalMs int64 `mapstructure:"trade_poll_interval_ms"`
	TradePollLimit      int   `mapstructure:"trade_poll_limit"`
	TradeRetentionMs    int64 `mapstructure:"trade_retention_ms"`
}

// ReportConfig sets the Report Generator's verdict thresholds.
type ReportConfig struct {
	MinTotalShadowPnL float64 `mapstructure:"min_total_shadow_pnl"`
	MinAvgSetRatio    float64 `mapstructure:"min_avg_set_ratio"`
}

// LoggingConfig controls the slog handler used by every cmd/razor* binary.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a TOML file with RAZOR_* env var overrides applied
// on top.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("RAZOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = schema.Version
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("polymarket.gamma_base", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.ws_base", "wss://ws-subscriptions-clob.polymarket.com/ws")
	v.SetDefault("polymarket.data_api_base", "https://data-api.polymarket.com")

	v.SetDefault("run.data_dir", "data")

	v.SetDefault("schema_version", schema.Version)

	v.SetDefault("brain.risk_premium_bps", 80)
	v.SetDefault("brain.min_net_edge_bps", 10)
	v.SetDefault("brain.q_req", 10.0)
	v.SetDefault("brain.signal_cooldown_ms", 1000)

	v.SetDefault("buckets.fill_share_liquid_p25", 0.30)
	v.SetDefault("buckets.fill_share_thin_p25", 0.10)

	v.SetDefault("shadow.window_start_ms", 100)
	v.SetDefault("shadow.window_end_ms", 1100)
	v.SetDefault("shadow.trade_poll_interval_ms", 1000)
	v.SetDefault("shadow.trade_poll_limit", 500)
	v.SetDefault("shadow.trade_retention_ms", 5000)

	v.SetDefault("report.min_total_shadow_pnl", 0.0)
	v.SetDefault("report.min_avg_set_ratio", 0.85)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Run.MarketIDs) == 0 {
		return fmt.Errorf("run.market_ids must list at least one market")
	}
	if c.Brain.QReq <= 0 {
		return fmt.Errorf("brain.q_req must be > 0")
	}
	if c.Brain.SignalCooldownMs < 0 {
		return fmt.Errorf("brain.signal_cooldown_ms must be >= 0")
	}
	if c.Buckets.FillShareLiquidP25 <= 0 || c.Buckets.FillShareLiquidP25 > 1 {
		return fmt.Errorf("buckets.fill_share_liquid_p25 must be in (0, 1]")
	}
	if c.Buckets.FillShareThinP25 <= 0 || c.Buckets.FillShareThinP25 > 1 {
		return fmt.Errorf("buckets.fill_share_thin_p25 must be in (0, 1]")
	}
	if c.Shadow.WindowEndMs <= c.Shadow.WindowStartMs {
		return fmt.Errorf("shadow.window_end_ms must be > shadow.window_start_ms")
	}
	return nil
}
