package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode     string   `yaml:"mode"` // SIMULATION or LIVE
	Exchange string   `yaml:"exchange"`
	BaseURL  string   `yaml:"base_url"`
	Universe []string `yaml:"universe"`

	Trading struct {
		Enabled        bool    `yaml:"enabled"`
		PeriodSeconds  int     `yaml:"period_seconds"`
		CandleInterval string  `yaml:"candle_interval"`
		TakeProfitPct  float64 `yaml:"take_profit_pct"`
		StopLossPct    float64 `yaml:"stop_loss_pct"` // 0 disables
		MaxQuote       float64 `yaml:"max_quote_per_trade"`
		MakerBps       float64 `yaml:"maker_bps"`
		TakerBps       float64 `yaml:"taker_bps"`
		MinATRRatio    float64 `yaml:"min_atr_ratio"`
		// Unfilled live buys older than this are cancelled; 0 disables.
		StaleBuySeconds int `yaml:"stale_buy_seconds"`
	} `yaml:"trading"`

	Filters struct {
		MetadataTTLSeconds int     `yaml:"metadata_ttl_seconds"`
		MinNotionalFloor   float64 `yaml:"min_notional_floor"`
	} `yaml:"filters"`

	Recs struct {
		Interval string `yaml:"interval"`
		Limit    int    `yaml:"limit"`
		File     string `yaml:"file"` // snapshot written by the analysis process
	} `yaml:"recs"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`

	DataDir string `yaml:"data_dir"`
}

func (c *Config) Validate() error {
	if c.Mode != "SIMULATION" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'SIMULATION' or 'LIVE'", c.Mode)
	}
	if len(c.Universe) == 0 {
		return errors.New("universe cannot be empty")
	}
	if c.Trading.PeriodSeconds <= 0 {
		return fmt.Errorf("trading.period_seconds must be positive, got %d", c.Trading.PeriodSeconds)
	}
	if c.Trading.TakeProfitPct <= 0 {
		return fmt.Errorf("trading.take_profit_pct must be positive, got %.4f", c.Trading.TakeProfitPct)
	}
	if c.Trading.StopLossPct < 0 {
		return fmt.Errorf("trading.stop_loss_pct cannot be negative, got %.4f", c.Trading.StopLossPct)
	}
	if c.Trading.MaxQuote <= 0 {
		return fmt.Errorf("trading.max_quote_per_trade must be positive, got %.2f", c.Trading.MaxQuote)
	}
	if c.Trading.MakerBps < 0 || c.Trading.TakerBps < 0 {
		return errors.New("trading fee bps cannot be negative")
	}
	if c.Trading.StaleBuySeconds < 0 {
		return fmt.Errorf("trading.stale_buy_seconds cannot be negative, got %d", c.Trading.StaleBuySeconds)
	}
	if c.Trading.TakerBps >= 10000 {
		return fmt.Errorf("trading.taker_bps must be below 10000, got %.1f", c.Trading.TakerBps)
	}
	return nil
}

// Live reports whether orders go to the real endpoint instead of the
// exchange's validate-only test endpoint.
func (c *Config) Live() bool {
	return c.Mode == "LIVE"
}

// MakerFee returns the maker fee as a fraction (8 bps -> 0.0008).
func (c *Config) MakerFee() decimal.Decimal {
	return decimal.NewFromFloat(c.Trading.MakerBps).Div(decimal.NewFromInt(10000))
}

// TakerFee returns the taker fee as a fraction.
func (c *Config) TakerFee() decimal.Decimal {
	return decimal.NewFromFloat(c.Trading.TakerBps).Div(decimal.NewFromInt(10000))
}

// Budget returns the per-trade quote budget ceiling as an exact decimal.
func (c *Config) Budget() decimal.Decimal {
	return decimal.NewFromFloat(c.Trading.MaxQuote)
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.Mode == "" {
		c.Mode = "SIMULATION"
	}
	if c.Exchange == "" {
		c.Exchange = "MEXC"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.mexc.com"
	}
	if c.Trading.PeriodSeconds == 0 {
		c.Trading.PeriodSeconds = 15
	}
	if c.Trading.CandleInterval == "" {
		c.Trading.CandleInterval = "60m"
	}
	if c.Trading.TakeProfitPct == 0 {
		c.Trading.TakeProfitPct = 0.02
	}
	if c.Trading.MaxQuote == 0 {
		c.Trading.MaxQuote = 50
	}
	if c.Trading.MakerBps == 0 {
		c.Trading.MakerBps = 8
	}
	if c.Trading.TakerBps == 0 {
		c.Trading.TakerBps = 10
	}
	if c.Filters.MetadataTTLSeconds == 0 {
		c.Filters.MetadataTTLSeconds = 300
	}
	if c.Filters.MinNotionalFloor == 0 {
		c.Filters.MinNotionalFloor = 5
	}
	if c.Recs.Interval == "" {
		c.Recs.Interval = "60m"
	}
	if c.Recs.Limit == 0 {
		c.Recs.Limit = 300
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9107"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Recs.File == "" {
		c.Recs.File = filepath.Join(c.DataDir, "recs.json")
	}
	if len(c.Universe) == 0 {
		c.Universe = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "SUIUSDT"}
	}
}
