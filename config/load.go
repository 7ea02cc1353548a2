package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string        `yaml:"env"`
	Gateway GatewayConfig `yaml:"gateway"`
	Trader  TraderConfig  `yaml:"trader"`
	Logger  LoggerConfig  `yaml:"logger"`
	Metrics MetricsConfig `yaml:"metrics"`
	Alerts  AlertsConfig  `yaml:"alerts"`
}

type GatewayConfig struct {
	URL           string  `yaml:"url"`
	APIKey        string  `yaml:"apiKey"`
	OutboundRate  float64 `yaml:"outboundRate"`  // commands per second
	OutboundBurst int     `yaml:"outboundBurst"` // token bucket burst
}

// TraderConfig carries the quoting and hedging parameters. Prices are in
// cents, volumes in lots.
type TraderConfig struct {
	QuotedInstrument string `yaml:"quotedInstrument"`
	HedgeInstrument  string `yaml:"hedgeInstrument"`
	PositionLimit    int64  `yaml:"positionLimit"`
	TickSize         int64  `yaml:"tickSize"`
	MaxUnhedgedLots  int64  `yaml:"maxUnhedgedLots"`
	UnhedgedGraceMs  int64  `yaml:"unhedgedGraceMs"`
	MinimumBid       int64  `yaml:"minimumBid"`
	MaximumAsk       int64  `yaml:"maximumAsk"`
}

// Grace returns the unhedged-exposure grace period as a duration.
func (t TraderConfig) Grace() time.Duration {
	return time.Duration(t.UnhedgedGraceMs) * time.Millisecond
}

type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the /metrics server
}

type AlertsConfig struct {
	WebhookURL string `yaml:"webhookUrl"` // empty disables the webhook channel
	ThrottleMs int64  `yaml:"throttleMs"` // repeat suppression window
}

// Throttle returns the alert repeat suppression window as a duration.
func (a AlertsConfig) Throttle() time.Duration {
	return time.Duration(a.ThrottleMs) * time.Millisecond
}

// Load reads YAML config from path and applies validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from
// env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("AH_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("AH_ALERT_WEBHOOK_URL"); v != "" {
		cfg.Alerts.WebhookURL = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present and consistent.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.URL == "" {
		return errors.New("gateway.url is required")
	}
	if cfg.Gateway.OutboundRate < 0 || cfg.Gateway.OutboundBurst < 0 {
		return errors.New("gateway rate limits must be >= 0")
	}
	tr := cfg.Trader
	if tr.QuotedInstrument == "" || tr.HedgeInstrument == "" {
		return errors.New("trader.quotedInstrument and trader.hedgeInstrument are required")
	}
	if tr.QuotedInstrument == tr.HedgeInstrument {
		return errors.New("trader instruments must differ")
	}
	if tr.PositionLimit <= 0 {
		return errors.New("trader.positionLimit must be > 0")
	}
	if tr.TickSize <= 0 {
		return errors.New("trader.tickSize must be > 0")
	}
	if tr.MaxUnhedgedLots < 0 {
		return errors.New("trader.maxUnhedgedLots must be >= 0")
	}
	if tr.UnhedgedGraceMs < 0 {
		return errors.New("trader.unhedgedGraceMs must be >= 0")
	}
	if tr.MinimumBid <= 0 || tr.MaximumAsk <= tr.MinimumBid {
		return errors.New("trader venue bounds must satisfy 0 < minimumBid < maximumAsk")
	}
	if cfg.Alerts.ThrottleMs < 0 {
		return errors.New("alerts.throttleMs must be >= 0")
	}
	return nil
}
