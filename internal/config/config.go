// Package config loads and validates the engine configuration: YAML
// file first, environment overrides second. Strategy-name validation
// happens here so an unknown name fails the process at startup, before
// any tick runs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/quantpulse/quantpulse/internal/indicator"
	"github.com/quantpulse/quantpulse/internal/regime"
	"github.com/quantpulse/quantpulse/internal/strategy"
)

const envPrefix = "quantpulse"

// Config is the full configuration surface consumed by the engine.
type Config struct {
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// Symbols to evaluate each tick.
	Symbols []string `yaml:"symbols"`
	// AssetClasses maps symbol -> asset class ("crypto", "stock")
	// for the registry's default tier.
	AssetClasses map[string]string `yaml:"asset_classes"`

	Strategy   strategy.Params   `yaml:"strategy"`
	Indicators indicator.Config  `yaml:"indicators"`
	Regime     regime.Thresholds `yaml:"regime"`

	// CooldownHours is the minimum spacing between notified signals
	// for one (symbol, rule) pair.
	CooldownHours int `yaml:"cooldown_hours" envconfig:"COOLDOWN_HOURS"`
	// StrengthFloor is the minimum strength for a signal to be
	// considered for notification at all.
	StrengthFloor float64 `yaml:"strength_floor"`
	// NotifyThreshold is the strength the notification gate requires.
	NotifyThreshold float64 `yaml:"notify_threshold" envconfig:"SIGNAL_NOTIFY_THRESHOLD"`

	Tick     TickConfig     `yaml:"tick"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Ops      OpsConfig      `yaml:"ops"`
}

// TickConfig controls scheduling and parallelism.
type TickConfig struct {
	IntervalMinutes int    `yaml:"interval_minutes"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	Workers         int    `yaml:"workers"`
	WindowBars      int    `yaml:"window_bars"`
	Timeframe       string `yaml:"timeframe"`
}

// DatabaseConfig selects the persistence backend. Empty URL runs the
// in-memory repository.
type DatabaseConfig struct {
	URL            string `yaml:"url" envconfig:"DATABASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RedisConfig controls the optional snapshot cache.
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password   string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB         int    `yaml:"db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// OpsConfig controls the health/metrics HTTP listener.
type OpsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the YAML file at path (optional), applies environment
// overrides and defaults, and validates. Validation failures are fatal
// configuration errors.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CooldownHours <= 0 {
		c.CooldownHours = 8
	}
	if c.StrengthFloor <= 0 {
		c.StrengthFloor = 40
	}
	if c.NotifyThreshold <= 0 {
		c.NotifyThreshold = 60
	}
	if c.Tick.IntervalMinutes <= 0 {
		c.Tick.IntervalMinutes = 15
	}
	if c.Tick.TimeoutSeconds <= 0 {
		c.Tick.TimeoutSeconds = 120
	}
	if c.Tick.Workers <= 0 {
		c.Tick.Workers = 8
	}
	if c.Tick.WindowBars <= 0 {
		c.Tick.WindowBars = 200
	}
	if c.Tick.Timeframe == "" {
		c.Tick.Timeframe = "15m"
	}
	if c.Database.TimeoutSeconds <= 0 {
		c.Database.TimeoutSeconds = 5
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.TTLMinutes <= 0 {
		c.Redis.TTLMinutes = 30
	}
	if c.Ops.Addr == "" {
		c.Ops.Addr = ":8099"
	}
	c.Indicators.Defaults()
	c.Regime.Defaults()
	c.Strategy.Clamp.Defaults()
}

// Validate rejects configurations the engine must not start with.
func (c *Config) Validate() error {
	for symbol, name := range c.Strategy.Overrides {
		if _, err := strategy.ParseKind(name); err != nil {
			return fmt.Errorf("invalid configuration: override for %s: %w: %q", symbol, strategy.ErrUnknown, name)
		}
	}
	for class, name := range c.Strategy.ClassDefaults {
		if _, err := strategy.ParseKind(name); err != nil {
			return fmt.Errorf("invalid configuration: class default for %s: %w: %q", class, strategy.ErrUnknown, name)
		}
	}

	if c.NotifyThreshold < 0 || c.NotifyThreshold > 100 {
		return fmt.Errorf("invalid configuration: notify_threshold %.1f outside 0-100", c.NotifyThreshold)
	}
	if c.Strategy.Clamp.Min >= c.Strategy.Clamp.Max {
		return fmt.Errorf("invalid configuration: clamp min %.1f >= max %.1f",
			c.Strategy.Clamp.Min, c.Strategy.Clamp.Max)
	}
	if c.Regime.Range > c.Regime.Trend {
		return fmt.Errorf("invalid configuration: regime range threshold %.1f above trend threshold %.1f",
			c.Regime.Range, c.Regime.Trend)
	}

	return nil
}

// Cooldown returns the cooldown window as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours) * time.Hour
}

// TickInterval returns the scheduling interval.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Tick.IntervalMinutes) * time.Minute
}

// TickTimeout returns the per-tick deadline.
func (c *Config) TickTimeout() time.Duration {
	return time.Duration(c.Tick.TimeoutSeconds) * time.Second
}

// DBTimeout returns the per-query database timeout.
func (c *Config) DBTimeout() time.Duration {
	return time.Duration(c.Database.TimeoutSeconds) * time.Second
}

// CacheTTL returns the snapshot cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.TTLMinutes) * time.Minute
}
