// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Registry RegistryConfig `mapstructure:"registry"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Ops      OpsConfig      `mapstructure:"ops"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProxyConfig configures the billed rendering proxy client.
type ProxyConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	CountryCode    string `mapstructure:"country_code"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	MinBodyBytes   int    `mapstructure:"min_body_bytes"`
}

// PoolConfig governs worker scaling and checkpoint cadence.
type PoolConfig struct {
	MaxWorkers        int `mapstructure:"max_workers"`
	ScaleIntervalSecs int `mapstructure:"scale_interval_seconds"`
	WorkerDelaySecs   int `mapstructure:"worker_delay_seconds"`
	InterFetchSecs    int `mapstructure:"inter_fetch_seconds"`
	FlushEvery        int `mapstructure:"flush_every"`
}

// RegistryConfig controls access to the provider registry.
type RegistryConfig struct {
	DSN               string `mapstructure:"dsn"`
	MaxConns          int    `mapstructure:"max_conns"`
	CandidateCacheMax int    `mapstructure:"candidate_cache_max"`
}

// PathsConfig sets the durable file locations of a run.
type PathsConfig struct {
	Checkpoint string `mapstructure:"checkpoint"`
	AuditLog   string `mapstructure:"audit_log"`
}

// OpsConfig controls the operational HTTP endpoint.
type OpsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("proxy.base_url", "https://api.scraperapi.com/")
	v.SetDefault("proxy.country_code", "fr")
	v.SetDefault("proxy.timeout_seconds", 90)
	v.SetDefault("proxy.max_retries", 2)
	v.SetDefault("proxy.min_body_bytes", 2000)
	v.SetDefault("pool.max_workers", 5)
	v.SetDefault("pool.scale_interval_seconds", 120)
	v.SetDefault("pool.worker_delay_seconds", 5)
	v.SetDefault("pool.inter_fetch_seconds", 5)
	v.SetDefault("pool.flush_every", 5)
	v.SetDefault("registry.max_conns", 4)
	v.SetDefault("registry.candidate_cache_max", 20)
	v.SetDefault("paths.checkpoint", "data/progress.json")
	v.SetDefault("paths.audit_log", "data/listings.jsonl")
	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Proxy.APIKey == "" {
		return fmt.Errorf("proxy.api_key must be set")
	}
	if c.Proxy.TimeoutSeconds <= 0 {
		return fmt.Errorf("proxy.timeout_seconds must be > 0")
	}
	if c.Proxy.MaxRetries < 0 {
		return fmt.Errorf("proxy.max_retries must be >= 0")
	}
	if c.Pool.MaxWorkers <= 0 {
		return fmt.Errorf("pool.max_workers must be > 0")
	}
	if c.Pool.FlushEvery <= 0 {
		return fmt.Errorf("pool.flush_every must be > 0")
	}
	if c.Registry.DSN == "" {
		return fmt.Errorf("registry.dsn must be set")
	}
	if c.Ops.Enabled && c.Ops.Port <= 0 {
		return fmt.Errorf("ops.port must be > 0 when ops is enabled")
	}
	return nil
}

// ProxyTimeout converts the proxy timeout into a duration.
func (c Config) ProxyTimeout() time.Duration {
	return time.Duration(c.Proxy.TimeoutSeconds) * time.Second
}

// ScaleInterval converts the scaling interval into a duration.
func (c Config) ScaleInterval() time.Duration {
	return time.Duration(c.Pool.ScaleIntervalSecs) * time.Second
}

// WorkerDelay converts the per-combo pacing delay into a duration.
func (c Config) WorkerDelay() time.Duration {
	return time.Duration(c.Pool.WorkerDelaySecs) * time.Second
}

// InterFetchDelay converts the intra-combo fetch gap into a duration.
func (c Config) InterFetchDelay() time.Duration {
	return time.Duration(c.Pool.InterFetchSecs) * time.Second
}
