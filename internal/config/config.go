// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables the sweep lock and poll throttle
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ProviderConfig struct {
	Name           string        `yaml:"name"` // http | noop
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	CallbackSecret string        `yaml:"callback_secret"`
	Timeout        time.Duration `yaml:"timeout"`
}

type RecoveryConfig struct {
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`
	FreshnessThreshold time.Duration `yaml:"freshness_threshold"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	ExpiryGrace        time.Duration `yaml:"expiry_grace"`
	SweepConcurrency   int           `yaml:"sweep_concurrency"`
	AdminIDs           []string      `yaml:"admin_ids"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Provider ProviderConfig `yaml:"provider"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Auth     AuthConfig     `yaml:"auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(configPath string, dev bool) (*Config, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 15*time.Second)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Provider.Name = strings.ToLower(strings.TrimSpace(cfg.Provider.Name))
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "http"
	}
	cfg.Provider.Timeout = orDefault(cfg.Provider.Timeout, 5*time.Second)
	cfg.Recovery.StalenessThreshold = orDefault(cfg.Recovery.StalenessThreshold, time.Hour)
	cfg.Recovery.FreshnessThreshold = orDefault(cfg.Recovery.FreshnessThreshold, 2*time.Minute)
	cfg.Recovery.SweepInterval = orDefault(cfg.Recovery.SweepInterval, 5*time.Minute)
	cfg.Recovery.ExpiryGrace = orDefault(cfg.Recovery.ExpiryGrace, 15*time.Minute)
	if cfg.Recovery.SweepConcurrency <= 0 {
		cfg.Recovery.SweepConcurrency = 4
	}
}

func validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch cfg.Provider.Name {
	case "http":
		if cfg.Provider.BaseURL == "" {
			return errors.New("provider.base_url is required for the http provider")
		}
	case "noop":
	default:
		return fmt.Errorf("provider.name %q is not supported", cfg.Provider.Name)
	}
	// Unsigned callbacks are only accepted in dev mode.
	if cfg.Provider.CallbackSecret == "" && !cfg.Runtime.Dev {
		return errors.New("provider.callback_secret is required outside dev mode")
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
