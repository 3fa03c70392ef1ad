// Package config loads and validates the layered configuration of the
// caching layer: baked-in defaults, YAML files per environment, then
// environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"promptliano-client/internal/errors"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Duration decodes YAML values like "30s" or "5m" into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration.
type Config struct {
	Environment Environment `yaml:"environment" validate:"required,oneof=development staging production"`

	Client       ClientConfig       `yaml:"client"`
	Cache        CacheConfig        `yaml:"cache"`
	Invalidation InvalidationConfig `yaml:"invalidation"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Server       ServerConfig       `yaml:"server"`
}

// ClientConfig configures the API transport.
type ClientConfig struct {
	BaseURL        string   `yaml:"base_url" validate:"required,url"`
	APIKey         string   `yaml:"api_key"`
	Timeout        Duration `yaml:"timeout"`
	BreakerEnabled bool     `yaml:"breaker_enabled"`
}

// CacheConfig configures the query store.
type CacheConfig struct {
	DefaultStaleTime Duration `yaml:"default_stale_time"`
}

// InvalidationConfig configures the invalidation engine.
type InvalidationConfig struct {
	// StrictValidation makes a dangling relationship or rule reference fatal
	// at startup. On by default in development, off in production.
	StrictValidation bool `yaml:"strict_validation"`
	HistorySize      int  `yaml:"history_size" validate:"min=1,max=10000"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" validate:"min=0,max=1"`
}

// ServerConfig configures the reference API server and diagnostics endpoints.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Default returns the baked-in defaults for the given environment.
func Default(env Environment) Config {
	cfg := Config{
		Environment: env,
		Client: ClientConfig{
			BaseURL:        "http://localhost:3147",
			Timeout:        Duration(30 * time.Second),
			BreakerEnabled: true,
		},
		Cache: CacheConfig{
			DefaultStaleTime: Duration(30 * time.Second),
		},
		Invalidation: InvalidationConfig{
			StrictValidation: env == Development,
			HistorySize:      100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "promptliano",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
		Server: ServerConfig{
			Address:         ":8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
	}
	if env == Development {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
	}
	if env == Production {
		cfg.Tracing.SampleRate = 0.1
	}
	return cfg
}

// Validate checks the configuration and returns a classified error listing
// every violation.
func (c *Config) Validate() error {
	var problems []string

	if err := validator.New().Struct(c); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Client.Timeout.Std() < time.Second {
		problems = append(problems, "client.timeout must be at least 1s")
	}
	if c.Cache.DefaultStaleTime.Std() < 0 {
		problems = append(problems, "cache.default_stale_time must not be negative")
	}
	if c.Server.ShutdownTimeout.Std() < time.Second {
		problems = append(problems, "server.shutdown_timeout must be at least 1s")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.NewConfiguration(errors.CodeConfigInvalid, strings.Join(problems, "; "))
}

// IsDevelopment reports whether the config targets development.
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}
