package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from lowest to highest priority:
//
//  1. Baked-in defaults for the environment
//  2. <basePath>/base.yaml
//  3. <basePath>/<environment>.yaml
//  4. Environment variables (PROMPTLIANO_*)
//
// Missing files are skipped silently; a malformed file is an error. The
// environment itself comes from PROMPTLIANO_ENV, defaulting to development.
func Load(basePath string) (*Config, error) {
	env := Environment(os.Getenv("PROMPTLIANO_ENV"))
	if env == "" {
		env = Development
	}
	if basePath == "" {
		basePath = "config"
	}

	cfg := Default(env)

	for _, name := range []string{"base.yaml", string(env) + ".yaml"} {
		if err := overlayFile(&cfg, filepath.Join(basePath, name)); err != nil {
			return nil, err
		}
	}
	overlayEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// overlayEnv applies PROMPTLIANO_* variable overrides. Only the settings an
// operator plausibly flips at deploy time are exposed this way.
func overlayEnv(cfg *Config) {
	if v := os.Getenv("PROMPTLIANO_BASE_URL"); v != "" {
		cfg.Client.BaseURL = v
	}
	if v := os.Getenv("PROMPTLIANO_API_KEY"); v != "" {
		cfg.Client.APIKey = v
	}
	if v := os.Getenv("PROMPTLIANO_CLIENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Client.Timeout = Duration(d)
		}
	}
	if v := os.Getenv("PROMPTLIANO_STALE_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DefaultStaleTime = Duration(d)
		}
	}
	if v := os.Getenv("PROMPTLIANO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PROMPTLIANO_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("PROMPTLIANO_TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = b
		}
	}
	if v := os.Getenv("PROMPTLIANO_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("PROMPTLIANO_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
}
