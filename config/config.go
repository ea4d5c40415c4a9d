package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment variables, e.g. OVERLAY_WINDOWDURATION
const EnvPrefix = "OVERLAY"

// Config holds every configurable value for the overlay
type Config struct {
	// Smoothing window for the published metrics
	WindowDuration time.Duration

	// Host loop rate of the demo window
	TPS int

	// Publishing; empty values disable the sink
	ServerURL string // e.g. ws://localhost:8080/monitoring
	AgentID   string
	DBPath    string // e.g. ./data/reports.db

	LogLevel string // debug|info|warn|error
}

// Load reads configuration from environment variables and an optional
// ./configs/config.yaml, falling back to defaults.
func Load() (*Config, error) {
	return LoadFrom("./configs")
}

// LoadFrom is Load with an explicit directory for config.yaml
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("WindowDuration", "500ms")
	v.SetDefault("TPS", 60)
	v.SetDefault("ServerURL", "")
	v.SetDefault("AgentID", "perf-overlay")
	v.SetDefault("DBPath", "")
	v.SetDefault("LogLevel", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		// the file is optional, a broken one is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the overlay cannot run with
func (c *Config) Validate() error {
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be positive, got %s", c.WindowDuration)
	}
	if c.TPS <= 0 {
		return fmt.Errorf("TPS must be positive, got %d", c.TPS)
	}
	return nil
}
