package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Tracker  TrackerConfig  `koanf:"tracker"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type TrackerConfig struct {
	Enabled        bool   `koanf:"enabled"`
	FlushInterval  string `koanf:"flush_interval"` // parsed and validated on startup
	BatchSize      int    `koanf:"batch_size"`
	StreakTimezone string `koanf:"streak_timezone"` // one fixed reference zone for day boundaries
	BaselineDir    string `koanf:"baseline_dir"`    // optional per-tenant baseline profiles
}

// Interval returns the parsed flush interval. Call after Validate.
func (c TrackerConfig) Interval() (time.Duration, error) {
	return time.ParseDuration(c.FlushInterval)
}

// StreakLocation resolves the configured streak reference zone.
func (c TrackerConfig) StreakLocation() (*time.Location, error) {
	if c.StreakTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.StreakTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid tracker.streak_timezone %q: %w", c.StreakTimezone, err)
	}
	return loc, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	interval, err := c.Tracker.Interval()
	if err != nil {
		return fmt.Errorf("invalid tracker.flush_interval %q: %w", c.Tracker.FlushInterval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("tracker.flush_interval must be > 0")
	}
	if c.Tracker.BatchSize <= 0 {
		return fmt.Errorf("tracker.batch_size must be > 0")
	}
	if _, err := c.Tracker.StreakLocation(); err != nil {
		return err
	}

	return nil
}

// Load parses config from file + env, then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.max_body_size_mb": 1,
		"server.mode":             "release",
		"database.type":           "postgres",
		"database.dsn":            "",
		"database.max_open_conns": 25,
		"database.max_idle_conns": 25,
		"database.auto_migrate":   true,
		"tracker.enabled":         true,
		"tracker.flush_interval":  "1m",
		"tracker.batch_size":      500,
		"tracker.streak_timezone": "UTC",
		"tracker.baseline_dir":    "",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("PULSE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PULSE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
