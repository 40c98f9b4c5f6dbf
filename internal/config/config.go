package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/gocoro/internal/logging"
	"github.com/me/gocoro/pkg/coro"
)

// Config holds settings shared by the gocoro commands.
type Config struct {
	Capacity     int           `yaml:"capacity"`      // Scheduler slots when the workload does not set one
	TickInterval time.Duration `yaml:"tick_interval"` // Time between scheduler passes (default 10ms)
	MaxTicks     uint64        `yaml:"max_ticks"`     // Stop after this many passes, 0 for unlimited
	LogLevel     string        `yaml:"log_level"`     // Log level: debug, info, warn, error
	LogFormat    string        `yaml:"log_format"`    // Log format: text, json
	DBPath       string        `yaml:"db"`            // Journal path (default ~/.gocoro/journal.db, ":memory:" for testing)
	Addr         string        `yaml:"addr"`          // Status API listen address, empty to disable
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Capacity:     16,
		TickInterval: 10 * time.Millisecond,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load reads a YAML config file and overlays it on the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Capacity < 1 || c.Capacity > coro.DefaultMaxCapacity {
		errs = append(errs, fmt.Errorf("capacity %d out of range [1, %d]", c.Capacity, coro.DefaultMaxCapacity))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval))
	}
	if !logging.ValidFormat(c.LogFormat) {
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ResolveDBPath returns the journal path, creating ~/.gocoro when the
// default location is used.
func (c Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".gocoro")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return filepath.Join(dir, "journal.db"), nil
}
