// Package config loads the hotspot engine configuration from YAML.
//
// Every field has a default, so an absent or empty file is a valid
// configuration. Unknown keys are rejected to catch typos early.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Sync     SyncConfig     `yaml:"sync"`
	Persist  PersistConfig  `yaml:"persist"`
	RowStore RowStoreConfig `yaml:"rowstore"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig configures the editor store.
type StoreConfig struct {
	MaxHotspotsPerSlide int `yaml:"max_hotspots_per_slide"`
}

// SyncConfig configures the flush timers.
type SyncConfig struct {
	PositionDebounce time.Duration `yaml:"position_debounce"`
	EditDebounce     time.Duration `yaml:"edit_debounce"`
}

// PersistConfig configures the persistence adapter.
type PersistConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// RowStoreConfig selects the row-store backend.
type RowStoreConfig struct {
	// DSN is sqlite://<path>, postgres://... or memory://.
	DSN string `yaml:"dsn"`
}

// HTTPConfig configures the observer API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store:    StoreConfig{MaxHotspotsPerSlide: 10},
		Sync:     SyncConfig{PositionDebounce: 500 * time.Millisecond, EditDebounce: time.Second},
		Persist:  PersistConfig{BatchSize: 100},
		RowStore: RowStoreConfig{DSN: "sqlite://hotspot.db"},
		HTTP:     HTTPConfig{Addr: ":8080"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if c.Store.MaxHotspotsPerSlide < 1 {
		return fmt.Errorf("store.max_hotspots_per_slide must be positive, got %d", c.Store.MaxHotspotsPerSlide)
	}
	if c.Sync.PositionDebounce <= 0 {
		return fmt.Errorf("sync.position_debounce must be positive, got %s", c.Sync.PositionDebounce)
	}
	if c.Sync.EditDebounce <= 0 {
		return fmt.Errorf("sync.edit_debounce must be positive, got %s", c.Sync.EditDebounce)
	}
	if c.Persist.BatchSize < 1 {
		return fmt.Errorf("persist.batch_size must be positive, got %d", c.Persist.BatchSize)
	}
	if _, err := Backend(c.RowStore.DSN); err != nil {
		return err
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Backend returns the scheme of a row-store DSN: "sqlite", "postgres" or
// "memory".
func Backend(dsn string) (string, error) {
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return "", fmt.Errorf("rowstore.dsn %q: missing scheme", dsn)
	}
	switch scheme {
	case "sqlite", "memory":
		return scheme, nil
	case "postgres", "postgresql":
		return "postgres", nil
	default:
		return "", fmt.Errorf("rowstore.dsn %q: unsupported scheme %q", dsn, scheme)
	}
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
