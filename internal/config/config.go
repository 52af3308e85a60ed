// Package config loads an engine's startup configuration from a TOML file:
// the data directory, query cache sizing, and checkpoint cadence.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level TOML document an engine is opened with.
type Config struct {
	Keyspace   KeyspaceConfig   `toml:"keyspace"`
	Cache      CacheConfig      `toml:"cache"`
	Checkpoint CheckpointConfig `toml:"checkpoint"`
}

// KeyspaceConfig locates the on-disk data directory.
type KeyspaceConfig struct {
	DataDir string `toml:"data_dir"`
}

// CacheConfig sizes the compiled-query cache.
type CacheConfig struct {
	Size int `toml:"size"`
	// TTLSeconds is advisory: the cache itself is a pure size-bounded LRU
	// (internal/querycache) with no time-based eviction, so a configured
	// TTL only ever widens how stale a served compilation is allowed to
	// be for callers layering their own freshness check on top.
	TTLSeconds int `toml:"ttl_seconds"`
}

// TTL returns the configured cache TTL, or zero if unset.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// CheckpointConfig controls how often the storage layer folds its
// durability log into a checkpoint.
type CheckpointConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

// Interval returns the configured checkpoint interval, or zero if unset.
func (c CheckpointConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

const (
	defaultCacheSize      = 256
	defaultCheckpointSecs = 60
)

// Default returns a Config pointed at dataDir with every other field set to
// its default value.
func Default(dataDir string) Config {
	return Config{
		Keyspace:   KeyspaceConfig{DataDir: dataDir},
		Cache:      CacheConfig{Size: defaultCacheSize},
		Checkpoint: CheckpointConfig{IntervalSeconds: defaultCheckpointSecs},
	}
}

// Load reads and decodes the TOML config file at path, filling in defaults
// for any field the file leaves zero-valued.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %q: %w", path, err)
	}
	if cfg.Keyspace.DataDir == "" {
		return Config{}, fmt.Errorf("config: %q: keyspace.data_dir is required", path)
	}
	if cfg.Cache.Size <= 0 {
		cfg.Cache.Size = defaultCacheSize
	}
	if cfg.Checkpoint.IntervalSeconds <= 0 {
		cfg.Checkpoint.IntervalSeconds = defaultCheckpointSecs
	}
	return cfg, nil
}
