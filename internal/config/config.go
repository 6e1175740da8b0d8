// Package config loads deployment configuration from a TOML file, per
// spec.md §1's "configuration loading" ambient collaborator. Environment
// variables are not consulted.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full deployment configuration for assetindexd.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Upstream UpstreamConfig `toml:"upstream"`
	HTTP     HTTPConfig     `toml:"http"`
	Log      LogConfig      `toml:"log"`
	Batch    BatchConfig    `toml:"batch"`
}

type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	MaxConns int32  `toml:"max_conns"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type UpstreamConfig struct {
	Addr string `toml:"addr"`
}

type HTTPConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

type LogConfig struct {
	Level string `toml:"level"` // debug|info|warn|error
	JSON  bool   `toml:"json"`
}

type BatchConfig struct {
	Size int `toml:"size"`
	// MaxSyncLag is how many blocks the committed tip may trail the highest
	// height seen on the upstream source before /ready reports not-ready.
	MaxSyncLag int64 `toml:"max_sync_lag"`
}

// Load reads and parses a TOML config file at path, applying defaults for
// anything the file leaves zero.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = 10
	}
	if cfg.HTTP.ListenAddr == "" {
		cfg.HTTP.ListenAddr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Batch.Size == 0 {
		cfg.Batch.Size = 256
	}
	if cfg.Batch.MaxSyncLag == 0 {
		cfg.Batch.MaxSyncLag = 100
	}
}
