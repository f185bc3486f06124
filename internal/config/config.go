// Package config loads the server configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Trust  TrustConfig  `yaml:"trust"`
	Audit  AuditConfig  `yaml:"audit"`
	Auth   AuthConfig   `yaml:"auth"`
}

type ServerConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type TrustConfig struct {
	// DataDir holds the SQLite local trust cache. Empty disables it.
	DataDir string `yaml:"data_dir"`
	// PostgresDSN selects the Postgres remote trust store.
	PostgresDSN string `yaml:"postgres_dsn"`
	// RedisAddr selects the Redis remote trust store instead of Postgres.
	RedisAddr string `yaml:"redis_addr"`
	// ResyncSchedule is a cron spec for periodic remote re-fetch, e.g.
	// "@every 5m". Empty disables resync.
	ResyncSchedule string `yaml:"resync_schedule"`
}

type AuditConfig struct {
	// ClickHouseDSN selects the ClickHouse action log. Empty falls back to
	// the structured-log writer.
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

type AuthConfig struct {
	// PostgresDSN selects the Postgres API-key authenticator. Empty uses
	// the static development authenticator.
	PostgresDSN     string `yaml:"postgres_dsn"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// Load reads the config file at path (skipped when path is empty or the
// file does not exist), then applies env overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     "8084",
			LogLevel: "info",
		},
		Auth: AuthConfig{
			CacheTTLSeconds: 30,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = envOrDefault("AGENTCORE_PORT", cfg.Server.Port)
	cfg.Server.LogLevel = envOrDefault("AGENTCORE_LOG_LEVEL", cfg.Server.LogLevel)
	cfg.Trust.DataDir = envOrDefault("AGENTCORE_DATA_DIR", cfg.Trust.DataDir)
	cfg.Trust.PostgresDSN = envOrDefault("AGENTCORE_TRUST_POSTGRES_DSN", cfg.Trust.PostgresDSN)
	cfg.Trust.RedisAddr = envOrDefault("AGENTCORE_TRUST_REDIS_ADDR", cfg.Trust.RedisAddr)
	cfg.Trust.ResyncSchedule = envOrDefault("AGENTCORE_TRUST_RESYNC", cfg.Trust.ResyncSchedule)
	cfg.Audit.ClickHouseDSN = envOrDefault("CLICKHOUSE_DSN", cfg.Audit.ClickHouseDSN)
	cfg.Auth.PostgresDSN = envOrDefault("AGENTCORE_AUTH_POSTGRES_DSN", cfg.Auth.PostgresDSN)
	cfg.Auth.CacheTTLSeconds = envOrDefaultInt("AGENTCORE_AUTH_CACHE_TTL_S", cfg.Auth.CacheTTLSeconds)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
