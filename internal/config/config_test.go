package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "8084" {
		t.Fatalf("port = %s, want 8084", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "info" {
		t.Fatalf("log level = %s, want info", cfg.Server.LogLevel)
	}
	if cfg.Auth.CacheTTLSeconds != 30 {
		t.Fatalf("cache ttl = %d, want 30", cfg.Auth.CacheTTLSeconds)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: "9090"
  log_level: debug
trust:
  data_dir: /var/lib/agentcore
  redis_addr: localhost:6379
  resync_schedule: "@every 5m"
audit:
  clickhouse_dsn: clickhouse://localhost:9000/audit
auth:
  cache_ttl_seconds: 60
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "9090" || cfg.Server.LogLevel != "debug" {
		t.Fatalf("server config not loaded: %+v", cfg.Server)
	}
	if cfg.Trust.RedisAddr != "localhost:6379" || cfg.Trust.ResyncSchedule != "@every 5m" {
		t.Fatalf("trust config not loaded: %+v", cfg.Trust)
	}
	if cfg.Audit.ClickHouseDSN != "clickhouse://localhost:9000/audit" {
		t.Fatalf("audit config not loaded: %+v", cfg.Audit)
	}
	if cfg.Auth.CacheTTLSeconds != 60 {
		t.Fatalf("auth config not loaded: %+v", cfg.Auth)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AGENTCORE_PORT", "7070")
	t.Setenv("AGENTCORE_AUTH_CACHE_TTL_S", "120")
	t.Setenv("AGENTCORE_TRUST_POSTGRES_DSN", "postgres://localhost/trust")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("port = %s, env should win over file", cfg.Server.Port)
	}
	if cfg.Auth.CacheTTLSeconds != 120 {
		t.Fatalf("cache ttl = %d, want 120", cfg.Auth.CacheTTLSeconds)
	}
	if cfg.Trust.PostgresDSN != "postgres://localhost/trust" {
		t.Fatalf("postgres dsn = %s", cfg.Trust.PostgresDSN)
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "8084" {
		t.Fatal("missing file should fall back to defaults")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed YAML should error")
	}
}

func TestLoad_BadEnvIntIgnored(t *testing.T) {
	t.Setenv("AGENTCORE_AUTH_CACHE_TTL_S", "soon")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.CacheTTLSeconds != 30 {
		t.Fatalf("cache ttl = %d, want default 30 for junk env", cfg.Auth.CacheTTLSeconds)
	}
}
