package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Ledger.SettlementMode != "immediate" {
		t.Fatalf("expected immediate settlement default, got %q", cfg.Ledger.SettlementMode)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9090
ledger:
  settlement_mode: deferred
  allow_free_items: true
database:
  driver: postgres
  dsn: postgres://localhost/ledger
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Ledger.SettlementMode != "deferred" {
		t.Fatalf("expected deferred mode, got %q", cfg.Ledger.SettlementMode)
	}
	if !cfg.Ledger.AllowFreeItems {
		t.Fatal("expected free items enabled")
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.Database.Driver)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("LEDGER_SETTLEMENT_MODE", "deferred")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env override port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Ledger.SettlementMode != "deferred" {
		t.Fatalf("expected env override mode deferred, got %q", cfg.Ledger.SettlementMode)
	}
}

func TestLoadInvalidDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: postgres\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}
}

func TestAllowedOriginList(t *testing.T) {
	cfg := ServerConfig{AllowedOrigins: "https://a.example, https://b.example ,"}
	got := cfg.AllowedOriginList()
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", got)
	}
}
