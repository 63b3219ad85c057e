package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFrom_FullHierarchy(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "devteam.yaml")

	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
logging:
  level: "debug"
router:
  default_model: "gpt-4o-mini"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	// ENV beats YAML
	t.Setenv("DEVTEAM_PORT", "7070")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("env should win: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("yaml should win over default: got level %q", cfg.Logging.Level)
	}
	if cfg.Router.DefaultModel != "gpt-4o-mini" {
		t.Errorf("got default model %q, want gpt-4o-mini", cfg.Router.DefaultModel)
	}
	if cfg.Router.DefaultProvider != "azure-openai" {
		t.Errorf("default provider should keep default, got %q", cfg.Router.DefaultProvider)
	}
}

func TestLoadFrom_EnvInvalidValues(t *testing.T) {
	t.Setenv("DEVTEAM_PG_MAX_CONNS", "not-a-number")
	t.Setenv("DEVTEAM_SWEEP_INTERVAL", "soon")
	t.Setenv("DEVTEAM_NATS_ENABLED", "maybe")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	// Unparseable values are ignored and defaults survive.
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("got max_conns %d, want 15", cfg.Postgres.MaxConns)
	}
	if cfg.Approval.SweepInterval != time.Minute {
		t.Errorf("got sweep interval %v, want 1m", cfg.Approval.SweepInterval)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS should stay disabled")
	}
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(yamlPath)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
	if !strings.Contains(err.Error(), "config yaml") {
		t.Errorf("error should name the yaml stage, got %v", err)
	}
}

func TestLoadFrom_ValidationAfterOverride(t *testing.T) {
	t.Setenv("DEVTEAM_STORAGE_DRIVER", "cassandra")

	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "storage.driver") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReload_UpdatesFields(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")

	if err := os.WriteFile(yamlPath, []byte(`
logging:
  level: "info"
notification:
  max_attempts: 3
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	holder := NewHolder(cfg, yamlPath)
	if got := holder.Get(); got.Logging.Level != "info" {
		t.Fatalf("initial level should be info, got %q", got.Logging.Level)
	}

	if err := os.WriteFile(yamlPath, []byte(`
logging:
  level: "debug"
notification:
  max_attempts: 7
`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := holder.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	got := holder.Get()
	if got.Logging.Level != "debug" {
		t.Errorf("after reload: got level %q, want debug", got.Logging.Level)
	}
	if got.Notification.MaxAttempts != 7 {
		t.Errorf("after reload: got max attempts %d, want 7", got.Notification.MaxAttempts)
	}
}

func TestReload_ValidationFails_PreservesOld(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")

	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	holder := NewHolder(cfg, yamlPath)

	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: ""
`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := holder.Reload(); err == nil {
		t.Fatal("expected reload to fail for invalid config")
	}

	if got := holder.Get(); got.Server.Port != "9090" {
		t.Errorf("old config should be preserved: got port %q, want 9090", got.Server.Port)
	}
}
