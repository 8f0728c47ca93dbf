package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Database.Backend != "sqlite" {
		t.Errorf("expected default database backend sqlite, got %q", cfg.Database.Backend)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("expected default cache backend memory, got %q", cfg.Cache.Backend)
	}
	if cfg.Storage.Backend != "inline" {
		t.Errorf("expected default storage backend inline, got %q", cfg.Storage.Backend)
	}
	if cfg.Secrets.EnvPrefix != "DURAFLOW_SECRET_" {
		t.Errorf("expected default secret prefix, got %q", cfg.Secrets.EnvPrefix)
	}
	if cfg.Executor.RetryBackoff != 2.0 {
		t.Errorf("expected default retry backoff 2.0, got %v", cfg.Executor.RetryBackoff)
	}
	if cfg.Executor.RetryDelay != time.Second {
		t.Errorf("expected default retry delay 1s, got %v", cfg.Executor.RetryDelay)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %q", cfg.Log.Level)
	}
	if cfg.Home != ".duraflow" {
		t.Errorf("expected default home .duraflow, got %q", cfg.Home)
	}
	if cfg.Serializer != "json" {
		t.Errorf("expected default serializer json, got %q", cfg.Serializer)
	}
	if cfg.Executor.RetryAttempts != 0 {
		t.Errorf("expected default retry attempts 0, got %d", cfg.Executor.RetryAttempts)
	}
	if !cfg.Catalog.AutoRegister {
		t.Error("expected catalog auto-registration on by default")
	}
}

// Path options left empty resolve beneath the home directory, so a
// single home setting relocates all engine state.
func TestLoadHomeResolvesPaths(t *testing.T) {
	t.Setenv("DURAFLOW_HOME", "/var/lib/duraflow")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.URL != filepath.Join("/var/lib/duraflow", "duraflow.db") {
		t.Errorf("database url not derived from home: %q", cfg.Database.URL)
	}
	if cfg.Cache.Path != filepath.Join("/var/lib/duraflow", "cache") {
		t.Errorf("cache path not derived from home: %q", cfg.Cache.Path)
	}
	if cfg.Storage.Path != filepath.Join("/var/lib/duraflow", "storage") {
		t.Errorf("storage path not derived from home: %q", cfg.Storage.Path)
	}
	if cfg.Secrets.VaultPath != filepath.Join("/var/lib/duraflow", "secrets.json") {
		t.Errorf("vault path not derived from home: %q", cfg.Secrets.VaultPath)
	}

	// An explicit path wins over the derived one.
	t.Setenv("DURAFLOW_DATABASE_URL", "/tmp/other.db")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.URL != "/tmp/other.db" {
		t.Errorf("explicit database url overridden: %q", cfg.Database.URL)
	}
}

func TestLoadSerializer(t *testing.T) {
	t.Setenv("DURAFLOW_SERIALIZER", "binary")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Serializer != "binary" {
		t.Errorf("serializer override ignored, got %q", cfg.Serializer)
	}

	t.Setenv("DURAFLOW_SERIALIZER", "xml")
	if _, err := Load(""); err == nil {
		t.Error("expected an error for an unknown serializer")
	}
}

func TestLoadExecutorRetryAttempts(t *testing.T) {
	t.Setenv("DURAFLOW_EXECUTOR_RETRY_ATTEMPTS", "3")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Executor.RetryAttempts != 3 {
		t.Errorf("retry attempts override ignored, got %d", cfg.Executor.RetryAttempts)
	}
}

func TestLoadCatalogAutoRegisterOff(t *testing.T) {
	t.Setenv("DURAFLOW_CATALOG_AUTO_REGISTER", "false")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Catalog.AutoRegister {
		t.Error("auto_register override ignored")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DURAFLOW_SERVER_PORT", "9000")
	t.Setenv("DURAFLOW_DATABASE_BACKEND", "mysql")
	t.Setenv("DURAFLOW_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("env override for port ignored, got %d", cfg.Server.Port)
	}
	if cfg.Database.Backend != "mysql" {
		t.Errorf("env override for database backend ignored, got %q", cfg.Database.Backend)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("env override for log level ignored, got %q", cfg.Log.Level)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duraflow.yaml")
	contents := `
server:
  port: 8088
database:
  backend: sqlite
  url: /tmp/test.db
cache:
  backend: none
log:
  json: true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("expected port 8088 from file, got %d", cfg.Server.Port)
	}
	if cfg.Database.URL != "/tmp/test.db" {
		t.Errorf("expected database url from file, got %q", cfg.Database.URL)
	}
	if cfg.Cache.Backend != "none" {
		t.Errorf("expected cache backend none from file, got %q", cfg.Cache.Backend)
	}
	if !cfg.Log.JSON {
		t.Error("expected JSON logging from file")
	}
	// Untouched keys keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host, got %q", cfg.Server.Host)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duraflow.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8088\n"), 0o644); err != nil {
		t.Fatalf("writing config failed: %v", err)
	}
	t.Setenv("DURAFLOW_SERVER_PORT", "9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("environment should take precedence over the file, got %d", cfg.Server.Port)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("an explicitly named missing config file should be an error")
	}
}
