package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolateEnv points every XDG and home lookup at a temporary directory so
// tests never read the user's configuration.
func isolateEnv(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))
	return tmpDir
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configPath
}

func TestLoad_DefaultConfig(t *testing.T) {
	isolateEnv(t)

	configPath := writeConfig(t, `
logging:
  level: "info"

store:
  root: "/srv/dittostore"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Store.Root != "/srv/dittostore" {
		t.Errorf("Expected root '/srv/dittostore', got %q", cfg.Store.Root)
	}
	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected default metadata type 'memory', got %q", cfg.Metadata.Type)
	}
	if cfg.Remote.Type != "none" {
		t.Errorf("Expected default remote type 'none', got %q", cfg.Remote.Type)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := isolateEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	want := filepath.Join(tmpDir, "data", "dittostore", "store")
	if cfg.Store.Root != want {
		t.Errorf("Expected default root %q, got %q", want, cfg.Store.Root)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolateEnv(t)

	configPath := writeConfig(t, `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	isolateEnv(t)

	configPath := writeConfig(t, `
metadata:
  type: "postgres"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown metadata type, got nil")
	}
}

func TestLoad_BackendSections(t *testing.T) {
	isolateEnv(t)

	configPath := writeConfig(t, `
store:
  root: "/srv/dittostore"
  multitenant: true

metadata:
  type: "bolt"
  bolt:
    timeout: "250ms"

remote:
  type: "webdav"
  webdav:
    url: "https://dav.example.com"
    root: "/archive"

server:
  listen: "0.0.0.0:9000"
  shutdown_timeout: "5s"
  rate_limit:
    requests_per_second: 50
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if !cfg.Store.Multitenant {
		t.Error("Expected multitenant store")
	}
	if cfg.Metadata.Bolt["timeout"] != "250ms" {
		t.Errorf("Expected bolt timeout '250ms', got %v", cfg.Metadata.Bolt["timeout"])
	}
	if cfg.Metadata.Bolt["no_sync"] != false {
		t.Errorf("Expected default bolt no_sync false, got %v", cfg.Metadata.Bolt["no_sync"])
	}
	if cfg.Remote.WebDAV["root"] != "/archive" {
		t.Errorf("Expected webdav root '/archive', got %v", cfg.Remote.WebDAV["root"])
	}
	if cfg.Remote.WebDAV["timeout"] != "30s" {
		t.Errorf("Expected default webdav timeout '30s', got %v", cfg.Remote.WebDAV["timeout"])
	}
	if cfg.Server.Listen != "0.0.0.0:9000" {
		t.Errorf("Expected listen '0.0.0.0:9000', got %q", cfg.Server.Listen)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown_timeout 5s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.RateLimit.RequestsPerSecond != 50 {
		t.Errorf("Expected rate limit 50 req/s, got %d", cfg.Server.RateLimit.RequestsPerSecond)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DITTOSTORE_LOGGING_LEVEL", "ERROR")
	t.Setenv("DITTOSTORE_METRICS_PORT", "9191")
	t.Setenv("DITTOSTORE_STORE_ROOT", "/from/env")

	configPath := writeConfig(t, `
logging:
  level: "INFO"

store:
  root: "/from/file"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Metrics.Port != 9191 {
		t.Errorf("Expected port 9191 from env var, got %d", cfg.Metrics.Port)
	}
	if cfg.Store.Root != "/from/env" {
		t.Errorf("Expected root '/from/env' from env var, got %q", cfg.Store.Root)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	tmpDir := isolateEnv(t)

	path := GetDefaultConfigPath()
	want := filepath.Join(tmpDir, "config", "dittostore", "config.yaml")
	if path != want {
		t.Errorf("Expected %q, got %q", want, path)
	}
}

func TestGetConfigDir(t *testing.T) {
	tmpDir := isolateEnv(t)
	t.Setenv("XDG_CONFIG_HOME", "")

	dir := GetConfigDir()
	want := filepath.Join(tmpDir, ".config", "dittostore")
	if dir != want {
		t.Errorf("Expected %q, got %q", want, dir)
	}
}

func TestConfigExists(t *testing.T) {
	isolateEnv(t)

	if ConfigExists() {
		t.Fatal("Expected no config in an empty config dir")
	}

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	if !ConfigExists() {
		t.Error("Expected config to exist after InitConfig")
	}
}
