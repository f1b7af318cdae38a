package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	tmpDir := isolateEnv(t)
	t.Setenv("XDG_CONFIG_HOME", "")

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	want := filepath.Join(tmpDir, ".config", "dittostore", "config.yaml")
	if configPath != want {
		t.Errorf("Expected config at %q, got %q", want, configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# DittoStore Configuration File",
		"logging:",
		"store:",
		"metadata:",
		"remote:",
		"server:",
		"metrics:",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	isolateEnv(t)

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfigToPath_ForceOverwrite(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(configPath, []byte("custom: true\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if err := InitConfigToPath(configPath, false); err == nil {
		t.Fatal("Expected error without force")
	}

	if err := InitConfigToPath(configPath, true); err != nil {
		t.Fatalf("InitConfigToPath with force failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if strings.Contains(string(content), "custom: true") {
		t.Error("Config file was not overwritten")
	}
}

func TestInitConfigToPath_CreatesParentDirs(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "a", "b", "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
}

func TestGenerateYAMLWithComments_ValidConfig(t *testing.T) {
	isolateEnv(t)

	out, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		t.Fatalf("generateYAMLWithComments failed: %v", err)
	}

	if !strings.HasPrefix(out, "# DittoStore Configuration File") {
		t.Error("Generated YAML should start with the header comment")
	}
	for _, want := range []string{"# Metadata backend", "type: memory", "shutdown_timeout: 30s", "max_retries: 10"} {
		if !strings.Contains(out, want) {
			t.Errorf("Generated YAML should contain %q", want)
		}
	}
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	isolateEnv(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load generated config: %v", err)
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Generated config failed validation: %v", err)
	}
}

func TestGeneratedConfigValuesAreCorrect(t *testing.T) {
	tmpDir := isolateEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("Failed to generate config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected INFO log level in generated config, got %q", cfg.Logging.Level)
	}
	wantRoot := filepath.Join(tmpDir, "data", "dittostore", "store")
	if cfg.Store.Root != wantRoot {
		t.Errorf("Expected root %q in generated config, got %q", wantRoot, cfg.Store.Root)
	}
	if !cfg.Store.Observable {
		t.Error("Expected observable store in generated config")
	}
	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected memory metadata in generated config, got %q", cfg.Metadata.Type)
	}
	if cfg.Remote.Type != "none" {
		t.Errorf("Expected no remote in generated config, got %q", cfg.Remote.Type)
	}
}
