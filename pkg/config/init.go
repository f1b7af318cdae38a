package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// InitConfig creates a default configuration file at the default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: File exists (without force) or write error
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath creates a default configuration file at path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// sectionComments precede each top-level section of the generated file.
var sectionComments = []struct {
	key     string
	comment string
}{
	{"logging", "Logging: level (DEBUG, INFO, WARN, ERROR), format (text, json), output (stdout, stderr, file path)"},
	{"store", "Store: root directory; multitenant treats every subdirectory as a tenant store"},
	{"metadata", "Metadata backend: memory (meta.yaml), badger, bolt or sqlite.\n# Only the section matching type is used."},
	{"remote", "Remote backend used by \"dittostore remote\": none, webdav, s3 or local.\n# Only the section matching type is used."},
	{"server", "HTTP API started by \"dittostore serve\".\n# max_upload_size accepts sizes like 512MiB or 2GB; 0 disables the cap.\n# rate_limit.requests_per_second 0 disables limiting; wait queues requests instead of rejecting them."},
	{"metrics", "Prometheus metrics, served on their own port"},
}

// generateYAMLWithComments renders cfg as YAML, one commented block per
// top-level section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var b strings.Builder

	b.WriteString("# DittoStore Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Values can be overridden with DITTOSTORE_* environment variables,\n")
	b.WriteString("# e.g. DITTOSTORE_STORE_ROOT=/srv/files\n")

	sections := map[string]any{
		"logging":  cfg.Logging,
		"store":    cfg.Store,
		"metadata": cfg.Metadata,
		"remote":   cfg.Remote,
		"server":   cfg.Server,
		"metrics":  cfg.Metrics,
	}

	for _, s := range sectionComments {
		data, err := yaml.Marshal(map[string]any{s.key: sections[s.key]})
		if err != nil {
			return "", fmt.Errorf("marshal %s: %w", s.key, err)
		}
		b.WriteString("\n# ")
		b.WriteString(s.comment)
		b.WriteString("\n")
		b.Write(data)
	}

	return b.String(), nil
}
