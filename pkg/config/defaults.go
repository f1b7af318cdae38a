package config

import (
	"path/filepath"
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Every backend section is filled, so a generated file documents all of them
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applyMetadataDefaults(&cfg.Metadata)
	applyRemoteDefaults(&cfg.Remote)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Root == "" {
		cfg.Root = filepath.Join(getDataDir(), "store")
	}
}

func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	cfg.Type = strings.ToLower(cfg.Type)

	cfg.Memory = withDefaults(cfg.Memory, map[string]any{
		"sync": true,
	})
	cfg.Badger = withDefaults(cfg.Badger, map[string]any{
		"sync_writes":    true,
		"block_cache_mb": 8,
		"index_cache_mb": 8,
	})
	cfg.Bolt = withDefaults(cfg.Bolt, map[string]any{
		"timeout": "1s",
		"no_sync": false,
	})
	cfg.SQLite = withDefaults(cfg.SQLite, nil)
}

func applyRemoteDefaults(cfg *RemoteConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}
	cfg.Type = strings.ToLower(cfg.Type)

	cfg.WebDAV = withDefaults(cfg.WebDAV, map[string]any{
		"url":      "",
		"user":     "",
		"password": "",
		"root":     "/dittostore",
		"timeout":  "30s",
	})
	cfg.S3 = withDefaults(cfg.S3, map[string]any{
		"region":      "us-east-1",
		"bucket":      "",
		"key_prefix":  "",
		"endpoint":    "",
		"max_retries": 10,
	})
	cfg.Local = withDefaults(cfg.Local, map[string]any{
		"root": "",
	})
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8080"
	}
	if cfg.MaxUploadSize == "" {
		cfg.MaxUploadSize = "1GiB"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// withDefaults returns m (allocated if nil) with every missing key of
// defaults added.
func withDefaults(m map[string]any, defaults map[string]any) map[string]any {
	if m == nil {
		m = make(map[string]any)
	}
	for k, v := range defaults {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return m
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Store: StoreConfig{
			Observable: true,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
