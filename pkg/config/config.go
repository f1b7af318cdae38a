package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Config represents the complete DittoStore configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOSTORE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Metadata and remote backends carry type-specific sections (e.g.
// metadata.badger, remote.webdav). Only the section matching the selected
// type is decoded, by the factory of that backend.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Store selects the store root and its mode
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Metadata specifies the metadata backend and type-specific configuration
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// Remote specifies the optional remote backend
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`

	// Server configures the HTTP API started by "serve"
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metrics configures Prometheus metrics
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// StoreConfig selects the store root.
type StoreConfig struct {
	// Root is the store root directory. In multitenant mode every
	// subdirectory of Root is one tenant store.
	Root string `mapstructure:"root" yaml:"root" validate:"required"`

	// Multitenant opens Root as a multitenant store
	Multitenant bool `mapstructure:"multitenant" yaml:"multitenant"`

	// Observable gives stores an observable notifier, so actions are logged
	// and counted. Otherwise the null notifier is used.
	Observable bool `mapstructure:"observable" yaml:"observable"`
}

// MetadataConfig specifies metadata backend configuration.
//
// The Type field determines which backend is used. Every backend keeps its
// files inside the store root, so no section takes a path.
type MetadataConfig struct {
	// Type specifies which metadata backend to use
	// Valid values: memory, badger, bolt, sqlite
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger bolt sqlite"`

	// Memory contains YAML-file backend options (sync)
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB options (sync_writes, block_cache_mb, index_cache_mb)
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// Bolt contains bbolt options (timeout, no_sync)
	Bolt map[string]any `mapstructure:"bolt" yaml:"bolt"`

	// SQLite contains SQLite options (none yet)
	SQLite map[string]any `mapstructure:"sqlite" yaml:"sqlite"`
}

// RemoteConfig specifies the remote backend.
type RemoteConfig struct {
	// Type specifies which remote backend to use
	// Valid values: none, webdav, s3, local
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=none webdav s3 local"`

	// WebDAV contains url, user, password, root, timeout
	WebDAV map[string]any `mapstructure:"webdav" yaml:"webdav"`

	// S3 contains region, bucket, key_prefix, endpoint, access_key_id,
	// secret_access_key, max_retries
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`

	// Local contains root
	Local map[string]any `mapstructure:"local" yaml:"local"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Listen is the TCP address of the API
	Listen string `mapstructure:"listen" yaml:"listen" validate:"required,hostname_port"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// MaxUploadSize caps API upload bodies, e.g. "512MiB". "0" disables the cap.
	MaxUploadSize string `mapstructure:"max_upload_size" yaml:"max_upload_size" validate:"required"`

	// RateLimit bounds the API request rate
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// MaxUploadBytes parses MaxUploadSize.
func (c *ServerConfig) MaxUploadBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("server.max_upload_size: %w", err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("server.max_upload_size: %s is too large", c.MaxUploadSize)
	}
	return int64(n), nil
}

// RateLimitConfig configures the API token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. 0 disables limiting.
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the bucket capacity. 0 uses RequestsPerSecond.
	Burst uint `mapstructure:"burst" yaml:"burst"`

	// Wait throttles requests above the limit instead of rejecting them
	Wait bool `mapstructure:"wait" yaml:"wait"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metrics collection and the metrics server on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port of the metrics server
	Port int `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
}

// envKeys are bound explicitly so environment variables apply even when
// the key is missing from the config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"store.root",
	"store.multitenant",
	"store.observable",
	"metadata.type",
	"remote.type",
	"server.listen",
	"server.shutdown_timeout",
	"server.max_upload_size",
	"server.rate_limit.requests_per_second",
	"metrics.enabled",
	"metrics.port",
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOSTORE_STORE_ROOT=/srv/files
	v.SetEnvPrefix("DITTOSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittostore/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittostore")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittostore")
}

// getDataDir returns the default store root parent, following
// XDG_DATA_HOME the same way getConfigDir follows XDG_CONFIG_HOME.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "dittostore")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "dittostore-data"
	}

	return filepath.Join(home, ".local", "share", "dittostore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
