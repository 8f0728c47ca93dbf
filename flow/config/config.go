// Package config loads Duraflow-Go configuration from files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Sources, in ascending
// precedence:
//
//  1. Built-in defaults
//  2. duraflow.yaml (working directory, or an explicit path)
//  3. Environment variables with the DURAFLOW_ prefix, dots replaced
//     by underscores (server.port -> DURAFLOW_SERVER_PORT)
type Config struct {
	// Home is the base directory for engine state. Database, cache,
	// storage, and vault paths left unset resolve beneath it.
	Home string `mapstructure:"home"`

	// Serializer is the encoding for file-backed output storage:
	// "json" or "binary".
	Serializer string `mapstructure:"serializer"`

	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP facade.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// AuthToken, when set, requires a matching bearer token on every
	// API request.
	AuthToken string `mapstructure:"auth_token"`
}

// DatabaseConfig selects the context store backend.
type DatabaseConfig struct {
	// Backend is "memory", "sqlite", or "mysql".
	Backend string `mapstructure:"backend"`

	// URL is the SQLite file path or the MySQL DSN. Empty resolves to
	// <home>/duraflow.db.
	URL string `mapstructure:"url"`
}

// CacheConfig selects the task-result cache backend.
type CacheConfig struct {
	// Backend is "none", "memory", "file", or "redis".
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	Size      int    `mapstructure:"size"`
	RedisAddr string `mapstructure:"redis_addr"`
}

// StorageConfig selects the output storage backend.
type StorageConfig struct {
	// Backend is "inline", "local", or "s3".
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	S3Bucket string `mapstructure:"s3_bucket"`
	S3Prefix string `mapstructure:"s3_prefix"`
}

// SecretsConfig selects the secret manager backend.
type SecretsConfig struct {
	// Backend is "env" or "encrypted".
	Backend string `mapstructure:"backend"`

	// EnvPrefix prefixes environment lookups for the env backend.
	EnvPrefix string `mapstructure:"env_prefix"`

	// VaultPath and Passphrase configure the encrypted-file backend.
	VaultPath  string `mapstructure:"vault_path"`
	Passphrase string `mapstructure:"passphrase"`
}

// ExecutorConfig tunes the engine.
type ExecutorConfig struct {
	MaxWorkers     int           `mapstructure:"max_workers"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`

	// RetryAttempts is the retry budget applied to tasks that declare
	// no retry policy of their own. Zero leaves such tasks retryless.
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	RetryBackoff  float64       `mapstructure:"retry_backoff"`
	ResourceCPU   int           `mapstructure:"resource_cpu"`
	ResourceMemGB int           `mapstructure:"resource_memory_gb"`
	ResourceGPU   int           `mapstructure:"resource_gpu"`
}

// CatalogConfig tunes workflow registration.
type CatalogConfig struct {
	// AutoRegister, when true, registers the binary's built-in
	// workflows at startup. Disable to serve only workflows registered
	// explicitly through the API.
	AutoRegister bool `mapstructure:"auto_register"`
}

// LogConfig tunes logging.
type LogConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `mapstructure:"level"`

	// JSON switches from console to JSON output.
	JSON bool `mapstructure:"json"`
}

// Load reads configuration. An empty path searches for duraflow.yaml
// in the working directory; a missing file is fine, defaults and
// environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DURAFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("duraflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Serializer != "json" && cfg.Serializer != "binary" {
		return nil, fmt.Errorf("unknown serializer %q (want json or binary)", cfg.Serializer)
	}
	cfg.resolveHome()
	return &cfg, nil
}

// resolveHome fills path-valued options left empty with locations
// under the home directory.
func (c *Config) resolveHome() {
	if c.Database.URL == "" {
		c.Database.URL = filepath.Join(c.Home, "duraflow.db")
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(c.Home, "cache")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.Home, "storage")
	}
	if c.Secrets.VaultPath == "" {
		c.Secrets.VaultPath = filepath.Join(c.Home, "secrets.json")
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("home", ".duraflow")
	v.SetDefault("serializer", "json")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("database.backend", "sqlite")
	v.SetDefault("database.url", "")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.size", 1024)
	v.SetDefault("storage.backend", "inline")
	v.SetDefault("storage.path", "")
	v.SetDefault("secrets.backend", "env")
	v.SetDefault("secrets.env_prefix", "DURAFLOW_SECRET_")
	v.SetDefault("secrets.vault_path", "")
	v.SetDefault("executor.max_workers", 8)
	v.SetDefault("executor.default_timeout", time.Duration(0))
	v.SetDefault("executor.retry_attempts", 0)
	v.SetDefault("executor.retry_delay", time.Second)
	v.SetDefault("executor.retry_backoff", 2.0)
	v.SetDefault("catalog.auto_register", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}
