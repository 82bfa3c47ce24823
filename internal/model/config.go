package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// StoreConfig locates the archive database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ArchiveConfig holds settings for message ingestion.
type ArchiveConfig struct {
	// AttachmentFolder, when set, stores attachment content on disk
	// instead of in the database.
	AttachmentFolder string `mapstructure:"attachment_folder" yaml:"attachment_folder"`
}

// TasksConfig holds settings for the deferred work queue.
type TasksConfig struct {
	Workers    int  `mapstructure:"workers" yaml:"workers"`
	LockTTLSec int  `mapstructure:"lock_ttl_sec" yaml:"lock_ttl_sec"`
	QueueSize  int  `mapstructure:"queue_size" yaml:"queue_size"`
	Sync       bool `mapstructure:"sync" yaml:"sync"`
}

// LockTTL returns the lifetime of a pending-task lease.
func (c TasksConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSec) * time.Second
}

// CacheConfig holds settings for the aggregate cache.
type CacheConfig struct {
	// Backend is "memory" or "bolt".
	Backend    string `mapstructure:"backend" yaml:"backend"`
	BoltPath   string `mapstructure:"bolt_path" yaml:"bolt_path"`
	RecentDays int    `mapstructure:"recent_days" yaml:"recent_days"`

	// RebuildIntervalSec is how often the recent-thread values are fully
	// rebuilt to evict threads that aged out of the window.
	RebuildIntervalSec int `mapstructure:"rebuild_interval_sec" yaml:"rebuild_interval_sec"`
}

// DirectoryConfig points at the list directory (Mailman core REST API).
type DirectoryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Username string `mapstructure:"username" yaml:"username"`

	// Password is used as-is when set; otherwise it is read from the
	// system keyring under PasswordKey.
	Password    string `mapstructure:"password" yaml:"password"`
	PasswordKey string `mapstructure:"password_key" yaml:"password_key"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// IndexConfig holds settings for full-text index updates.
type IndexConfig struct {
	// Path is the bbolt file of the search index. When empty, updates are
	// only logged.
	Path        string `mapstructure:"path" yaml:"path"`
	IntervalSec int    `mapstructure:"interval_sec" yaml:"interval_sec"`
	LockTTLSec  int    `mapstructure:"lock_ttl_sec" yaml:"lock_ttl_sec"`
	BatchSize   int    `mapstructure:"batch_size" yaml:"batch_size"`
}

// ServeConfig holds settings for the long-running archive service.
type ServeConfig struct {
	// MetricsListen is the address of the Prometheus endpoint. Empty
	// disables it.
	MetricsListen string `mapstructure:"metrics_listen" yaml:"metrics_listen"`

	// DirectoryIntervalSec is how often lists and senders are refreshed
	// from the list directory.
	DirectoryIntervalSec int `mapstructure:"directory_interval_sec" yaml:"directory_interval_sec"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Archive   ArchiveConfig   `mapstructure:"archive" yaml:"archive"`
	Tasks     TasksConfig     `mapstructure:"tasks" yaml:"tasks"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Directory DirectoryConfig `mapstructure:"directory" yaml:"directory"`
	Index     IndexConfig     `mapstructure:"index" yaml:"index"`
	Serve     ServeConfig     `mapstructure:"serve" yaml:"serve"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/listarchive/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "listarchive", "config.yaml")
}

// defaultDataDir returns the directory holding the database and cache files.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "listarchive")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	dataDir := defaultDataDir()
	return &AppConfig{
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "archive.db"),
		},
		Tasks: TasksConfig{
			Workers:    4,
			LockTTLSec: 600,
			QueueSize:  1024,
		},
		Cache: CacheConfig{
			Backend:            "memory",
			BoltPath:           filepath.Join(dataDir, "cache.db"),
			RecentDays:         32,
			RebuildIntervalSec: 86400,
		},
		Directory: DirectoryConfig{
			PasswordKey: "directory-password",
			TimeoutSec:  30,
		},
		Index: IndexConfig{
			Path:        filepath.Join(dataDir, "index.db"),
			IntervalSec: 300,
			LockTTLSec:  3600,
			BatchSize:   500,
		},
		Serve: ServeConfig{
			DirectoryIntervalSec: 3600,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	defaults := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("store.path", defaults.Store.Path)
	v.SetDefault("tasks.workers", defaults.Tasks.Workers)
	v.SetDefault("tasks.lock_ttl_sec", defaults.Tasks.LockTTLSec)
	v.SetDefault("tasks.queue_size", defaults.Tasks.QueueSize)
	v.SetDefault("cache.backend", defaults.Cache.Backend)
	v.SetDefault("cache.bolt_path", defaults.Cache.BoltPath)
	v.SetDefault("cache.recent_days", defaults.Cache.RecentDays)
	v.SetDefault("cache.rebuild_interval_sec", defaults.Cache.RebuildIntervalSec)
	v.SetDefault("directory.password_key", defaults.Directory.PasswordKey)
	v.SetDefault("directory.timeout_sec", defaults.Directory.TimeoutSec)
	v.SetDefault("index.path", defaults.Index.Path)
	v.SetDefault("index.interval_sec", defaults.Index.IntervalSec)
	v.SetDefault("index.lock_ttl_sec", defaults.Index.LockTTLSec)
	v.SetDefault("index.batch_size", defaults.Index.BatchSize)
	v.SetDefault("serve.directory_interval_sec", defaults.Serve.DirectoryIntervalSec)
	v.SetDefault("log.level", defaults.Log.Level)

	v.SetEnvPrefix("LISTARCHIVE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Tasks.Workers < 1 {
		cfg.Tasks.Workers = 1
	}
	if cfg.Cache.RecentDays <= 0 {
		cfg.Cache.RecentDays = defaults.Cache.RecentDays
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("store", cfg.Store)
	v.Set("archive", cfg.Archive)
	v.Set("tasks", cfg.Tasks)
	v.Set("cache", cfg.Cache)
	v.Set("directory", cfg.Directory)
	v.Set("index", cfg.Index)
	v.Set("serve", cfg.Serve)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
