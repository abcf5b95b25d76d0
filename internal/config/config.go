// ABOUTME: gymtrack configuration management backed by viper.
// ABOUTME: Resolves server URL, data directory, sync timing and logging from file, env and flags.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/harperreed/gymtracker/internal/storage"
)

// EnvPrefix is the prefix for environment overrides (GYMTRACK_SERVER_URL, ...).
const EnvPrefix = "GYMTRACK"

// Config stores gymtrack settings.
type Config struct {
	// ServerURL is the API root, including the /api prefix.
	ServerURL string `mapstructure:"server_url"`

	// DataDir holds gymtrack.db. Supports ~ expansion. Defaults to ~/.local/share/gymtrack.
	DataDir string `mapstructure:"data_dir"`

	SyncInterval         time.Duration `mapstructure:"sync_interval"`
	BackoffFloor         time.Duration `mapstructure:"backoff_floor"`
	BackoffCeiling       time.Duration `mapstructure:"backoff_ceiling"`
	ConnectivityInterval time.Duration `mapstructure:"connectivity_interval"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`

	// LogFile switches logging from stderr to a rotated file.
	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`
}

// SetDefaults registers every key with its default so env overrides and
// Unmarshal see the full key set.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8000/api")
	v.SetDefault("data_dir", storage.DataDir())
	v.SetDefault("sync_interval", 30*time.Second)
	v.SetDefault("backoff_floor", time.Second)
	v.SetDefault("backoff_ceiling", time.Minute)
	v.SetDefault("connectivity_interval", 30*time.Second)
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")
}

// NewViper builds a viper instance reading configFile (or the default path)
// with GYMTRACK_* environment overrides. A missing file is not an error.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = GetConfigPath()
	}
	v.SetConfigFile(ExpandPath(configFile))
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("read config %s: %w", configFile, err)
	}
	return v, nil
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the config file and environment.
func Load(configFile string) (*Config, *viper.Viper, error) {
	v, err := NewViper(configFile)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := FromViper(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// Validate checks the server URL and timing bounds.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url %q: must be an http(s) URL", c.ServerURL)
	}
	for name, d := range map[string]time.Duration{
		"sync_interval":         c.SyncInterval,
		"backoff_floor":         c.BackoffFloor,
		"backoff_ceiling":       c.BackoffCeiling,
		"connectivity_interval": c.ConnectivityInterval,
		"request_timeout":       c.RequestTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.BackoffCeiling < c.BackoffFloor {
		return fmt.Errorf("backoff_ceiling (%s) is below backoff_floor (%s)", c.BackoffCeiling, c.BackoffFloor)
	}
	return nil
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// DBPath is the SQLite file inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "gymtrack.db")
}

// OpenStorage opens (and migrates) the local store.
func (c *Config) OpenStorage(opts ...storage.Option) (*storage.DB, error) {
	return storage.Open(c.DBPath(), opts...)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// ConfigDir returns the XDG config directory for gymtrack.
func ConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "gymtrack")
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Save writes the settings held by v to path as YAML.
func Save(v *viper.Viper, path string) error {
	if path == "" {
		path = GetConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Chmod(path, 0600)
}
