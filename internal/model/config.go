package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig describes how to reach the LMS REST backend.
type ServerConfig struct {
	// BaseURL is the API root, e.g. http://localhost:5000/api.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every request, connect through response.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// Timeout returns TimeoutSec as a duration.
func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// NotificationConfig controls the notification poller.
type NotificationConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// PollInterval returns PollIntervalSec as a duration.
func (c NotificationConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// CredentialConfig selects where the bearer token is persisted.
type CredentialConfig struct {
	// Backend is "auto" (OS keychain first) or "file".
	Backend string `mapstructure:"backend" yaml:"backend"`
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// StorageConfig holds the local SQLite database location.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// LoggingConfig holds log verbosity and optional remote error reporting.
type LoggingConfig struct {
	Debug        bool   `mapstructure:"debug" yaml:"debug"`
	RollbarToken string `mapstructure:"rollbar_token" yaml:"rollbar_token"`
	Environment  string `mapstructure:"environment" yaml:"environment"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server        ServerConfig       `mapstructure:"server" yaml:"server"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Credentials   CredentialConfig   `mapstructure:"credentials" yaml:"credentials"`
	Storage       StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Logging       LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Display       DisplayConfig      `mapstructure:"display" yaml:"display"`
}

// configDir returns ~/.config/lms, or the working directory if the home
// directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "lms")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/lms/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// setDefaults registers every known key so that environment overrides
// resolve even when the config file does not mention them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.base_url", "http://localhost:5000/api")
	v.SetDefault("server.timeout_sec", 10)
	v.SetDefault("notifications.poll_interval_sec", 30)
	v.SetDefault("credentials.backend", "auto")
	v.SetDefault("credentials.file_dir", filepath.Join(configDir(), "credentials"))
	v.SetDefault("storage.db_path", filepath.Join(configDir(), "lms.db"))
	v.SetDefault("logging.debug", false)
	v.SetDefault("logging.rollbar_token", "")
	v.SetDefault("logging.environment", "development")
	v.SetDefault("display.theme", "default")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first, and LMS_* variables
// (LMS_SERVER_BASE_URL, LMS_LOGGING_DEBUG, ...) override file values.
// A missing config file is not an error.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Server.TimeoutSec <= 0 {
		cfg.Server.TimeoutSec = 10
	}
	if cfg.Notifications.PollIntervalSec <= 0 {
		cfg.Notifications.PollIntervalSec = 30
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

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

	v.Set("server", cfg.Server)
	v.Set("notifications", cfg.Notifications)
	v.Set("credentials", cfg.Credentials)
	v.Set("storage", cfg.Storage)
	v.Set("logging", cfg.Logging)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
