package model

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment overrides, e.g. SHOPFRONT_API_BASE_URL.
const envPrefix = "SHOPFRONT"

// APIConfig holds the REST backend settings.
type APIConfig struct {
	// BaseURL is the root of the REST API (e.g., https://shop.example.com/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// RealtimeConfig holds the push channel settings.
type RealtimeConfig struct {
	// URL is the WebSocket endpoint. Empty disables the channel.
	URL string `mapstructure:"url" yaml:"url"`

	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// DisabledPattern is matched against api.base_url; a match means the
	// deployment cannot host persistent connections.
	DisabledPattern string `mapstructure:"disabled_pattern" yaml:"disabled_pattern"`

	// MaxAttempts is the number of consecutive failed dials before giving up.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`

	// BackoffMS is the fixed delay between reconnect attempts.
	BackoffMS int `mapstructure:"backoff_ms" yaml:"backoff_ms"`
}

// NotificationsConfig holds the polling fallback settings.
type NotificationsConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	FetchLimit      int `mapstructure:"fetch_limit" yaml:"fetch_limit"`

	// RedundantPolling keeps the poller running next to the real-time channel.
	RedundantPolling bool `mapstructure:"redundant_polling" yaml:"redundant_polling"`
}

// StoreConfig holds the local database settings.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	// ToastTTLSec is how long a transient alert stays on screen.
	ToastTTLSec int `mapstructure:"toast_ttl_sec" yaml:"toast_ttl_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Realtime      RealtimeConfig      `mapstructure:"realtime" yaml:"realtime"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
}

// PollInterval returns the polling interval as a duration.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Notifications.PollIntervalSec) * time.Second
}

// RealtimeBackoff returns the reconnect delay as a duration.
func (c *AppConfig) RealtimeBackoff() time.Duration {
	return time.Duration(c.Realtime.BackoffMS) * time.Millisecond
}

// APITimeout returns the per-request timeout as a duration.
func (c *AppConfig) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// ToastTTL returns how long a transient alert stays on screen.
func (c *AppConfig) ToastTTL() time.Duration {
	return time.Duration(c.Display.ToastTTLSec) * time.Second
}

// RealtimeSupported reports whether the deployment can host the push
// channel. It is decided once per session.
func (c *AppConfig) RealtimeSupported() bool {
	if !c.Realtime.Enabled || c.Realtime.URL == "" {
		return false
	}
	if c.Realtime.DisabledPattern == "" {
		return true
	}
	re, err := regexp.Compile(c.Realtime.DisabledPattern)
	if err != nil {
		// An unreadable pattern cannot vouch for the host.
		return false
	}
	return !re.MatchString(c.API.BaseURL)
}

// DefaultConfigDir returns ~/.config/shopfront.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "shopfront")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/shopfront/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// defaults lists every key with its default so that environment overrides
// resolve through viper.AutomaticEnv.
func defaults() map[string]interface{} {
	dir := DefaultConfigDir()
	return map[string]interface{}{
		"api.base_url":                    "http://localhost:5000/api",
		"api.timeout_sec":                 30,
		"realtime.url":                    "ws://localhost:5000/ws",
		"realtime.enabled":                true,
		"realtime.disabled_pattern":       `(?i)\.vercel\.app|\.netlify\.app`,
		"realtime.max_attempts":           5,
		"realtime.backoff_ms":             1000,
		"notifications.poll_interval_sec": 60,
		"notifications.fetch_limit":       10,
		"notifications.redundant_polling": true,
		"store.path":                      filepath.Join(dir, "shopfront.db"),
		"log.level":                       "info",
		"log.file":                        filepath.Join(dir, "shopfront.log"),
		"display.toast_ttl_sec":           5,
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// then applies SHOPFRONT_* environment overrides (a .env file in the working
// directory is loaded first when present). A missing file yields defaults.
func LoadConfig(path string) (*AppConfig, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		_, pathErr := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !pathErr && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Notifications.PollIntervalSec <= 0 {
		cfg.Notifications.PollIntervalSec = 60
	}
	if cfg.Notifications.FetchLimit <= 0 {
		cfg.Notifications.FetchLimit = 10
	}
	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = 30
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

	v.Set("api", cfg.API)
	v.Set("realtime", cfg.Realtime)
	v.Set("notifications", cfg.Notifications)
	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
