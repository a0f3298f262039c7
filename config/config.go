// Package config provides configuration management for VPN Panel.
// It handles loading, saving, and managing application settings.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/keyring"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// BackendURL is the address of the bitmask daemon's HTTP API.
	BackendURL string `yaml:"backend_url"`
	// TokenFile is where the daemon writes its API token.
	TokenFile string `yaml:"token_file"`
	// Account is the address shown when the daemon reports no active user.
	Account string `yaml:"account"`
	// PollInterval is how often the tunnel status is polled while up.
	PollInterval time.Duration `yaml:"poll_interval"`
	// EventPollInterval is the pause after a failed daemon event poll.
	EventPollInterval time.Duration `yaml:"event_poll_interval"`
	// ShowNotifications enables desktop notifications for connection events.
	ShowNotifications bool `yaml:"show_notifications"`
	// Journal records every state change in a local database.
	Journal bool `yaml:"journal"`
	// ListenAddr serves the local status API and metrics when set.
	ListenAddr string `yaml:"listen_addr"`
	// Tray shows a system tray indicator.
	Tray bool `yaml:"tray"`
	// LogLevel is one of "debug", "info", "warn" or "error".
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the default configuration.
// These are sensible defaults for most users.
func DefaultConfig() *Config {
	return &Config{
		BackendURL:        common.DefaultBackendURL,
		TokenFile:         keyring.DefaultTokenFile(),
		PollInterval:      common.StatusPollInterval,
		EventPollInterval: common.EventPollInterval,
		ShowNotifications: true,
		Journal:           true,
		ListenAddr:        "",
		Tray:              false,
		LogLevel:          "info",
	}
}

// Load loads the configuration from the config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration stored at path.
func LoadFrom(configPath string) (*Config, error) {
	// If it doesn't exist, return default configuration
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.SaveTo(configPath); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", common.ErrConfigLoad, configPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	config := DefaultConfig()
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", common.ErrConfigLoad, configPath, err)
	}

	// Validate values
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}

	return config, nil
}

// validate verifies that configuration values are valid.
// Out-of-range values fall back to their defaults; only an unusable
// backend URL is an error.
func (c *Config) validate() error {
	defaults := DefaultConfig()

	if strings.TrimSpace(c.BackendURL) == "" {
		c.BackendURL = defaults.BackendURL
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend_url %q is not an http(s) URL", c.BackendURL)
	}

	if c.PollInterval < 100*time.Millisecond || c.PollInterval > time.Minute {
		c.PollInterval = defaults.PollInterval
	}
	if c.EventPollInterval < 100*time.Millisecond || c.EventPollInterval > time.Minute {
		c.EventPollInterval = defaults.EventPollInterval
	}

	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			c.ListenAddr = "" // Fallback to disabled
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		c.LogLevel = defaults.LogLevel
	}

	// Either user@domain or a bare provider domain.
	c.Account = strings.TrimSpace(c.Account)
	return nil
}

// Save saves the configuration to the file
func (c *Config) Save() error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo saves the configuration to configPath.
func (c *Config) SaveTo(configPath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("%w: creating config directory: %v", common.ErrConfigSave, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: serializing: %v", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	return nil
}

// Path returns the location of the configuration file.
func Path() (string, error) {
	return getConfigPath()
}

func getConfigPath() (string, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrConfigLoad, err)
	}
	return filepath.Join(dir, common.ConfigFileName), nil
}
