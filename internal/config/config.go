// Package config loads contactdesk settings from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all contactdesk configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	State   StateConfig   `yaml:"state"`
	Logging LoggingConfig `yaml:"logging"`
	UI      UIConfig      `yaml:"ui"`
	Cache   CacheConfig   `yaml:"cache"`
}

// ServerConfig configures the contacts service endpoint.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// StateConfig locates the per-user state directory (session, cache, logs).
type StateConfig struct {
	Dir string `yaml:"dir"`
}

// CacheConfig configures the offline snapshot database.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // defaults to <state dir>/cache.db
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8080",
			Timeout: "15s",
		},
		State: StateConfig{
			Dir: defaultStateDir(),
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			DebugMode: false,
		},
		UI:    *DefaultUIConfig(),
		Cache: CacheConfig{Enabled: true},
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "contactdesk")
	}
	return ".contactdesk"
}

// DefaultPath returns the config file location used when --config is not given.
func DefaultPath() string {
	return filepath.Join(defaultStateDir(), "config.yaml")
}

// Load loads configuration from a YAML file.
// A missing file yields defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if u := os.Getenv("CONTACTDESK_SERVER"); u != "" {
		c.Server.BaseURL = u
	}
	if d := os.Getenv("CONTACTDESK_STATE_DIR"); d != "" {
		c.State.Dir = d
	}
	switch os.Getenv("CONTACTDESK_DEBUG") {
	case "1", "true", "yes":
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	case "0", "false", "no":
		c.Logging.DebugMode = false
	}
	if theme := os.Getenv("CONTACTDESK_THEME"); theme != "" {
		c.UI.Theme = theme
	}
}

// GetServerTimeout returns the per-request timeout as a duration.
func (c *Config) GetServerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// SessionPath returns where the persisted session lives.
func (c *Config) SessionPath() string {
	return filepath.Join(c.State.Dir, "session.json")
}

// CachePath returns the offline snapshot database path.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(c.State.Dir, "cache.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid server base_url %q: %w", c.Server.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid server base_url %q: scheme must be http or https", c.Server.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid server base_url %q: missing host", c.Server.BaseURL)
	}
	if c.State.Dir == "" {
		return fmt.Errorf("state dir not configured (set state.dir or CONTACTDESK_STATE_DIR)")
	}
	if !isValidTheme(c.UI.Theme) {
		return fmt.Errorf("invalid ui theme: %s (valid: %v)", c.UI.Theme, ValidThemes)
	}
	return nil
}
