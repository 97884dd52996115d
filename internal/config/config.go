package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

const defaultIdleTimeout = 5 * time.Minute

// Config holds the application configuration
type Config struct {
	LogLevel string `yaml:"log_level"`

	// IdleInterval bounds how long a watcher sits in IDLE before forcing a
	// re-sync; IDLE pushes can be silently dropped by middleboxes, so this
	// doubles as a keepalive. Duration string, e.g. "5m".
	IdleInterval string `yaml:"idle_interval"`

	Icons IconConfig `yaml:"icons"`

	Accounts []AccountConfig `yaml:"accounts"`
}

// IconConfig names the tray icon files for each icon state. All fields are
// optional; the tray falls back to tooltip-only operation without them.
type IconConfig struct {
	Disconnected string `yaml:"disconnected"`
	Connected    string `yaml:"connected"`
	NewMail      string `yaml:"new_mail"`
}

// AccountConfig holds configuration for a single watched IMAP account
type AccountConfig struct {
	Name     string `yaml:"name"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`

	// Exactly one of Password and PasswordCmd must be set. PasswordCmd is a
	// shell command whose trimmed stdout is the secret, re-run on every
	// connection attempt so rotating credentials stay fresh.
	Password    string `yaml:"password"`
	PasswordCmd string `yaml:"password_cmd"`

	// NotifyCmd is an optional shell command run after each desktop
	// notification for this account.
	NotifyCmd string `yaml:"notify_cmd"`
}

// Addr returns the host:port dial address for the account.
func (a *AccountConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Server, a.Port)
}

// Load reads the configuration from path, or from the default location when
// path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read configuration file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse configuration file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/buzz/buzz.yaml, falling back to
// ~/.config/buzz/buzz.yaml.
func DefaultPath() string {
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, "buzz", "buzz.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "buzz", "buzz.yaml")
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for i := range c.Accounts {
		if c.Accounts[i].Port == 0 {
			c.Accounts[i].Port = 993
		}
	}
}

// IdleTimeout parses IdleInterval, applying the default when unset.
func (c *Config) IdleTimeout() time.Duration {
	if c.IdleInterval == "" {
		return defaultIdleTimeout
	}
	d, err := time.ParseDuration(c.IdleInterval)
	if err != nil || d <= 0 {
		return defaultIdleTimeout
	}
	return d
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}

	if c.IdleInterval != "" {
		if _, err := time.ParseDuration(c.IdleInterval); err != nil {
			return fmt.Errorf("invalid idle_interval: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if acc.Name == "" {
			return fmt.Errorf("account %d: name is required", i+1)
		}
		if seen[acc.Name] {
			return fmt.Errorf("account %s: duplicate name", acc.Name)
		}
		seen[acc.Name] = true

		if acc.Server == "" {
			return fmt.Errorf("account %s: server is required", acc.Name)
		}
		if acc.Port < 1 || acc.Port > 65535 {
			return fmt.Errorf("account %s: invalid port", acc.Name)
		}
		if acc.Username == "" {
			return fmt.Errorf("account %s: username is required", acc.Name)
		}
		if acc.Password != "" && acc.PasswordCmd != "" {
			return fmt.Errorf("account %s: provide only one of password or password_cmd", acc.Name)
		}
		if acc.Password == "" && acc.PasswordCmd == "" {
			return fmt.Errorf("account %s: either password or password_cmd must be provided", acc.Name)
		}
	}

	return nil
}

// GetAccountByName finds an account by name
func (c *Config) GetAccountByName(name string) (*AccountConfig, error) {
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i], nil
		}
	}
	return nil, fmt.Errorf("account not found: %s", name)
}

// AccountNames returns a list of all account names
func (c *Config) AccountNames() []string {
	names := make([]string, len(c.Accounts))
	for i := range c.Accounts {
		names[i] = c.Accounts[i].Name
	}
	return names
}
