package config

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRelay  = "relay"
)

// Config holds runtime settings for the client.
type Config struct {
	UserID              string
	Backend             string
	RelayAddr           string
	Token               string
	SQLitePath          string
	EchoGrace           time.Duration
	KeystorePath        string
	OnlineCheckInterval time.Duration
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Backend = BackendMemory
	c.RelayAddr = "127.0.0.1:7443"
	c.SQLitePath = "groupsync.db"
	c.EchoGrace = 2 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.LogLevel = "warn"
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	if c.UserID == "" {
		return errors.New("user id is required (-u)")
	}
	switch c.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRelay:
		if c.RelayAddr == "" {
			return errors.New("relay backend needs a relay address (-a)")
		}
	default:
		return errors.Newf("unknown backend %q", c.Backend)
	}
	if c.EchoGrace <= 0 {
		return errors.New("echo grace must be positive")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
