// Package config handles relay configuration: defaults, an optional JSON
// file (-c / -config) and command-line flags, applied in that order.
package config

import "time"

// Config holds runtime settings for the relay.
//
// An empty DatabaseDSN keeps nodes in memory; an empty RedisAddr disables
// replication between relay instances; an empty MetricsAddr disables the
// Prometheus endpoint.
type Config struct {
	GRPCAddr      string
	MetricsAddr   string
	DatabaseDSN   string
	SecretKey     string
	TokenValidity time.Duration
	RedisAddr     string
	RedisChannel  string
	RateLimit     float64
	RateBurst     int
	CacheSize     int
	LogLevel      string

	// IssueTokenFor prints a token for this user id and exits.
	IssueTokenFor string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.GRPCAddr = ":7443"
	c.MetricsAddr = ":9090"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.TokenValidity = 24 * time.Hour
	c.RedisAddr = ""
	c.RedisChannel = "groupsync:nodes"
	c.RateLimit = 20
	c.RateBurst = 40
	c.CacheSize = 4096
	c.LogLevel = "info"
}

// LoadConfig applies defaults, then the JSON file named by -c/-config in
// args, then the remaining flags in args.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
