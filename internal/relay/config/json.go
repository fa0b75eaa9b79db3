package config

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/flagx"
	"github.com/dmitrijs2005/groupsync/internal/timex"
)

// JsonConfig is the on-disk shape of the relay config. Pointer fields let
// a file override only what it mentions.
type JsonConfig struct {
	GRPCAddr      *string         `json:"grpc_addr"`
	MetricsAddr   *string         `json:"metrics_addr"`
	DatabaseDSN   *string         `json:"database_dsn"`
	SecretKey     *string         `json:"secret_key"`
	TokenValidity *timex.Duration `json:"token_validity"`
	RedisAddr     *string         `json:"redis_addr"`
	RedisChannel  *string         `json:"redis_channel"`
	RateLimit     *float64        `json:"rate_limit"`
	RateBurst     *int            `json:"rate_burst"`
	CacheSize     *int            `json:"cache_size"`
	LogLevel      *string         `json:"log_level"`
}

func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	var c JsonConfig
	if err := json.Unmarshal(b, &c); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}

	setIf(&config.GRPCAddr, c.GRPCAddr)
	setIf(&config.MetricsAddr, c.MetricsAddr)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SecretKey, c.SecretKey)
	if c.TokenValidity != nil {
		config.TokenValidity = c.TokenValidity.Duration
	}
	setIf(&config.RedisAddr, c.RedisAddr)
	setIf(&config.RedisChannel, c.RedisChannel)
	setIf(&config.RateLimit, c.RateLimit)
	setIf(&config.RateBurst, c.RateBurst)
	setIf(&config.CacheSize, c.CacheSize)
	setIf(&config.LogLevel, c.LogLevel)
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
