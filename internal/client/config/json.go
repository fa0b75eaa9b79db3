package config

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/flagx"
	"github.com/dmitrijs2005/groupsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Fields left
// out of the file keep their previous values.
type JsonConfig struct {
	UserID              string         `json:"user_id"`
	Backend             string         `json:"backend"`
	RelayAddr           string         `json:"relay_addr"`
	Token               string         `json:"token"`
	SQLitePath          string         `json:"sqlite_path"`
	EchoGrace           timex.Duration `json:"echo_grace"`
	KeystorePath        string         `json:"keystore_path"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	LogLevel            string         `json:"log_level"`
}

func parseJson(cfg *Config, args []string) error {
	jsonConfigFile := flagx.ConfigPath(args)
	if jsonConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return errors.Wrapf(err, "read config %s", jsonConfigFile)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return errors.Wrapf(err, "parse config %s", jsonConfigFile)
	}

	overlay(&cfg.UserID, jc.UserID)
	overlay(&cfg.Backend, jc.Backend)
	overlay(&cfg.RelayAddr, jc.RelayAddr)
	overlay(&cfg.Token, jc.Token)
	overlay(&cfg.SQLitePath, jc.SQLitePath)
	overlay(&cfg.KeystorePath, jc.KeystorePath)
	overlay(&cfg.LogLevel, jc.LogLevel)
	if jc.EchoGrace.Duration > 0 {
		cfg.EchoGrace = jc.EchoGrace.Duration
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	return nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
