package config

import (
	"flag"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/flagx"
)

// parseFlags overlays the flags listed in the package doc. Only those flags
// are considered; anything else in args is ignored.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-u", "-b", "-a", "-t", "-db", "-g", "-k", "-i", "-l"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.UserID, "u", cfg.UserID, "user id")
	fs.StringVar(&cfg.Backend, "b", cfg.Backend, "store backend: memory, sqlite or relay")
	fs.StringVar(&cfg.RelayAddr, "a", cfg.RelayAddr, "relay address")
	fs.StringVar(&cfg.Token, "t", cfg.Token, "relay access token")
	fs.StringVar(&cfg.SQLitePath, "db", cfg.SQLitePath, "SQLite replica file")
	fs.DurationVar(&cfg.EchoGrace, "g", cfg.EchoGrace, "echo grace window")
	fs.StringVar(&cfg.KeystorePath, "k", cfg.KeystorePath, "wallet keystore file")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parse flags")
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	return nil
}
