package config

import (
	"flag"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/flagx"
)

// parseFlags overlays command-line flags:
//
//	-a addr      gRPC listen address
//	-m addr      metrics listen address ("" disables)
//	-d dsn       Postgres DSN ("" keeps nodes in memory)
//	-s secret    JWT HMAC secret
//	-t duration  issued token validity
//	-r addr      Redis address for inter-relay fan-out
//	-rate n      puts per second per user
//	-burst n     put burst per user
//	-cache n     read cache entries
//	-l level     log level
//	-issue user  print a token for user and exit
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-m", "-d", "-s", "-t", "-r", "-rate", "-burst", "-cache", "-l", "-issue"})

	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.GRPCAddr, "a", config.GRPCAddr, "gRPC listen address")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics listen address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "Postgres DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "JWT secret")
	fs.DurationVar(&config.TokenValidity, "t", config.TokenValidity, "token validity")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "Redis address")
	fs.Float64Var(&config.RateLimit, "rate", config.RateLimit, "puts per second per user")
	fs.IntVar(&config.RateBurst, "burst", config.RateBurst, "put burst per user")
	fs.IntVar(&config.CacheSize, "cache", config.CacheSize, "read cache entries")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.IssueTokenFor, "issue", config.IssueTokenFor, "issue a token for user and exit")

	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parse flags")
	}
	return nil
}
