// Package config loads runtime configuration for the groupsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-u string    user id (required)
//	-b string    store backend: memory, sqlite or relay
//	-a string    relay address (host:port)
//	-t string    relay access token
//	-db string   SQLite replica file
//	-g duration  echo grace window
//	-k string    wallet keystore file; empty disables attestation
//	-i int       online status check interval (seconds)
//	-l string    log level
//
// # JSON schema
//
// Durations accept either strings like "2s" or integer nanoseconds:
//
//	{
//	  "user_id": "alice",
//	  "backend": "relay",
//	  "relay_addr": "127.0.0.1:7443",
//	  "token": "eyJ...",
//	  "echo_grace": "2s",
//	  "online_check_interval": "3s"
//	}
package config
