package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers the CLI's global flags on fs with the current values
// of cfg as defaults, so parsing overrides file and environment values.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.ServerEndpointAddr, "server", "a", cfg.ServerEndpointAddr, "address and port of the server")
	fs.StringVarP(&cfg.AccessToken, "token", "t", cfg.AccessToken, "access token (empty for anonymous access)")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "path of the local tracking database")
	fs.StringVar(&cfg.HashAlgorithm, "hash", cfg.HashAlgorithm, "chunk digest: sha256 or blake3")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "deadline of a single command (0 disables)")
	fs.StringVar(&cfg.LogBackend, "log", cfg.LogBackend, "log backend: slog or zap")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "log to stderr")
	// Read before cobra runs; declared so cobra accepts it.
	fs.StringP("config", "c", "", "path to a JSON or YAML config file")
}
