package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/hashx"
)

// Config holds runtime settings for the neurostore CLI.
type Config struct {
	ServerEndpointAddr string
	// AccessToken is sent with every call; empty means anonymous.
	AccessToken  string
	DatabasePath string
	// HashAlgorithm must match the server's.
	HashAlgorithm string
	// Timeout bounds a single command, 0 disables it.
	Timeout    time.Duration
	LogBackend string
	Verbose    bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "neurostore.db"
	c.HashAlgorithm = hashx.SHA256
	c.Timeout = 30 * time.Minute
	c.LogBackend = "slog"
}

// LoadConfig applies defaults, then the config file, then the environment.
// Flags are applied later by cobra through BindFlags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseEnv(cfg)
	return cfg
}

func (c *Config) Validate() error {
	if c.ServerEndpointAddr == "" {
		return fmt.Errorf("config: server address is empty")
	}
	if _, err := hashx.New(c.HashAlgorithm); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: negative timeout")
	}
	return nil
}
