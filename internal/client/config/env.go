package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const EnvPrefix = "NEUROSTORE_"

// parseEnv overlays NEUROSTORE_* variables after loading an optional .env.
func parseEnv(cfg *Config) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	str("SERVER", &cfg.ServerEndpointAddr)
	str("TOKEN", &cfg.AccessToken)
	str("CLIENT_DB", &cfg.DatabasePath)
	str("HASH_ALGORITHM", &cfg.HashAlgorithm)
	str("LOG_BACKEND", &cfg.LogBackend)
	if v, ok := os.LookupEnv(EnvPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		cfg.Timeout = d
	}
}
