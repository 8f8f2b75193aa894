package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/neurostore/internal/flagx"
	"github.com/dmitrijs2005/neurostore/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for file decoding.
type FileConfig struct {
	ServerEndpointAddr string          `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	AccessToken        string          `json:"access_token" yaml:"access_token"`
	DatabasePath       string          `json:"database_path" yaml:"database_path"`
	HashAlgorithm      string          `json:"hash_algorithm" yaml:"hash_algorithm"`
	Timeout            *timex.Duration `json:"timeout" yaml:"timeout"`
	LogBackend         string          `json:"log_backend" yaml:"log_backend"`
}

func (f *FileConfig) apply(cfg *Config) {
	if f.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = f.ServerEndpointAddr
	}
	if f.AccessToken != "" {
		cfg.AccessToken = f.AccessToken
	}
	if f.DatabasePath != "" {
		cfg.DatabasePath = f.DatabasePath
	}
	if f.HashAlgorithm != "" {
		cfg.HashAlgorithm = f.HashAlgorithm
	}
	if f.Timeout != nil {
		cfg.Timeout = f.Timeout.Duration
	}
	if f.LogBackend != "" {
		cfg.LogBackend = f.LogBackend
	}
}

// parseFile overlays cfg with the file named by -c/--config. YAML is chosen
// by extension. Panics on read or decode errors.
func parseFile(cfg *Config) {
	configFile := flagx.ConfigFileFlag()
	if configFile == "" {
		return
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}
