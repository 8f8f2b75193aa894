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

// FileConfig mirrors Config for JSON and YAML decoding. Durations accept
// "1s" style strings or integer nanoseconds. Absent keys leave the current
// value alone.
type FileConfig struct {
	EndpointAddrGRPC string   `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP string   `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	AllowOrigins     []string `json:"allow_origins" yaml:"allow_origins"`
	DatabaseDriver   string   `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN      string   `json:"database_dsn" yaml:"database_dsn"`
	SecretKey        string   `json:"secret_key" yaml:"secret_key"`

	ChunkBackend   string `json:"chunk_backend" yaml:"chunk_backend"`
	S3RootUser     string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3Prefix       string `json:"s3_prefix" yaml:"s3_prefix"`
	FSRoot         string `json:"fs_root" yaml:"fs_root"`

	RedisURL       string          `json:"redis_url" yaml:"redis_url"`
	CacheSize      *int            `json:"cache_size" yaml:"cache_size"`
	RetryAttempts  *int            `json:"retry_attempts" yaml:"retry_attempts"`
	RetryBaseDelay *timex.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`
	VerifyHashes   *bool           `json:"verify_hashes" yaml:"verify_hashes"`
	HashAlgorithm  string          `json:"hash_algorithm" yaml:"hash_algorithm"`

	UploadWorkers int    `json:"upload_workers" yaml:"upload_workers"`
	ReadAhead     int    `json:"read_ahead" yaml:"read_ahead"`
	LogBackend    string `json:"log_backend" yaml:"log_backend"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// apply copies the values present in f onto config.
func (f *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, f.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, f.EndpointAddrHTTP)
	if f.AllowOrigins != nil {
		config.AllowOrigins = f.AllowOrigins
	}
	setString(&config.DatabaseDriver, f.DatabaseDriver)
	setString(&config.DatabaseDSN, f.DatabaseDSN)
	setString(&config.SecretKey, f.SecretKey)

	setString(&config.ChunkBackend, f.ChunkBackend)
	setString(&config.S3RootUser, f.S3RootUser)
	setString(&config.S3RootPassword, f.S3RootPassword)
	setString(&config.S3Bucket, f.S3Bucket)
	setString(&config.S3Region, f.S3Region)
	setString(&config.S3BaseEndpoint, f.S3BaseEndpoint)
	setString(&config.S3Prefix, f.S3Prefix)
	setString(&config.FSRoot, f.FSRoot)

	setString(&config.RedisURL, f.RedisURL)
	if f.CacheSize != nil {
		config.CacheSize = *f.CacheSize
	}
	if f.RetryAttempts != nil {
		config.RetryAttempts = *f.RetryAttempts
	}
	if f.RetryBaseDelay != nil {
		config.RetryBaseDelay = f.RetryBaseDelay.Duration
	}
	if f.VerifyHashes != nil {
		config.VerifyHashes = *f.VerifyHashes
	}
	setString(&config.HashAlgorithm, f.HashAlgorithm)

	setInt(&config.UploadWorkers, f.UploadWorkers)
	setInt(&config.ReadAhead, f.ReadAhead)
	setString(&config.LogBackend, f.LogBackend)
}

// parseFile loads the file named by -c/-config. Files ending in .yaml or
// .yml are decoded as YAML, anything else as JSON. Unreadable or invalid
// files panic.
func parseFile(config *Config) {

	// try flags
	configFile := flagx.ConfigFileFlag()

	// nothing to load
	if configFile == "" {
		return
	}

	file, err := os.ReadFile(configFile)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(file, c)
	default:
		err = json.Unmarshal(file, c)
	}
	if err != nil {
		panic(err)
	}

	c.apply(config)
}
