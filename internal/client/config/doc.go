// Package config loads runtime configuration for the neurostore CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected with -c or --config.
//  3. .env and NEUROSTORE_* environment variables.
//  4. Command-line flags bound by BindFlags, which override earlier values.
//
// # File schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "access_token": "eyJ...",
//	  "database_path": "neurostore.db",
//	  "hash_algorithm": "sha256",
//	  "timeout": "30m"
//	}
//
// Durations accept strings like "30s" or integer nanoseconds.
package config
