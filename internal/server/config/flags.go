package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/neurostore/internal/flagx"
)

var knownFlags = []string{
	"-a", "-w", "-driver", "-d", "-s",
	"-backend", "-u", "-p", "-b", "-g", "-e", "-prefix", "-fs-root",
	"-redis", "-cache", "-retries", "-retry-delay", "-verify", "-hash",
	"-workers", "-read-ahead", "-log",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string        gRPC bind address (e.g., ":50051")
//	-w string        HTTP gateway bind address, "" disables it
//	-driver string   metadata driver, pgx or sqlite
//	-d string        database DSN
//	-s string        JWT HMAC secret key
//	-backend string  chunk backend: s3, fs or memory
//	-u, -p string    S3 root user and password
//	-b, -g string    S3 bucket and region
//	-e string        S3 base endpoint
//	-prefix string   S3 key prefix
//	-fs-root string  fs backend directory
//	-redis string    redis URL of the shared existence index
//	-cache int       existence LRU size
//	-retries int     storage retry attempts
//	-retry-delay d   first retry delay
//	-verify bool     verify chunk digests on upload
//	-hash string     sha256 or blake3
//	-workers int     concurrent chunk writes per upload
//	-read-ahead int  chunks fetched ahead of the download cursor
//	-log string      slog or zap
//
// os.Args is first filtered with flagx.FilterArgs so flags owned by other
// components do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "address and port to run HTTP gateway")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver (pgx|sqlite)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.StringVar(&config.ChunkBackend, "backend", config.ChunkBackend, "chunk backend (s3|fs|memory)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3Prefix, "prefix", config.S3Prefix, "S3 key prefix")
	fs.StringVar(&config.FSRoot, "fs-root", config.FSRoot, "fs backend root directory")

	fs.StringVar(&config.RedisURL, "redis", config.RedisURL, "redis URL")
	fs.IntVar(&config.CacheSize, "cache", config.CacheSize, "existence cache size")
	fs.IntVar(&config.RetryAttempts, "retries", config.RetryAttempts, "storage retry attempts")
	fs.DurationVar(&config.RetryBaseDelay, "retry-delay", config.RetryBaseDelay, "first storage retry delay")
	fs.BoolVar(&config.VerifyHashes, "verify", config.VerifyHashes, "verify chunk digests")
	fs.StringVar(&config.HashAlgorithm, "hash", config.HashAlgorithm, "hash algorithm (sha256|blake3)")

	fs.IntVar(&config.UploadWorkers, "workers", config.UploadWorkers, "upload workers")
	fs.IntVar(&config.ReadAhead, "read-ahead", config.ReadAhead, "download read-ahead")
	fs.StringVar(&config.LogBackend, "log", config.LogBackend, "log backend (slog|zap)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
