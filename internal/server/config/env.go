package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "NEUROSTORE_"

// envFile is the dotenv file loaded before the environment is read. Values
// already present in the environment win.
func envFile() string {
	if p, ok := os.LookupEnv(EnvPrefix + "ENV_FILE"); ok {
		return p
	}
	return ".env"
}

// parseEnv overlays NEUROSTORE_* variables. A missing .env is fine; a
// malformed one or an unparsable number panics.
func parseEnv(config *Config) {
	if err := godotenv.Load(envFile()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				panic(err)
			}
			*dst = n
		}
	}

	str("GRPC_ADDRESS", &config.EndpointAddrGRPC)
	str("HTTP_ADDRESS", &config.EndpointAddrHTTP)
	if v, ok := os.LookupEnv(EnvPrefix + "ALLOW_ORIGINS"); ok {
		config.AllowOrigins = splitList(v)
	}
	str("DATABASE_DRIVER", &config.DatabaseDriver)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("SECRET_KEY", &config.SecretKey)

	str("CHUNK_BACKEND", &config.ChunkBackend)
	str("S3_ROOT_USER", &config.S3RootUser)
	str("S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	str("S3_PREFIX", &config.S3Prefix)
	str("FS_ROOT", &config.FSRoot)

	str("REDIS_URL", &config.RedisURL)
	num("CACHE_SIZE", &config.CacheSize)
	num("RETRY_ATTEMPTS", &config.RetryAttempts)
	if v, ok := os.LookupEnv(EnvPrefix + "RETRY_BASE_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		config.RetryBaseDelay = d
	}
	if v, ok := os.LookupEnv(EnvPrefix + "VERIFY_HASHES"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		config.VerifyHashes = b
	}
	str("HASH_ALGORITHM", &config.HashAlgorithm)

	num("UPLOAD_WORKERS", &config.UploadWorkers)
	num("READ_AHEAD", &config.ReadAhead)
	str("LOG_BACKEND", &config.LogBackend)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
