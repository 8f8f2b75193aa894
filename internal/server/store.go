package server

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/neurostore/internal/hashx"
	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/dmitrijs2005/neurostore/internal/server/chunkstore"
	"github.com/dmitrijs2005/neurostore/internal/server/config"
	"github.com/dmitrijs2005/neurostore/internal/server/metrics"
	"github.com/redis/go-redis/v9"
)

var newS3Store = func(ctx context.Context, opts chunkstore.S3Options) (chunkstore.Store, error) {
	return chunkstore.NewS3Store(ctx, opts)
}

func backend(ctx context.Context, c *config.Config) (chunkstore.Store, error) {
	switch c.ChunkBackend {
	case config.BackendS3:
		return newS3Store(ctx, chunkstore.S3Options{
			Region:   c.S3Region,
			User:     c.S3RootUser,
			Password: c.S3RootPassword,
			Endpoint: c.S3BaseEndpoint,
			Bucket:   c.S3Bucket,
			Prefix:   c.S3Prefix,
		})
	case config.BackendFS:
		return chunkstore.NewFSStore(c.FSRoot)
	case config.BackendMemory:
		return chunkstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown chunk backend %q", c.ChunkBackend)
	}
}

// buildStore wraps the configured backend, innermost first, with retries,
// the redis index, the LRU existence cache, digest verification and
// metrics. The returned func closes whatever connections the chain opened.
func buildStore(ctx context.Context, c *config.Config, logger logging.Logger, m *metrics.Metrics) (chunkstore.Store, func() error, error) {
	closer := func() error { return nil }

	store, err := backend(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	if c.RetryAttempts > 0 {
		store = chunkstore.WithRetry(store, uint64(c.RetryAttempts), c.RetryBaseDelay)
	}

	observer := chunkstore.CacheObserver{M: m}

	if c.RedisURL != "" {
		opt, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "redis unreachable, index lookups will fall back to the backend", "error", err)
		}
		store = chunkstore.WithRedisIndex(store, rdb, logger.With("module", "redis_index"), observer)
		closer = rdb.Close
	}

	if c.CacheSize > 0 {
		store, err = chunkstore.WithExistenceCache(store, c.CacheSize, observer)
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
	}

	if c.VerifyHashes {
		hasher, err := hashx.New(c.HashAlgorithm)
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		store = chunkstore.WithVerification(store, hasher)
	}

	return chunkstore.WithMetrics(store, m), closer, nil
}
