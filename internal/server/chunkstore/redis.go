package chunkstore

import (
	"context"
	"strconv"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/redis/go-redis/v9"
)

// RedisIndexClient is the part of go-redis the index uses.
type RedisIndexClient interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

const redisKeyPrefix = "chunk:"

type redisIndexStore struct {
	Store
	rdb      RedisIndexClient
	logger   logging.Logger
	observer Observer
}

// WithRedisIndex keeps a shared existence index in Redis so replicas learn
// about each other's chunks without asking the backend. The backend stays
// the source of truth: an index miss or a Redis failure falls through to it.
func WithRedisIndex(next Store, rdb RedisIndexClient, logger logging.Logger, observer Observer) Store {
	return &redisIndexStore{Store: next, rdb: rdb, logger: logger, observer: observer}
}

func (s *redisIndexStore) observe(hit bool) {
	if s.observer != nil {
		s.observer.CacheLookup("redis", hit)
	}
}

func (s *redisIndexStore) Exists(ctx context.Context, hash string) (bool, error) {
	vals, err := s.rdb.MGet(ctx, redisKeyPrefix+hash).Result()
	if err == nil && len(vals) == 1 && vals[0] != nil {
		s.observe(true)
		return true, nil
	}
	if err != nil {
		s.logger.Warn(ctx, "redis index lookup failed", "error", err)
	}
	s.observe(false)

	ok, err := s.Store.Exists(ctx, hash)
	if err == nil && ok {
		s.remember(ctx, hash, -1)
	}
	return ok, err
}

func (s *redisIndexStore) Put(ctx context.Context, hash string, data []byte) error {
	if err := s.Store.Put(ctx, hash, data); err != nil {
		return err
	}
	s.remember(ctx, hash, len(data))
	return nil
}

func (s *redisIndexStore) Missing(ctx context.Context, hashes []string) ([]string, error) {
	unique := dedup(hashes)
	if len(unique) == 0 {
		return []string{}, nil
	}

	keys := make([]string, len(unique))
	for i, h := range unique {
		keys[i] = redisKeyPrefix + h
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil || len(vals) != len(unique) {
		if err != nil {
			s.logger.Warn(ctx, "redis index batch lookup failed", "error", err)
		}
		return s.Store.Missing(ctx, unique)
	}

	unknown := make([]string, 0, len(unique))
	for i, v := range vals {
		if v == nil {
			unknown = append(unknown, unique[i])
			s.observe(false)
			continue
		}
		s.observe(true)
	}
	if len(unknown) == 0 {
		return []string{}, nil
	}
	return s.Store.Missing(ctx, unknown)
}

// remember records hash in the index. size is -1 when unknown.
func (s *redisIndexStore) remember(ctx context.Context, hash string, size int) {
	if err := s.rdb.Set(ctx, redisKeyPrefix+hash, strconv.Itoa(size), 0).Err(); err != nil {
		s.logger.Warn(ctx, "redis index update failed", "hash", hash, "error", err)
	}
}
