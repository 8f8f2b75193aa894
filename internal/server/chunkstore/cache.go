package chunkstore

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Observer is told about cache lookups; see CacheObserver. May be nil.
type Observer interface {
	CacheLookup(cache string, hit bool)
}

type cachingStore struct {
	Store
	known    *lru.Cache[string, struct{}]
	observer Observer
}

// WithExistenceCache remembers hashes known to exist. Chunks are never
// removed, so a positive answer stays true; negative answers are not cached.
func WithExistenceCache(next Store, size int, observer Observer) (Store, error) {
	known, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("existence cache: %w", err)
	}
	return &cachingStore{Store: next, known: known, observer: observer}, nil
}

func (s *cachingStore) observe(hit bool) {
	if s.observer != nil {
		s.observer.CacheLookup("lru", hit)
	}
}

func (s *cachingStore) Exists(ctx context.Context, hash string) (bool, error) {
	if s.known.Contains(hash) {
		s.observe(true)
		return true, nil
	}
	s.observe(false)
	ok, err := s.Store.Exists(ctx, hash)
	if err == nil && ok {
		s.known.Add(hash, struct{}{})
	}
	return ok, err
}

func (s *cachingStore) Put(ctx context.Context, hash string, data []byte) error {
	if s.known.Contains(hash) {
		s.observe(true)
		return nil
	}
	if err := s.Store.Put(ctx, hash, data); err != nil {
		return err
	}
	s.known.Add(hash, struct{}{})
	return nil
}

func (s *cachingStore) Missing(ctx context.Context, hashes []string) ([]string, error) {
	unknown := make([]string, 0, len(hashes))
	for _, h := range dedup(hashes) {
		if s.known.Contains(h) {
			s.observe(true)
			continue
		}
		unknown = append(unknown, h)
	}
	if len(unknown) == 0 {
		return []string{}, nil
	}

	missing, err := s.Store.Missing(ctx, unknown)
	if err != nil {
		return nil, err
	}

	absent := make(map[string]struct{}, len(missing))
	for _, h := range missing {
		absent[h] = struct{}{}
	}
	for _, h := range unknown {
		if _, ok := absent[h]; !ok {
			s.known.Add(h, struct{}{})
		}
	}
	return missing, nil
}
