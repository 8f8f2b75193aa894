package chunkstore

import (
	"context"
	"io"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/server/metrics"
)

type meteredStore struct {
	next Store
	m    *metrics.Metrics
}

// WithMetrics counts operations, failures, latency and bytes written.
func WithMetrics(next Store, m *metrics.Metrics) Store {
	return &meteredStore{next: next, m: m}
}

func (s *meteredStore) track(op string, start time.Time, err error) {
	s.m.StoreOps.WithLabelValues(op).Inc()
	s.m.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		s.m.StoreErrors.WithLabelValues(op).Inc()
	}
}

func (s *meteredStore) Exists(ctx context.Context, hash string) (bool, error) {
	start := time.Now()
	ok, err := s.next.Exists(ctx, hash)
	s.track("exists", start, err)
	return ok, err
}

func (s *meteredStore) Put(ctx context.Context, hash string, data []byte) error {
	start := time.Now()
	err := s.next.Put(ctx, hash, data)
	s.track("put", start, err)
	if err == nil {
		s.m.StoreBytes.WithLabelValues("in").Add(float64(len(data)))
	}
	return err
}

func (s *meteredStore) Get(ctx context.Context, hash string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.next.Get(ctx, hash)
	s.track("get", start, err)
	if err != nil {
		return nil, err
	}
	return &countingReader{ReadCloser: rc, m: s.m}, nil
}

func (s *meteredStore) Missing(ctx context.Context, hashes []string) ([]string, error) {
	start := time.Now()
	out, err := s.next.Missing(ctx, hashes)
	s.track("missing", start, err)
	return out, err
}

type countingReader struct {
	io.ReadCloser
	m *metrics.Metrics
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.m.StoreBytes.WithLabelValues("out").Add(float64(n))
	return n, err
}

// CacheObserver feeds cache lookups into m.
type CacheObserver struct {
	M *metrics.Metrics
}

func (o CacheObserver) CacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	o.M.CacheLookups.WithLabelValues(cache, result).Inc()
}
