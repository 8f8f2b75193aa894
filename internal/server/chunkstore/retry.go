package chunkstore

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/sethvargo/go-retry"
)

type retryStore struct {
	next     Store
	attempts uint64
	base     time.Duration
}

// WithRetry retries operations that fail with common.ErrStorageTransient,
// backing off exponentially from base. attempts counts retries after the
// first call. Other errors and context cancellation end the loop at once.
func WithRetry(next Store, attempts uint64, base time.Duration) Store {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	return &retryStore{next: next, attempts: attempts, base: base}
}

func (s *retryStore) backoff() retry.Backoff {
	b := retry.NewExponential(s.base)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(s.attempts, b)
}

func (s *retryStore) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && errors.Is(err, common.ErrStorageTransient) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *retryStore) Exists(ctx context.Context, hash string) (bool, error) {
	var ok bool
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		ok, err = s.next.Exists(ctx, hash)
		return err
	})
	return ok, err
}

func (s *retryStore) Put(ctx context.Context, hash string, data []byte) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.next.Put(ctx, hash, data)
	})
}

func (s *retryStore) Get(ctx context.Context, hash string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		rc, err = s.next.Get(ctx, hash)
		return err
	})
	return rc, err
}

func (s *retryStore) Missing(ctx context.Context, hashes []string) ([]string, error) {
	var out []string
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.next.Missing(ctx, hashes)
		return err
	})
	return out, err
}
