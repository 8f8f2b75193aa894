// Package chunkstore is the global content-addressed chunk store. Chunks are
// keyed by their hash, written once and never modified or removed.
package chunkstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/hashx"
	"golang.org/x/sync/errgroup"
)

// Store is implemented by every backend and decorator.
//
// Exists returns (false, nil) only when the backend definitively reports the
// chunk absent; any other failure is an error wrapping
// common.ErrStorageTransient. Put is idempotent. Get returns
// common.ErrorNotFound for unknown hashes.
type Store interface {
	Exists(ctx context.Context, hash string) (bool, error)
	Put(ctx context.Context, hash string, data []byte) error
	Get(ctx context.Context, hash string) (io.ReadCloser, error)
	Missing(ctx context.Context, hashes []string) ([]string, error)
}

// DefaultProbeConcurrency bounds parallel Exists calls in MissingParallel.
const DefaultProbeConcurrency = 16

// MissingParallel answers Missing with concurrent Exists calls. The result
// keeps input order and drops duplicates.
func MissingParallel(ctx context.Context, s Store, hashes []string, limit int) ([]string, error) {
	unique := dedup(hashes)
	absent := make([]bool, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	if limit <= 0 {
		limit = DefaultProbeConcurrency
	}
	g.SetLimit(limit)

	for i, h := range unique {
		i, h := i, h
		g.Go(func() error {
			ok, err := s.Exists(gctx, h)
			if err != nil {
				return err
			}
			absent[i] = !ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(unique))
	for i, h := range unique {
		if absent[i] {
			out = append(out, h)
		}
	}
	return out, nil
}

// ReadChunk fetches a whole chunk into memory.
func ReadChunk(ctx context.Context, s Store, hash string) ([]byte, error) {
	rc, err := s.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("read chunk %s: %w: %w", hash, common.ErrStorageTransient, err)
	}
	return buf.Bytes(), nil
}

func dedup(hashes []string) []string {
	seen := make(map[string]struct{}, len(hashes))
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func checkHash(hash string) error {
	if !hashx.Valid(hash) {
		return fmt.Errorf("malformed chunk hash %q: %w", hash, common.ErrProtocol)
	}
	return nil
}

func transient(op, hash string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, hash, common.ErrStorageTransient, err)
}
