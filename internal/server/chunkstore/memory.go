package chunkstore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/dmitrijs2005/neurostore/internal/common"
)

// MemoryStore keeps chunks in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string][]byte
	writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string][]byte)}
}

func (s *MemoryStore) Exists(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[hash]
	return ok, nil
}

func (s *MemoryStore) Put(_ context.Context, hash string, data []byte) error {
	if err := checkHash(hash); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[hash]; ok {
		return nil
	}
	s.chunks[hash] = bytes.Clone(data)
	s.writes++
	return nil
}

func (s *MemoryStore) Get(_ context.Context, hash string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.chunks[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Missing(ctx context.Context, hashes []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	for _, h := range dedup(hashes) {
		if _, ok := s.chunks[h]; !ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// Len returns the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Writes counts the Put calls that actually stored bytes.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
