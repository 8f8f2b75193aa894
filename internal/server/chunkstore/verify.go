package chunkstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/hashx"
)

type verifyingStore struct {
	Store
	hasher hashx.Hasher
}

// WithVerification rejects, with common.ErrIntegrity, a Put whose data does
// not hash to the claimed key.
func WithVerification(next Store, hasher hashx.Hasher) Store {
	return &verifyingStore{Store: next, hasher: hasher}
}

func (s *verifyingStore) Put(ctx context.Context, hash string, data []byte) error {
	if got := s.hasher.Sum(data); got != hash {
		return fmt.Errorf("chunk claims %s but hashes to %s: %w", hash, got, common.ErrIntegrity)
	}
	return s.Store.Put(ctx, hash, data)
}
