package models

import (
	"fmt"
	"math"
	"sort"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/hashx"
)

// ChunkDescriptor locates one chunk inside one version of a file. End is
// inclusive.
type ChunkDescriptor struct {
	Index uint64 `json:"index"`
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
	Hash  string `json:"hash"`
}

// Size is the number of bytes the descriptor covers.
func (d ChunkDescriptor) Size() uint64 {
	return d.End - d.Start + 1
}

// Descriptors is the ordered chunk list of a version.
type Descriptors []ChunkDescriptor

// TotalSize is the byte count covered by the list.
func (ds Descriptors) TotalSize() int64 {
	if len(ds) == 0 {
		return 0
	}
	return int64(ds[len(ds)-1].End + 1)
}

// Sorted returns a copy ordered by index.
func (ds Descriptors) Sorted() Descriptors {
	out := make(Descriptors, len(ds))
	copy(out, ds)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Validate checks that the list is sorted, gap-free and non-overlapping,
// that every hash is well formed, and, when declaredSize is not negative,
// that the ranges add up to it.
//
// Shape problems wrap common.ErrProtocol; a size mismatch wraps
// common.ErrIntegrity.
func (ds Descriptors) Validate(declaredSize int64) error {
	var next uint64
	for i, d := range ds {
		if d.Index != uint64(i) {
			return fmt.Errorf("%w: descriptor %d has index %d", common.ErrProtocol, i, d.Index)
		}
		if d.Start != next {
			return fmt.Errorf("%w: chunk %d starts at %d, expected %d", common.ErrProtocol, i, d.Start, next)
		}
		if d.End < d.Start {
			return fmt.Errorf("%w: chunk %d ends before it starts", common.ErrProtocol, i)
		}
		// End+1 must stay representable as a file size.
		if d.End >= math.MaxInt64 {
			return fmt.Errorf("%w: chunk %d ends at %d, past the largest file size", common.ErrProtocol, i, d.End)
		}
		if !hashx.Valid(d.Hash) {
			return fmt.Errorf("%w: chunk %d has malformed hash %q", common.ErrProtocol, i, d.Hash)
		}
		next = d.End + 1
	}

	if declaredSize >= 0 && ds.TotalSize() != declaredSize {
		return fmt.Errorf("%w: chunks cover %d bytes, file declares %d", common.ErrIntegrity, ds.TotalSize(), declaredSize)
	}

	return nil
}
