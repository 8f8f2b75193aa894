// Package boundary splits content into chunks and describes each one by
// offset range and digest. The server never chunks; it trusts whatever
// Producer the client ran.
package boundary

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/neurostore/internal/hashx"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/restic/chunker"
)

// Producer yields the ordered, contiguous chunk list of r.
type Producer interface {
	Produce(ctx context.Context, r io.Reader) (models.Descriptors, error)
}

const (
	DefaultMinSize     = 2048
	DefaultMaxSize     = 16384
	DefaultAverageBits = 13 // 8 KiB

	// Polynomial is fixed so that identical content cuts at identical
	// boundaries on every client and every run.
	Polynomial chunker.Pol = 0x3DA3358B4DC173
)

// RabinProducer finds boundaries with a Rabin rolling fingerprint.
type RabinProducer struct {
	Hasher      hashx.Hasher
	MinSize     uint
	MaxSize     uint
	AverageBits int
	Pol         chunker.Pol
}

func NewRabinProducer(h hashx.Hasher) *RabinProducer {
	return &RabinProducer{
		Hasher:      h,
		MinSize:     DefaultMinSize,
		MaxSize:     DefaultMaxSize,
		AverageBits: DefaultAverageBits,
		Pol:         Polynomial,
	}
}

// Produce reads r to the end. An empty input yields an empty list.
func (p *RabinProducer) Produce(ctx context.Context, r io.Reader) (models.Descriptors, error) {
	c := chunker.NewWithBoundaries(r, p.Pol, p.MinSize, p.MaxSize)
	if p.AverageBits > 0 {
		c.SetAverageBits(p.AverageBits)
	}

	out := make(models.Descriptors, 0)
	buf := make([]byte, p.MaxSize)
	for i := uint64(0); ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := c.Next(buf)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		out = append(out, models.ChunkDescriptor{
			Index: i,
			Start: uint64(chunk.Start),
			End:   uint64(chunk.Start) + uint64(chunk.Length) - 1,
			Hash:  p.Hasher.Sum(chunk.Data),
		})
	}
}

// ReadChunk reads the bytes d covers from src.
func ReadChunk(src io.ReaderAt, d models.ChunkDescriptor) ([]byte, error) {
	buf := make([]byte, d.Size())
	if _, err := src.ReadAt(buf, int64(d.Start)); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read chunk %d: %w", d.Index, err)
	}
	return buf, nil
}
