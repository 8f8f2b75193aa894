package boundary

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/dmitrijs2005/neurostore/internal/hashx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(seed int64, n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func sha(t *testing.T) hashx.Hasher {
	t.Helper()
	h, err := hashx.New(hashx.SHA256)
	require.NoError(t, err)
	return h
}

func TestRabinProducer_CoversInput(t *testing.T) {
	h := sha(t)
	data := randomBytes(1, 200_000)

	ds, err := NewRabinProducer(h).Produce(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, ds.Validate(int64(len(data))))

	for i, d := range ds {
		assert.Equal(t, uint64(i), d.Index)
		if i < len(ds)-1 {
			assert.GreaterOrEqual(t, d.Size(), uint64(DefaultMinSize))
		}
		assert.LessOrEqual(t, d.Size(), uint64(DefaultMaxSize))

		chunk, err := ReadChunk(bytes.NewReader(data), d)
		require.NoError(t, err)
		assert.Equal(t, d.Hash, h.Sum(chunk))
	}
}

func TestRabinProducer_Deterministic(t *testing.T) {
	data := randomBytes(2, 100_000)
	p := NewRabinProducer(sha(t))

	a, err := p.Produce(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	b, err := p.Produce(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRabinProducer_LocalEditKeepsMostChunks(t *testing.T) {
	data := randomBytes(3, 300_000)
	edited := append([]byte{}, data...)
	copy(edited[150_000:], []byte("a small edit in the middle"))

	p := NewRabinProducer(sha(t))
	before, err := p.Produce(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	after, err := p.Produce(context.Background(), bytes.NewReader(edited))
	require.NoError(t, err)

	known := make(map[string]bool, len(before))
	for _, d := range before {
		known[d.Hash] = true
	}
	changed := 0
	for _, d := range after {
		if !known[d.Hash] {
			changed++
		}
	}
	assert.LessOrEqual(t, changed, 3)
	assert.Greater(t, len(after), 10)
}

func TestRabinProducer_Empty(t *testing.T) {
	ds, err := NewRabinProducer(sha(t)).Produce(context.Background(), bytes.NewReader(nil))
	require.NoError(t, err)
	assert.NotNil(t, ds)
	assert.Empty(t, ds)
}

func TestRabinProducer_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRabinProducer(sha(t)).Produce(ctx, bytes.NewReader(randomBytes(4, 10_000)))
	assert.ErrorIs(t, err, context.Canceled)
}
