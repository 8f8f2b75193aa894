package chunkstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(data []byte) string {
	s := sha256.Sum256(data)
	return hex.EncodeToString(s[:])
}

// flakyStore fails the first n calls of every kind with err, then delegates.
type flakyStore struct {
	Store
	mu    sync.Mutex
	fails int
	err   error
	calls int
}

func (f *flakyStore) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		return f.err
	}
	return nil
}

func (f *flakyStore) Exists(ctx context.Context, hash string) (bool, error) {
	if err := f.fail(); err != nil {
		return false, err
	}
	return f.Store.Exists(ctx, hash)
}

func (f *flakyStore) Put(ctx context.Context, hash string, data []byte) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.Put(ctx, hash, data)
}

func (f *flakyStore) Get(ctx context.Context, hash string) (io.ReadCloser, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, hash)
}

// storeContract runs the behaviour every backend shares.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	data := []byte("hello chunk")
	h := sum(data)

	ok, err := s.Exists(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, h)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, s.Put(ctx, h, data))
	require.NoError(t, s.Put(ctx, h, data), "put must be idempotent")

	ok, err = s.Exists(ctx, h)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := ReadChunk(ctx, s, h)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	other := sum([]byte("other"))
	missing, err := s.Missing(ctx, []string{other, h, other})
	require.NoError(t, err)
	assert.Equal(t, []string{other}, missing)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	storeContract(t, s)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Writes())
}

func TestMemoryStore_RejectsMalformedHash(t *testing.T) {
	err := NewMemoryStore().Put(context.Background(), "../etc/passwd", []byte("x"))
	assert.ErrorIs(t, err, common.ErrProtocol)
}

func TestMemoryStore_CopiesInput(t *testing.T) {
	s := NewMemoryStore()
	data := []byte("abc")
	h := sum(data)
	require.NoError(t, s.Put(context.Background(), h, data))
	data[0] = 'z'

	got, err := ReadChunk(context.Background(), s, h)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFSStore(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	storeContract(t, s)
}

func TestFSStore_ShardedLayout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFSStore(root)
	require.NoError(t, err)

	h := sum([]byte("x"))
	require.NoError(t, s.Put(context.Background(), h, []byte("x")))
	assert.True(t, strings.HasPrefix(s.path(h), root+"/"+h[0:2]+"/"+h[2:4]+"/"))
	assert.FileExists(t, s.path(h))
}

func TestFSStore_RejectsTraversal(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Exists(context.Background(), "../../"+strings.Repeat("a", 58))
	assert.ErrorIs(t, err, common.ErrProtocol)
	_, err = s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrProtocol)
}

func TestMissingParallel_PropagatesErrors(t *testing.T) {
	f := &flakyStore{Store: NewMemoryStore(), fails: 100, err: fmt.Errorf("down: %w", common.ErrStorageTransient)}

	_, err := MissingParallel(context.Background(), f, []string{sum([]byte("a")), sum([]byte("b"))}, 2)
	assert.ErrorIs(t, err, common.ErrStorageTransient)
}

func TestMissingParallel_KeepsOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var hashes []string
	for i := 0; i < 50; i++ {
		d := []byte(fmt.Sprintf("chunk-%d", i))
		hashes = append(hashes, sum(d))
		if i%3 == 0 {
			require.NoError(t, s.Put(ctx, sum(d), d))
		}
	}

	got, err := MissingParallel(ctx, s, hashes, 4)
	require.NoError(t, err)

	var want []string
	for i, h := range hashes {
		if i%3 != 0 {
			want = append(want, h)
		}
	}
	assert.Equal(t, want, got)
}
