package chunkstore

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/filex"
	"github.com/google/renameio"
)

// FSStore keeps chunks as files under root, sharded by the first two byte
// pairs of the hash: root/ab/cd/abcd....
// Writes go through a temp file and rename, so a reader never sees a
// partial chunk.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) path(hash string) string {
	return filepath.Join(s.root, hash[0:2], hash[2:4], hash)
}

func (s *FSStore) Exists(_ context.Context, hash string) (bool, error) {
	if err := checkHash(hash); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(hash))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, transient("stat", hash, err)
}

func (s *FSStore) Put(ctx context.Context, hash string, data []byte) error {
	ok, err := s.Exists(ctx, hash)
	if err != nil || ok {
		return err
	}

	p := s.path(hash)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return transient("mkdir", hash, err)
	}
	if err := renameio.WriteFile(p, data, 0o640); err != nil {
		return transient("write", hash, err)
	}
	return nil
}

func (s *FSStore) Get(_ context.Context, hash string) (io.ReadCloser, error) {
	if err := checkHash(hash); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, transient("open", hash, err)
	}
	return f, nil
}

func (s *FSStore) Missing(ctx context.Context, hashes []string) ([]string, error) {
	return MissingParallel(ctx, s, hashes, DefaultProbeConcurrency)
}
