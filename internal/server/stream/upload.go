package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/dmitrijs2005/neurostore/internal/server/chunkstore"
	"github.com/dmitrijs2005/neurostore/internal/server/diff"
	"github.com/dmitrijs2005/neurostore/internal/server/ledger"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"golang.org/x/sync/errgroup"
)

// DefaultUploadWorkers bounds concurrent chunk writes per session.
const DefaultUploadWorkers = 8

// Committer records a finished upload as a new version.
type Committer interface {
	CreateVersion(ctx context.Context, nv ledger.NewVersion) (*models.VersionMetadata, error)
}

// UploadSession receives the chunks of one planned upload and commits the
// version once the end marker arrives. Nothing is committed if the stream
// ends early or a chunk is rejected; chunks already written stay in the
// store, which is harmless as they are content-addressed.
type UploadSession struct {
	Version ledger.NewVersion
	Store   chunkstore.Store
	Ledger  Committer
	Workers int
	Logger  logging.Logger
}

// UploadResult summarizes a committed session.
type UploadResult struct {
	Version  *models.VersionMetadata
	Received int
	Bytes    int64
}

func (s *UploadSession) Run(ctx context.Context, recv Receiver) (*UploadResult, error) {
	chunks := s.Version.Chunks
	if err := chunks.Validate(s.Version.Size); err != nil {
		return nil, err
	}

	logger := s.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	workers := s.Workers
	if workers <= 0 {
		workers = DefaultUploadWorkers
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	received := make(map[uint64]bool, len(chunks))
	result := &UploadResult{}

	recvErr := func() error {
		for {
			if err := gctx.Err(); err != nil {
				return err
			}

			msg, err := recv.Recv()
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: stream closed before end marker", common.ErrProtocol)
			}
			if err != nil {
				return err
			}
			if msg.End {
				return nil
			}

			if msg.Index >= uint64(len(chunks)) {
				return fmt.Errorf("%w: chunk index %d outside the %d announced", common.ErrProtocol, msg.Index, len(chunks))
			}
			d := chunks[msg.Index]
			if msg.Hash != d.Hash {
				return fmt.Errorf("%w: chunk %d hash %q does not match announced %q", common.ErrProtocol, msg.Index, msg.Hash, d.Hash)
			}
			if uint64(len(msg.Data)) != d.Size() {
				return fmt.Errorf("%w: chunk %d carries %d bytes, announced %d", common.ErrIntegrity, msg.Index, len(msg.Data), d.Size())
			}
			if received[msg.Index] {
				continue
			}
			received[msg.Index] = true
			result.Received++
			result.Bytes += int64(len(msg.Data))

			data, hash, index := msg.Data, msg.Hash, msg.Index
			g.Go(func() error {
				if err := s.Store.Put(gctx, hash, data); err != nil {
					return fmt.Errorf("store chunk %d: %w", index, err)
				}
				logger.Debug(gctx, "chunk stored", "file_id", s.Version.FileID, "index", index, "hash", hash)
				return nil
			})
		}
	}()

	if recvErr != nil {
		cancel()
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, recvErr
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.ensureComplete(ctx, received); err != nil {
		return nil, err
	}

	v, err := s.Ledger.CreateVersion(ctx, s.Version)
	if err != nil {
		return nil, err
	}
	result.Version = v
	return result, nil
}

// ensureComplete checks that every chunk of the version is stored, either
// from this session or from an earlier upload.
func (s *UploadSession) ensureComplete(ctx context.Context, received map[uint64]bool) error {
	pending := make(models.Descriptors, 0)
	for _, d := range s.Version.Chunks {
		if !received[d.Index] {
			pending = append(pending, d)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	missing, err := s.Store.Missing(ctx, diff.Hashes(pending))
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %d chunks never arrived, first %s", common.ErrProtocol, len(missing), missing[0])
	}
	return nil
}
