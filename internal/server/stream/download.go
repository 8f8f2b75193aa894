package stream

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/dmitrijs2005/neurostore/internal/server/chunkstore"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"golang.org/x/sync/errgroup"
)

// DefaultReadAhead is how many chunks are fetched ahead of the one being sent.
const DefaultReadAhead = 4

// DownloadStats summarizes a reconstruction.
type DownloadStats struct {
	Sent   int
	Failed int
	Bytes  int64
}

type fetchResult struct {
	data []byte
	err  error
}

// Reconstruct sends the chunks of a version in ascending index order,
// followed by a Done message. Up to readAhead chunks are fetched
// concurrently, but sends never overtake each other. A chunk that cannot be
// fetched is reported in its own message and the stream goes on. Only a
// failing Sender or a cancelled ctx ends the stream early.
func Reconstruct(ctx context.Context, store chunkstore.Store, chunks models.Descriptors, out Sender,
	readAhead int, logger logging.Logger) (DownloadStats, error) {

	if readAhead <= 0 {
		readAhead = DefaultReadAhead
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	ordered := chunks.Sorted()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	pending := make(chan chan fetchResult, readAhead)

	g.Go(func() error {
		defer close(pending)
		for _, d := range ordered {
			d := d
			ch := make(chan fetchResult, 1)
			select {
			case pending <- ch:
			case <-gctx.Done():
				return nil
			}
			g.Go(func() error {
				data, err := chunkstore.ReadChunk(gctx, store, d.Hash)
				if err == nil && uint64(len(data)) != d.Size() {
					data, err = nil, fmt.Errorf("%w: chunk %d holds %d bytes, descriptor covers %d",
						common.ErrIntegrity, d.Index, len(data), d.Size())
				}
				ch <- fetchResult{data: data, err: err}
				return nil
			})
		}
		return nil
	})

	var stats DownloadStats
	sendErr := func() error {
		i := 0
		for ch := range pending {
			d := ordered[i]
			i++

			var r fetchResult
			select {
			case r = <-ch:
			case <-ctx.Done():
				return ctx.Err()
			}

			msg := &DownloadMessage{Index: d.Index}
			if r.err != nil {
				logger.Warn(ctx, "chunk unavailable", "index", d.Index, "hash", d.Hash, "error", r.err)
				msg.Error = r.err.Error()
				stats.Failed++
			} else {
				msg.Data = r.data
				stats.Sent++
				stats.Bytes += int64(len(r.data))
			}
			if err := out.Send(msg); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return out.Send(&DownloadMessage{Done: true})
	}()

	cancel()
	_ = g.Wait()
	return stats, sendErr
}
