package client

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dmitrijs2005/neurostore/internal/api"
)

// DownloadReport summarizes a finished download.
type DownloadReport struct {
	Chunks int
	Bytes  int64
}

// Reassemble drains recv and writes chunk payloads to w in index order,
// buffering chunks that arrive early. It stops writing at the first failed
// chunk but keeps reading so every failure is reported.
func Reassemble(recv func() (*api.DownloadResponse, error), w io.Writer) (*DownloadReport, error) {
	var (
		report  DownloadReport
		failed  []ChunkError
		pending = make(map[uint64][]byte)
		seen    = make(map[uint64]bool)
		next    uint64
		done    bool
	)

	for !done {
		m, err := recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &report, err
		}
		if m.Done {
			done = true
			continue
		}
		if seen[m.Index] {
			return &report, fmt.Errorf("chunk %d delivered twice", m.Index)
		}
		seen[m.Index] = true

		if m.Error != "" {
			failed = append(failed, ChunkError{Index: m.Index, Message: m.Error})
			continue
		}
		if len(failed) > 0 {
			continue
		}

		pending[m.Index] = m.Data
		for {
			data, ok := pending[next]
			if !ok {
				break
			}
			if _, err := w.Write(data); err != nil {
				return &report, err
			}
			delete(pending, next)
			report.Chunks++
			report.Bytes += int64(len(data))
			next++
		}
	}

	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i].Index < failed[j].Index })
		return &report, &DownloadError{Failed: failed}
	}
	if !done || len(pending) > 0 {
		return &report, fmt.Errorf("%w: stream ended at chunk %d", ErrIncomplete, next)
	}
	return &report, nil
}
