package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrIncomplete   = errors.New("download incomplete")
)

// ChunkError is a chunk the server could not deliver.
type ChunkError struct {
	Index   uint64
	Message string
}

func (e ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %s", e.Index, e.Message)
}

// DownloadError lists every failed chunk of a download.
type DownloadError struct {
	Failed []ChunkError
}

func (e *DownloadError) Error() string {
	if len(e.Failed) == 0 {
		return ErrIncomplete.Error()
	}
	return fmt.Sprintf("%s: %d chunks failed, first %s", ErrIncomplete, len(e.Failed), e.Failed[0])
}

func (e *DownloadError) Unwrap() error {
	return ErrIncomplete
}
