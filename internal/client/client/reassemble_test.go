package client

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/dmitrijs2005/neurostore/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(msgs ...*api.DownloadResponse) func() (*api.DownloadResponse, error) {
	return func() (*api.DownloadResponse, error) {
		if len(msgs) == 0 {
			return nil, io.EOF
		}
		m := msgs[0]
		msgs = msgs[1:]
		return m, nil
	}
}

func TestReassemble_ScrambledOrder(t *testing.T) {
	var out bytes.Buffer
	report, err := Reassemble(feed(
		&api.DownloadResponse{Index: 2, Data: []byte("cc")},
		&api.DownloadResponse{Index: 0, Data: []byte("aa")},
		&api.DownloadResponse{Index: 3, Data: []byte("d")},
		&api.DownloadResponse{Index: 1, Data: []byte("bbb")},
		&api.DownloadResponse{Done: true},
	), &out)

	require.NoError(t, err)
	assert.Equal(t, "aabbbccd", out.String())
	assert.Equal(t, 4, report.Chunks)
	assert.Equal(t, int64(8), report.Bytes)
}

func TestReassemble_ReportsEveryFailedChunk(t *testing.T) {
	var out bytes.Buffer
	_, err := Reassemble(feed(
		&api.DownloadResponse{Index: 0, Data: []byte("aa")},
		&api.DownloadResponse{Index: 3, Error: "gone"},
		&api.DownloadResponse{Index: 1, Error: "storage temporarily unavailable"},
		&api.DownloadResponse{Index: 2, Data: []byte("cc")},
		&api.DownloadResponse{Done: true},
	), &out)

	var dErr *DownloadError
	require.True(t, errors.As(err, &dErr))
	assert.True(t, errors.Is(err, ErrIncomplete))
	require.Len(t, dErr.Failed, 2)
	assert.Equal(t, uint64(1), dErr.Failed[0].Index)
	assert.Equal(t, uint64(3), dErr.Failed[1].Index)
	assert.Equal(t, "aa", out.String(), "nothing past the first gap is written")
}

func TestReassemble_MissingDone(t *testing.T) {
	_, err := Reassemble(feed(&api.DownloadResponse{Index: 0, Data: []byte("a")}), io.Discard)
	assert.True(t, errors.Is(err, ErrIncomplete))
}

func TestReassemble_Gap(t *testing.T) {
	_, err := Reassemble(feed(
		&api.DownloadResponse{Index: 1, Data: []byte("b")},
		&api.DownloadResponse{Done: true},
	), io.Discard)
	assert.True(t, errors.Is(err, ErrIncomplete))
}

func TestReassemble_Duplicate(t *testing.T) {
	_, err := Reassemble(feed(
		&api.DownloadResponse{Index: 0, Data: []byte("a")},
		&api.DownloadResponse{Index: 0, Data: []byte("a")},
	), io.Discard)
	assert.Error(t, err)
}

func TestReassemble_EmptyFile(t *testing.T) {
	var out bytes.Buffer
	report, err := Reassemble(feed(&api.DownloadResponse{Done: true}), &out)
	require.NoError(t, err)
	assert.Zero(t, report.Chunks)
	assert.Zero(t, out.Len())
}

func TestReassemble_TransportError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Reassemble(func() (*api.DownloadResponse, error) { return nil, boom }, io.Discard)
	assert.ErrorIs(t, err, boom)
}
