package logging

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WritesFieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewZapLogger(zap.New(core))
	ctx := context.Background()

	log.With("module", "chunkstore").Info(ctx, "stored", "hash", "ab12")
	log.Warn(ctx, "slow")
	log.Error(ctx, "boom", "index", 3)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "stored", entries[0].Message)
	assert.Equal(t, "chunkstore", entries[0].ContextMap()["module"])
	assert.Equal(t, "ab12", entries[0].ContextMap()["hash"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(3), entries[2].ContextMap()["index"])
}

func TestNew_Backends(t *testing.T) {
	var buf bytes.Buffer

	l, err := New("", &buf)
	require.NoError(t, err)
	l.Info(context.Background(), "hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	var zbuf bytes.Buffer
	l, err = New(BackendZap, &zbuf)
	require.NoError(t, err)
	l.Info(context.Background(), "stored", "hash", "ab12")
	l.Debug(context.Background(), "below the level")
	assert.Contains(t, zbuf.String(), `"msg":"stored"`)
	assert.Contains(t, zbuf.String(), `"hash":"ab12"`)
	assert.NotContains(t, zbuf.String(), "below the level")

	_, err = New("logrus", io.Discard)
	assert.Error(t, err)
}

func TestNop_With(t *testing.T) {
	var l Logger = Nop{}
	l.With("a", 1).Info(context.Background(), "ignored")
}
