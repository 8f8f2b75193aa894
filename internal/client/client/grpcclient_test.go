package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/api"
	"github.com/dmitrijs2005/neurostore/internal/client/boundary"
	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/dbx"
	"github.com/dmitrijs2005/neurostore/internal/hashx"
	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/dmitrijs2005/neurostore/internal/server/auth"
	"github.com/dmitrijs2005/neurostore/internal/server/chunkstore"
	gs "github.com/dmitrijs2005/neurostore/internal/server/grpc"
	"github.com/dmitrijs2005/neurostore/internal/server/ledger"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/dmitrijs2005/neurostore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/neurostore/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const secret = "secret"

// lossyStore fails reads of the hashes in lost.
type lossyStore struct {
	*chunkstore.MemoryStore
	mu   sync.Mutex
	lost map[string]bool
}

func (s *lossyStore) lose(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost[hash] = true
}

func (s *lossyStore) Get(ctx context.Context, hash string) (io.ReadCloser, error) {
	s.mu.Lock()
	lost := s.lost[hash]
	s.mu.Unlock()
	if lost {
		return nil, common.ErrorNotFound
	}
	return s.MemoryStore.Get(ctx, hash)
}

type server struct {
	lis   *bufconn.Listener
	store *lossyStore
}

func startServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()

	db, err := repomanager.Open(ctx, dbx.SQLite, filepath.Join(t.TempDir(), "srv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	rm := repomanager.NewSQLiteRepositoryManager()
	require.NoError(t, rm.RunMigrations(ctx, db))

	store := &lossyStore{MemoryStore: chunkstore.NewMemoryStore(), lost: map[string]bool{}}
	h, err := hashx.New(hashx.SHA256)
	require.NoError(t, err)
	l := ledger.New(db, rm, logging.Nop{})
	fs := services.NewFileService(db, rm, chunkstore.WithVerification(store, h), l, logging.Nop{}, services.Options{UploadWorkers: 4, ReadAhead: 3})

	s, err := gs.NewGRPCServer("bufnet", logging.Nop{}, fs, secret)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Serve(sctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &server{lis: lis, store: store}
}

func (s *server) client(t *testing.T, id *models.Identity) *GRPCClient {
	t.Helper()
	tok := ""
	if id != nil {
		var err error
		tok, err = auth.GenerateToken(*id, []byte(secret), time.Hour)
		require.NoError(t, err)
	}
	c, err := NewGRPCClient("passthrough:///bufnet", tok,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return s.lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func produce(t *testing.T, data []byte) models.Descriptors {
	t.Helper()
	h, err := hashx.New(hashx.SHA256)
	require.NoError(t, err)
	ds, err := boundary.NewRabinProducer(h).Produce(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	return ds
}

func push(t *testing.T, c *GRPCClient, fileID, name string, data []byte) (*api.PlanUploadResponse, *api.UploadResponse) {
	t.Helper()
	ctx := context.Background()
	header := &api.PlanUploadRequest{FileID: fileID, Name: name, Size: int64(len(data)), Chunks: produce(t, data)}
	plan, err := c.PlanUpload(ctx, header)
	require.NoError(t, err)
	res, err := c.Upload(ctx, header, plan, bytes.NewReader(data))
	require.NoError(t, err)
	return plan, res
}

func TestGRPCClient_RoundTripWithDedup(t *testing.T) {
	srv := startServer(t)
	c := srv.client(t, &models.Identity{UserID: "alice"})
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	v1 := make([]byte, 120_000)
	rand.New(rand.NewSource(7)).Read(v1)
	plan1, res1 := push(t, c, "", "model.bin", v1)
	assert.Equal(t, int64(1), res1.Version)
	assert.Equal(t, plan1.Total, plan1.New)

	v2 := append([]byte{}, v1...)
	copy(v2[60_000:], []byte("patched"))
	plan2, res2 := push(t, c, plan1.FileID, "", v2)
	assert.Equal(t, int64(2), res2.Version)
	assert.Less(t, plan2.New, plan2.Total/2)
	assert.Equal(t, plan2.New, res2.Received)

	var out bytes.Buffer
	report, err := c.Download(ctx, plan1.FileID, 0, &out)
	require.NoError(t, err)
	assert.Equal(t, v2, out.Bytes())
	assert.Equal(t, int64(len(v2)), report.Bytes)

	out.Reset()
	_, err = c.Download(ctx, plan1.FileID, 1, &out)
	require.NoError(t, err)
	assert.Equal(t, v1, out.Bytes())

	versions, err := c.Versions(ctx, plan1.FileID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestGRPCClient_ChunkFailuresAreReported(t *testing.T) {
	srv := startServer(t)
	c := srv.client(t, &models.Identity{UserID: "alice"})
	ctx := context.Background()

	data := make([]byte, 50_000)
	rand.New(rand.NewSource(8)).Read(data)
	plan, _ := push(t, c, "", "lossy.bin", data)

	desc, err := c.Descriptors(ctx, plan.FileID, 0)
	require.NoError(t, err)
	require.Greater(t, len(desc.Chunks), 2)
	srv.store.lose(desc.Chunks[1].Hash)

	_, err = c.Download(ctx, plan.FileID, 0, &bytes.Buffer{})
	var dErr *DownloadError
	require.True(t, errors.As(err, &dErr))
	require.Len(t, dErr.Failed, 1)
	assert.Equal(t, uint64(1), dErr.Failed[0].Index)
}

func TestGRPCClient_ErrorMapping(t *testing.T) {
	srv := startServer(t)
	alice := srv.client(t, &models.Identity{UserID: "alice"})
	bob := srv.client(t, &models.Identity{UserID: "bob"})
	anon := srv.client(t, nil)
	ctx := context.Background()

	plan, _ := push(t, alice, "", "private.txt", []byte("hello"))

	_, err := bob.GetFile(ctx, plan.FileID)
	assert.True(t, errors.Is(err, ErrForbidden))

	_, err = anon.PlanUpload(ctx, &api.PlanUploadRequest{Name: "x"})
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = alice.GetFile(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = alice.UpdateAccess(ctx, plan.FileID, true, nil)
	require.NoError(t, err)
	var out bytes.Buffer
	_, err = anon.Download(ctx, plan.FileID, 0, &out)
	require.NoError(t, err)
	assert.Equal(t, "hello", out.String())
}

func TestGRPCClient_UploadRejectedMidStream(t *testing.T) {
	srv := startServer(t)
	c := srv.client(t, &models.Identity{UserID: "alice"})
	ctx := context.Background()

	data := []byte("0123456789abcdef")
	header := &api.PlanUploadRequest{Name: "x", Size: int64(len(data)), Chunks: produce(t, data)}
	plan, err := c.PlanUpload(ctx, header)
	require.NoError(t, err)

	_, err = c.Upload(ctx, header, plan, bytes.NewReader([]byte("tampered-bytes!!")))
	require.Error(t, err)
	assert.Equal(t, codes.DataLoss, status.Code(errors.Unwrap(err)))

	versions, err := c.Versions(ctx, plan.FileID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestMapError(t *testing.T) {
	c := &GRPCClient{}
	assert.True(t, errors.Is(c.mapError(status.Error(codes.Unavailable, "x")), ErrUnavailable))
	assert.True(t, errors.Is(c.mapError(status.Error(codes.Unauthenticated, "x")), ErrUnauthorized))
	assert.True(t, errors.Is(c.mapError(status.Error(codes.PermissionDenied, "x")), ErrForbidden))
	assert.True(t, errors.Is(c.mapError(status.Error(codes.NotFound, "x")), ErrNotFound))
	assert.NoError(t, c.mapError(nil))
}
