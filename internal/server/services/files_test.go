package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/dbx"
	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/dmitrijs2005/neurostore/internal/server/chunkstore"
	"github.com/dmitrijs2005/neurostore/internal/server/ledger"
	"github.com/dmitrijs2005/neurostore/internal/server/metrics"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/dmitrijs2005/neurostore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/neurostore/internal/server/stream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = models.Identity{UserID: "alice", Email: "alice@x.io"}
	bob   = models.Identity{UserID: "bob", Email: "bob@x.io", ProviderID: "gh-bob"}
	carol = models.Identity{UserID: "carol"}
)

type fixture struct {
	svc   *FileService
	store *chunkstore.MemoryStore
	m     *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repomanager.Open(ctx, dbx.SQLite, filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm := repomanager.NewSQLiteRepositoryManager()
	require.NoError(t, rm.RunMigrations(ctx, db))

	m := metrics.New()
	store := chunkstore.NewMemoryStore()
	l := ledger.New(db, rm, logging.Nop{}, ledger.WithMetrics(m))
	svc := NewFileService(db, rm, chunkstore.WithMetrics(store, m), l, logging.Nop{}, Options{UploadWorkers: 2, ReadAhead: 2, Metrics: m})
	return &fixture{svc: svc, store: store, m: m}
}

func sum(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

func describe(data []byte, sizes ...int) models.Descriptors {
	var ds models.Descriptors
	off := 0
	for i, n := range sizes {
		ds = append(ds, models.ChunkDescriptor{Index: uint64(i), Start: uint64(off), End: uint64(off + n - 1), Hash: sum(data[off : off+n])})
		off += n
	}
	return ds
}

type planReceiver struct {
	msgs []*stream.UploadMessage
}

func (r *planReceiver) Recv() (*stream.UploadMessage, error) {
	if len(r.msgs) == 0 {
		return nil, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

// uploadPlanned sends exactly the chunks of plan.
func uploadPlanned(data []byte, plan *UploadPlan) *planReceiver {
	r := &planReceiver{}
	for _, d := range plan.Upload {
		r.msgs = append(r.msgs, &stream.UploadMessage{Index: d.Index, Hash: d.Hash, Data: data[d.Start : d.End+1]})
	}
	r.msgs = append(r.msgs, &stream.UploadMessage{End: true})
	return r
}

type collect struct{ msgs []*stream.DownloadMessage }

func (c *collect) Send(m *stream.DownloadMessage) error {
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *collect) bytes() []byte {
	var out []byte
	for _, m := range c.msgs {
		out = append(out, m.Data...)
	}
	return out
}

func (f *fixture) put(t *testing.T, who models.Identity, fileID, name string, data []byte, sizes ...int) (*UploadPlan, *stream.UploadResult) {
	t.Helper()
	ctx := context.Background()
	req := PlanRequest{FileID: fileID, Name: name, Size: int64(len(data)), Chunks: describe(data, sizes...), MimeType: "application/octet-stream"}

	plan, err := f.svc.PlanUpload(ctx, who, req)
	require.NoError(t, err)

	req.FileID = plan.FileID
	res, err := f.svc.Upload(ctx, who, req, uploadPlanned(data, plan))
	require.NoError(t, err)
	return plan, res
}

func TestUploadThenDownload_RoundTrip(t *testing.T) {
	f := newFixture(t)
	data := make([]byte, 9000)
	for i := range data {
		data[i] = byte(i * 7)
	}

	plan, res := f.put(t, alice, "", "report.pdf", data, 4000, 5000)
	assert.Len(t, plan.Upload, 2)
	assert.Equal(t, int64(0), plan.BaseVersion)
	assert.Equal(t, int64(1), res.Version.Number)

	out := &collect{}
	stats, err := f.svc.Reconstruct(context.Background(), alice, plan.FileID, 0, out)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sent)
	assert.Equal(t, data, out.bytes())
	assert.True(t, out.msgs[len(out.msgs)-1].Done)

	file, err := f.svc.GetFile(context.Background(), alice, plan.FileID)
	require.NoError(t, err)
	assert.Equal(t, "report", file.Name)
	assert.Equal(t, "pdf", file.Extension)
	assert.Equal(t, int64(9000), file.Size)
	assert.Len(t, file.Versions, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.UploadSessions.WithLabelValues("committed")))
}

func TestPlanUpload_SecondIdenticalUploadSendsNothing(t *testing.T) {
	f := newFixture(t)
	data := []byte("0123456789abcdefghij")
	plan, _ := f.put(t, alice, "", "a.txt", data, 10, 10)

	req := PlanRequest{FileID: plan.FileID, Size: 20, Chunks: describe(data, 10, 10)}
	again, err := f.svc.PlanUpload(context.Background(), alice, req)
	require.NoError(t, err)
	assert.Empty(t, again.Upload)
	assert.Equal(t, int64(1), again.BaseVersion)

	res, err := f.svc.Upload(context.Background(), alice, req, uploadPlanned(data, again))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Version.Number)
	assert.Equal(t, 2, f.store.Writes())
}

func TestPlanUpload_OnlyChangedTailIsSent(t *testing.T) {
	f := newFixture(t)
	v1 := []byte("AAAAAAAAAABBBBBBBBBBCCCCCCCCCC")
	plan, _ := f.put(t, alice, "", "data.bin", v1, 10, 10, 10)

	v2 := []byte("AAAAAAAAAABBBBBBBBBBDDDDDDDDDD")
	req := PlanRequest{FileID: plan.FileID, Size: 30, Chunks: describe(v2, 10, 10, 10)}
	p2, err := f.svc.PlanUpload(context.Background(), alice, req)
	require.NoError(t, err)
	require.Len(t, p2.Upload, 1)
	assert.Equal(t, uint64(2), p2.Upload[0].Index)
	assert.Equal(t, 2, p2.Stats.Reused)

	_, err = f.svc.Upload(context.Background(), alice, req, uploadPlanned(v2, p2))
	require.NoError(t, err)

	for n, want := range map[int64][]byte{1: v1, 2: v2} {
		out := &collect{}
		_, err := f.svc.Reconstruct(context.Background(), alice, plan.FileID, n, out)
		require.NoError(t, err)
		assert.Equal(t, want, out.bytes(), "version %d", n)
	}
}

func TestPlanUpload_GlobalDedupAcrossFiles(t *testing.T) {
	f := newFixture(t)
	data := []byte("shared-chunk-0123456789")
	f.put(t, alice, "", "one.bin", data, len(data))

	plan, err := f.svc.PlanUpload(context.Background(), bob, PlanRequest{Name: "two.bin", Size: int64(len(data)), Chunks: describe(data, len(data))})
	require.NoError(t, err)
	assert.Empty(t, plan.Upload)
}

func TestPlanUpload_DuplicateHashesSentOnce(t *testing.T) {
	f := newFixture(t)
	data := []byte("xxxxxxxxxxxxxxxxxxxx")
	plan, err := f.svc.PlanUpload(context.Background(), alice, PlanRequest{Name: "x", Size: 20, Chunks: describe(data, 10, 10)})
	require.NoError(t, err)
	assert.Len(t, plan.Upload, 1)
}

func TestPlanUpload_Validation(t *testing.T) {
	f := newFixture(t)
	data := []byte("0123456789")
	ctx := context.Background()

	_, err := f.svc.PlanUpload(ctx, models.Identity{}, PlanRequest{Name: "a", Size: 10, Chunks: describe(data, 10)})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.svc.PlanUpload(ctx, alice, PlanRequest{Name: "a", Size: 11, Chunks: describe(data, 10)})
	assert.ErrorIs(t, err, common.ErrIntegrity)

	_, err = f.svc.PlanUpload(ctx, alice, PlanRequest{Size: 10, Chunks: describe(data, 10)})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestAccess_ReadersWritersAndStrangers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := []byte("private bytes")
	plan, _ := f.put(t, alice, "", "secret.txt", data, len(data))
	id := plan.FileID

	_, err := f.svc.Reconstruct(ctx, bob, id, 0, &collect{})
	assert.ErrorIs(t, err, common.ErrorForbidden)
	_, err = f.svc.Descriptors(ctx, models.Identity{}, id, 0)
	assert.ErrorIs(t, err, common.ErrorForbidden)

	_, err = f.svc.UpdateAccess(ctx, bob, id, true, nil)
	assert.ErrorIs(t, err, common.ErrorForbidden)

	_, err = f.svc.UpdateAccess(ctx, alice, id, false, []models.AccessEntry{
		{Kind: models.KindEmail, Value: "BOB@x.io", Level: models.AccessRead},
	})
	require.NoError(t, err)

	out := &collect{}
	_, err = f.svc.Reconstruct(ctx, bob, id, 0, out)
	require.NoError(t, err)
	assert.Equal(t, data, out.bytes())

	_, err = f.svc.PlanUpload(ctx, bob, PlanRequest{FileID: id, Size: int64(len(data)), Chunks: describe(data, len(data))})
	assert.ErrorIs(t, err, common.ErrorForbidden, "read access does not allow new versions")

	shared, err := f.svc.ListSharedWith(ctx, bob)
	require.NoError(t, err)
	require.Len(t, shared, 1)

	file, err := f.svc.GetFile(ctx, bob, id)
	require.NoError(t, err)
	assert.Nil(t, file.AccessList, "readers do not see the access list")

	_, err = f.svc.UpdateAccess(ctx, alice, id, true, nil)
	require.NoError(t, err)
	_, err = f.svc.Descriptors(ctx, models.Identity{}, id, 0)
	require.NoError(t, err, "public files are readable anonymously")

	found, err := f.svc.Search(ctx, carol, "SECRET")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestUpdateAccess_WriterMayUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan, _ := f.put(t, alice, "", "doc.txt", []byte("v1 contents"), 11)

	_, err := f.svc.UpdateAccess(ctx, alice, plan.FileID, false, []models.AccessEntry{
		{Kind: models.KindProviderID, Value: "gh-bob", Level: models.AccessWrite},
	})
	require.NoError(t, err)

	_, res := f.put(t, bob, plan.FileID, "", []byte("v2 by bob"), 9)
	assert.Equal(t, int64(2), res.Version.Number)
}

func TestUpdateAccess_RejectsBadEntries(t *testing.T) {
	f := newFixture(t)
	plan, _ := f.put(t, alice, "", "doc.txt", []byte("x"), 1)

	_, err := f.svc.UpdateAccess(context.Background(), alice, plan.FileID, false, []models.AccessEntry{{Kind: "phone", Value: "1", Level: models.AccessRead}})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = f.svc.UpdateAccess(context.Background(), alice, plan.FileID, false, []models.AccessEntry{{Kind: models.KindEmail, Value: " ", Level: models.AccessRead}})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = f.svc.UpdateAccess(context.Background(), alice, plan.FileID, false, []models.AccessEntry{{Kind: models.KindEmail, Value: "a@b", Level: "admin"}})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestUpdateAccess_MergesDuplicateEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan, _ := f.put(t, alice, "", "doc.txt", []byte("v1 contents"), 11)

	updated, err := f.svc.UpdateAccess(ctx, alice, plan.FileID, false, []models.AccessEntry{
		{Kind: models.KindEmail, Value: "bob@x.io", Level: models.AccessRead},
		{Kind: models.KindUserID, Value: "carol", Level: models.AccessRead},
		{Kind: models.KindEmail, Value: "Bob@X.io", Level: models.AccessWrite},
		{Kind: models.KindUserID, Value: "carol", Level: models.AccessRead},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.AccessEntry{
		{Kind: models.KindEmail, Value: "bob@x.io", Level: models.AccessWrite},
		{Kind: models.KindUserID, Value: "carol", Level: models.AccessRead},
	}, updated.AccessList)

	file, err := f.svc.GetFile(ctx, alice, plan.FileID)
	require.NoError(t, err)
	assert.Len(t, file.AccessList, 2)

	_, res := f.put(t, bob, plan.FileID, "", []byte("v2 by bob"), 9)
	assert.Equal(t, int64(2), res.Version.Number)
}

func TestPlanUpload_RejectsRangePastMaxSize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	theirs := []byte("someone-elses-chunk")
	f.put(t, alice, "", "theirs.bin", theirs, len(theirs))

	mine := []byte("0123456789")
	chunks := models.Descriptors{
		{Index: 0, Start: 0, End: 9, Hash: sum(mine)},
		{Index: 1, Start: 10, End: math.MaxUint64, Hash: sum(theirs)},
	}
	_, err := f.svc.PlanUpload(ctx, bob, PlanRequest{Name: "wrap.bin", Size: 0, Chunks: chunks})
	assert.ErrorIs(t, err, common.ErrProtocol)

	_, err = f.svc.Upload(ctx, bob, PlanRequest{FileID: "wrap", Size: 0, Chunks: chunks}, &planReceiver{})
	assert.ErrorIs(t, err, common.ErrorNotFound, "nothing was created for the rejected plan")

	owned, err := f.svc.ListOwned(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestReconstruct_LengthMatchesVersionSize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v1 := []byte("AAAAAAAAAABBBBBBBBBBCCCCCCCCCC")
	plan, _ := f.put(t, alice, "", "data.bin", v1, 10, 10, 10)
	f.put(t, alice, plan.FileID, "", []byte("AAAAAAAAAAxyz"), 10, 3)
	f.put(t, alice, plan.FileID, "", []byte{})

	refs, err := f.svc.Versions(ctx, alice, plan.FileID)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	for _, ref := range refs {
		out := &collect{}
		stats, err := f.svc.Reconstruct(ctx, alice, plan.FileID, ref.Number, out)
		require.NoError(t, err)
		assert.Zero(t, stats.Failed)
		assert.Equal(t, ref.Size, int64(len(out.bytes())), "version %d", ref.Number)
		assert.Equal(t, ref.Size, stats.Bytes, "version %d", ref.Number)
	}
}

func TestReconstruct_ReusedChunkOfWrongLengthIsReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	theirs := []byte("someone-elses-chunk")
	f.put(t, alice, "", "theirs.bin", theirs, len(theirs))

	mine := []byte("0123456789")
	req := PlanRequest{Name: "short.bin", Size: 15, Chunks: models.Descriptors{
		{Index: 0, Start: 0, End: 9, Hash: sum(mine)},
		{Index: 1, Start: 10, End: 14, Hash: sum(theirs)},
	}}
	plan, err := f.svc.PlanUpload(ctx, bob, req)
	require.NoError(t, err)
	require.Len(t, plan.Upload, 1)

	req.FileID = plan.FileID
	_, err = f.svc.Upload(ctx, bob, req, uploadPlanned(mine, plan))
	require.NoError(t, err)

	out := &collect{}
	stats, err := f.svc.Reconstruct(ctx, bob, plan.FileID, 0, out)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, mine, out.bytes())
}

func TestRenameAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan, _ := f.put(t, alice, "", "old.txt", []byte("abc"), 3)

	renamed, err := f.svc.Rename(ctx, alice, plan.FileID, "new.md")
	require.NoError(t, err)
	assert.Equal(t, "new", renamed.Name)
	assert.Equal(t, "md", renamed.Extension)

	assert.ErrorIs(t, f.svc.Delete(ctx, bob, plan.FileID), common.ErrorNotFound)

	require.NoError(t, f.svc.Delete(ctx, alice, plan.FileID))
	_, err = f.svc.GetFile(ctx, alice, plan.FileID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	owned, err := f.svc.ListOwned(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, owned)
	assert.Equal(t, 1, f.store.Len(), "deleting a file keeps its chunks")
}

func TestReconstruct_UnknownVersion(t *testing.T) {
	f := newFixture(t)
	plan, _ := f.put(t, alice, "", "a", []byte("abc"), 3)

	_, err := f.svc.Reconstruct(context.Background(), alice, plan.FileID, 7, &collect{})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.svc.Reconstruct(context.Background(), alice, "no-such-file", 0, &collect{})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSplitName(t *testing.T) {
	for in, want := range map[string][2]string{
		"report.pdf":     {"report", "pdf"},
		"archive.tar.gz": {"archive.tar", "gz"},
		"README":         {"README", ""},
		".bashrc":        {".bashrc", ""},
		"  spaced.txt  ": {"spaced", "txt"},
	} {
		n, e := splitName(in)
		assert.Equal(t, want, [2]string{n, e}, in)
	}
}
