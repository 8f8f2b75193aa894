package ledger

import (
	"context"
	"database/sql"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/dbx"
	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/dmitrijs2005/neurostore/internal/server/metrics"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/dmitrijs2005/neurostore/internal/server/repositories/repomanager"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func h(c string) string { return strings.Repeat(c, 64) }

func chunks(sizes ...uint64) models.Descriptors {
	out := models.Descriptors{}
	var start uint64
	for i, s := range sizes {
		out = append(out, models.ChunkDescriptor{Index: uint64(i), Start: start, End: start + s - 1, Hash: h(string("0123456789abcdef"[i%16]))})
		start += s
	}
	return out
}

func newSQLiteLedger(t *testing.T, opts ...Option) (*Ledger, *sql.DB, repomanager.RepositoryManager) {
	t.Helper()
	ctx := context.Background()
	db, err := repomanager.Open(ctx, dbx.SQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm := repomanager.NewSQLiteRepositoryManager()
	require.NoError(t, rm.RunMigrations(ctx, db))
	return New(db, rm, logging.Nop{}, opts...), db, rm
}

func createFile(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, rm.Files(db).Create(context.Background(), &models.File{
		ID: id, OwnerID: "alice", Name: id, CreatedAt: now, UpdatedAt: now,
	}))
}

func TestCreateVersion_NumbersStartAtOneAndGrow(t *testing.T) {
	l, db, rm := newSQLiteLedger(t)
	createFile(t, db, rm, "f1")
	ctx := context.Background()

	v1, err := l.CreateVersion(ctx, NewVersion{FileID: "f1", Size: 9000, Chunks: chunks(4000, 5000), MimeType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1.Number)

	v2, err := l.CreateVersion(ctx, NewVersion{FileID: "f1", Size: 10, Chunks: chunks(10)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2.Number)

	latest, err := l.Latest(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.Number)
	assert.Equal(t, chunks(10), latest.Chunks)

	first, err := l.Resolve(ctx, "f1", 1)
	require.NoError(t, err)
	assert.Equal(t, chunks(4000, 5000), first.Chunks, "old versions stay reconstructible")

	refs, err := l.List(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, []int64{1, 2}, []int64{refs[0].Number, refs[1].Number})

	f, err := rm.Files(db).Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.Size)
	assert.Equal(t, int64(2), f.CurrentVersion)
}

func TestCreateVersion_EmptyFile(t *testing.T) {
	l, db, rm := newSQLiteLedger(t)
	createFile(t, db, rm, "empty")

	v, err := l.CreateVersion(context.Background(), NewVersion{FileID: "empty", Size: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Number)
	assert.Empty(t, v.Chunks)
}

func TestCreateVersion_RejectsSizeMismatch(t *testing.T) {
	l, db, rm := newSQLiteLedger(t)
	createFile(t, db, rm, "f1")

	_, err := l.CreateVersion(context.Background(), NewVersion{FileID: "f1", Size: 9001, Chunks: chunks(4000, 5000)})
	assert.ErrorIs(t, err, common.ErrIntegrity)

	_, err = l.Latest(context.Background(), "f1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreateVersion_UnknownFile(t *testing.T) {
	l, _, _ := newSQLiteLedger(t)

	_, err := l.CreateVersion(context.Background(), NewVersion{FileID: "ghost", Size: 10, Chunks: chunks(10)})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreateVersion_ConcurrentWritersGetDistinctNumbers(t *testing.T) {
	l, db, rm := newSQLiteLedger(t)
	createFile(t, db, rm, "f1")

	const writers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int64
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.CreateVersion(context.Background(), NewVersion{FileID: "f1", Size: 10, Chunks: chunks(10)})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers = append(numbers, v.Number)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	want := make([]int64, writers)
	for i := range want {
		want[i] = int64(i + 1)
	}
	assert.Equal(t, want, numbers)
}

func TestCreateVersion_RetriesOnConflict(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	m := metrics.New()
	l := New(db, repomanager.NewPostgresRepositoryManager(), logging.Nop{}, WithMetrics(m))

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE\s+files\s+SET\s+current_version`).
		WillReturnRows(sqlmock.NewRows([]string{"current_version"}).AddRow(int64(3)))
	mock.ExpectExec(`INSERT\s+INTO\s+versions`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE\s+files\s+SET\s+current_version`).
		WillReturnRows(sqlmock.NewRows([]string{"current_version"}).AddRow(int64(4)))
	mock.ExpectExec(`INSERT\s+INTO\s+versions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+files\s+SET\s+size`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v, err := l.CreateVersion(context.Background(), NewVersion{FileID: "f1", Size: 10, Chunks: chunks(10)})
	require.NoError(t, err)
	assert.Equal(t, int64(4), v.Number)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VersionRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VersionsCreated))
}

func TestCreateVersion_GivesUpAfterMaxAttempts(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	l := New(db, repomanager.NewPostgresRepositoryManager(), logging.Nop{}, WithMaxAttempts(2))
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE\s+files`).WillReturnRows(sqlmock.NewRows([]string{"current_version"}).AddRow(int64(1)))
		mock.ExpectExec(`INSERT\s+INTO\s+versions`).WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectRollback()
	}

	_, err = l.CreateVersion(context.Background(), NewVersion{FileID: "f1", Size: 10, Chunks: chunks(10)})
	assert.ErrorIs(t, err, common.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateVersion_WaitsForWriterOfSameFile(t *testing.T) {
	l, db, rm := newSQLiteLedger(t)
	createFile(t, db, rm, "f1")
	createFile(t, db, rm, "f2")
	ctx := context.Background()

	l.locks.Lock("f1")

	done := make(chan int64)
	go func() {
		v, err := l.CreateVersion(ctx, NewVersion{FileID: "f1", Size: 10, Chunks: chunks(10)})
		if !assert.NoError(t, err) {
			done <- 0
			return
		}
		done <- v.Number
	}()

	other, err := l.CreateVersion(ctx, NewVersion{FileID: "f2", Size: 10, Chunks: chunks(10)})
	require.NoError(t, err, "other files are not blocked")
	assert.Equal(t, int64(1), other.Number)

	select {
	case <-done:
		t.Fatal("writer of a locked file must wait")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, l.locks.Unlock("f1"))
	assert.Equal(t, int64(1), <-done)
}
