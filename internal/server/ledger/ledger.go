// Package ledger assigns version numbers and records version metadata.
//
// Numbers are allocated by an atomic increment on the file row inside the
// same transaction that inserts the version, so they are gap-free per file
// and strictly increasing. A unique (file_id, version_number) index backs
// this up; a collision is retried.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/dbx"
	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/dmitrijs2005/neurostore/internal/server/metrics"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/dmitrijs2005/neurostore/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/moby/locker"
)

// DefaultMaxAttempts bounds CreateVersion retries after a numbering conflict.
const DefaultMaxAttempts = 5

// NewVersion is what CreateVersion records.
type NewVersion struct {
	FileID          string
	Size            int64
	MimeType        string
	Chunks          models.Descriptors
	CompressionHint string
	EncryptionHint  string
}

type Ledger struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	metrics     *metrics.Metrics
	locks       *locker.Locker
	maxAttempts int

	now   func() time.Time
	newID func() string
}

type Option func(*Ledger)

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func New(db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		db:          db,
		repomanager: rm,
		logger:      logger.With("module", "ledger"),
		locks:       locker.New(),
		maxAttempts: DefaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// CreateVersion appends a version to the file and returns its metadata. The
// chunk list must describe exactly Size bytes. Writers of the same file are
// serialized in process and by the row lock in the database.
func (l *Ledger) CreateVersion(ctx context.Context, nv NewVersion) (*models.VersionMetadata, error) {
	if err := nv.Chunks.Validate(nv.Size); err != nil {
		return nil, err
	}

	l.locks.Lock(nv.FileID)
	defer func() { _ = l.locks.Unlock(nv.FileID) }()

	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		v, err := l.createOnce(ctx, nv)
		if err == nil {
			if l.metrics != nil {
				l.metrics.VersionsCreated.Inc()
			}
			l.logger.Info(ctx, "version created", "file_id", nv.FileID, "version", v.Number,
				"chunks", len(v.Chunks), "size", v.Size)
			return v, nil
		}
		if !errors.Is(err, common.ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		if l.metrics != nil {
			l.metrics.VersionRetries.Inc()
		}
		l.logger.Warn(ctx, "version number conflict, retrying", "file_id", nv.FileID, "attempt", attempt)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("gave up after %d attempts: %w", l.maxAttempts, lastErr)
}

func (l *Ledger) createOnce(ctx context.Context, nv NewVersion) (*models.VersionMetadata, error) {
	var created *models.VersionMetadata

	err := dbx.WithTx(ctx, l.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		fileRepo := l.repomanager.Files(tx)
		versionRepo := l.repomanager.Versions(tx)
		now := l.now()

		n, err := fileRepo.IncrementVersion(ctx, nv.FileID, now)
		if err != nil {
			return err
		}

		chunks := nv.Chunks.Sorted()
		if chunks == nil {
			chunks = models.Descriptors{}
		}
		v := &models.VersionMetadata{
			ID:              l.newID(),
			FileID:          nv.FileID,
			Number:          n,
			Size:            nv.Size,
			Chunks:          chunks,
			CompressionHint: nv.CompressionHint,
			EncryptionHint:  nv.EncryptionHint,
			CreatedAt:       now,
		}
		if err := versionRepo.Insert(ctx, v); err != nil {
			return err
		}
		if err := fileRepo.SetContent(ctx, nv.FileID, nv.Size, nv.MimeType, now); err != nil {
			return err
		}

		created = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Latest returns the newest version of fileID or common.ErrorNotFound.
func (l *Ledger) Latest(ctx context.Context, fileID string) (*models.VersionMetadata, error) {
	return l.repomanager.Versions(l.db).Latest(ctx, fileID)
}

// Version returns version n of fileID or common.ErrorNotFound.
func (l *Ledger) Version(ctx context.Context, fileID string, n int64) (*models.VersionMetadata, error) {
	return l.repomanager.Versions(l.db).Get(ctx, fileID, n)
}

// Resolve returns version n, or the latest one when n is 0.
func (l *Ledger) Resolve(ctx context.Context, fileID string, n int64) (*models.VersionMetadata, error) {
	if n <= 0 {
		return l.Latest(ctx, fileID)
	}
	return l.Version(ctx, fileID, n)
}

// List returns refs to every version of fileID, oldest first.
func (l *Ledger) List(ctx context.Context, fileID string) ([]models.VersionRef, error) {
	return l.repomanager.Versions(l.db).List(ctx, fileID)
}
