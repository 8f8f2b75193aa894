package files

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/neurostore/internal/client/models"
)

// ErrNotTracked is returned when no record matches.
var ErrNotTracked = errors.New("file is not tracked")

type Repository interface {
	// Upsert records f, replacing any record for the same path.
	Upsert(ctx context.Context, f *models.TrackedFile) error

	GetByPath(ctx context.Context, path string) (*models.TrackedFile, error)

	// GetByFileID returns every path tracked for the server file.
	GetByFileID(ctx context.Context, fileID string) ([]*models.TrackedFile, error)

	List(ctx context.Context) ([]*models.TrackedFile, error)

	// DeleteByFileID forgets every path tracked for the server file.
	DeleteByFileID(ctx context.Context, fileID string) error

	// Clear forgets every tracked path and reports how many there were.
	Clear(ctx context.Context) (int64, error)
}
