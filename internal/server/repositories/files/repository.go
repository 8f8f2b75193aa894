package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/server/models"
)

// Repository persists file references and their access lists. Rows with a
// deleted_at mark are invisible to every read.
type Repository interface {
	Create(ctx context.Context, f *models.File) error
	Get(ctx context.Context, id string) (*models.File, error)
	IncrementVersion(ctx context.Context, id string, at time.Time) (int64, error)
	SetContent(ctx context.Context, id string, size int64, mimeType string, at time.Time) error
	ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error)
	ListSharedWith(ctx context.Context, identity models.Identity) ([]*models.File, error)
	Search(ctx context.Context, identity models.Identity, name string) ([]*models.File, error)
	Rename(ctx context.Context, id, name, extension string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	SetAccess(ctx context.Context, id string, isPublic bool, entries []models.AccessEntry, at time.Time) error
}
