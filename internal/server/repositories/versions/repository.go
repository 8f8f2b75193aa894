package versions

import (
	"context"

	"github.com/dmitrijs2005/neurostore/internal/server/models"
)

// Repository stores immutable version metadata.
type Repository interface {
	Insert(ctx context.Context, v *models.VersionMetadata) error
	Get(ctx context.Context, fileID string, number int64) (*models.VersionMetadata, error)
	Latest(ctx context.Context, fileID string) (*models.VersionMetadata, error)
	List(ctx context.Context, fileID string) ([]models.VersionRef, error)
}
