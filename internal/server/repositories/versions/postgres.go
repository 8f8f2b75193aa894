// Package versions stores version metadata rows. The descriptor list of a
// version is kept whole in a JSON column.
package versions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/dbx"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
)

const versionColumns = `id, file_id, version_number, size, chunks, compression_hint, encryption_hint, created_at`

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return NewRepository(db, dbx.Postgres)
}

func (r *SQLRepository) q(query string) string {
	return dbx.Rebind(r.dialect, query)
}

// Insert writes v. A second row with the same (file_id, version_number)
// fails with common.ErrVersionConflict.
func (r *SQLRepository) Insert(ctx context.Context, v *models.VersionMetadata) error {
	chunks := v.Chunks
	if chunks == nil {
		chunks = models.Descriptors{}
	}
	raw, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("failed to encode chunk list: %w", err)
	}

	query := `
		INSERT INTO versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, r.q(query),
		v.ID, v.FileID, v.Number, v.Size, string(raw), v.CompressionHint, v.EncryptionHint, v.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("file %s version %d: %w", v.FileID, v.Number, common.ErrVersionConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns version number of fileID or common.ErrorNotFound.
func (r *SQLRepository) Get(ctx context.Context, fileID string, number int64) (*models.VersionMetadata, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE file_id = $1 AND version_number = $2`
	return r.selectOne(ctx, query, fileID, number)
}

// Latest returns the highest-numbered version of fileID.
func (r *SQLRepository) Latest(ctx context.Context, fileID string) (*models.VersionMetadata, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE file_id = $1
		ORDER BY version_number DESC LIMIT 1`
	return r.selectOne(ctx, query, fileID)
}

// List returns refs to every version of fileID in ascending order.
func (r *SQLRepository) List(ctx context.Context, fileID string) ([]models.VersionRef, error) {
	query := `SELECT id, version_number, size, created_at FROM versions WHERE file_id = $1 ORDER BY version_number`
	rows, err := r.db.QueryContext(ctx, r.q(query), fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	result := []models.VersionRef{}
	for rows.Next() {
		var ref models.VersionRef
		if err := rows.Scan(&ref.MetadataID, &ref.Number, &ref.Size, &ref.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLRepository) selectOne(ctx context.Context, query string, args ...any) (*models.VersionMetadata, error) {
	v := &models.VersionMetadata{}
	var raw []byte
	err := r.db.QueryRowContext(ctx, r.q(query), args...).
		Scan(&v.ID, &v.FileID, &v.Number, &v.Size, &raw, &v.CompressionHint, &v.EncryptionHint, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select version: %w", err)
	}
	if err := json.Unmarshal(raw, &v.Chunks); err != nil {
		return nil, fmt.Errorf("corrupt chunk list for %s: %w", v.ID, err)
	}
	return v, nil
}
