package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/neurostore/internal/client/models"
	"github.com/dmitrijs2005/neurostore/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, f *models.TrackedFile) error {

	query := `INSERT INTO files (path, file_id, version, size, updated_at)
			values (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				file_id = excluded.file_id,
				version = excluded.version,
				size = excluded.size,
				updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, f.Path, f.FileID, f.Version, f.Size, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) GetByPath(ctx context.Context, path string) (*models.TrackedFile, error) {

	query := `select path, file_id, version, size, updated_at from files where path=?`
	row := r.db.QueryRowContext(ctx, query, path)

	f := &models.TrackedFile{}
	err := row.Scan(&f.Path, &f.FileID, &f.Version, &f.Size, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotTracked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", path, err)
	}

	return f, nil
}

func (r *SQLiteRepository) GetByFileID(ctx context.Context, fileID string) ([]*models.TrackedFile, error) {
	result, err := r.query(ctx, `select path, file_id, version, size, updated_at from files where file_id=? order by path`, fileID)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrNotTracked
	}
	return result, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.TrackedFile, error) {
	return r.query(ctx, `select path, file_id, version, size, updated_at from files order by path`)
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.TrackedFile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting files: %w", err)
	}
	defer rows.Close()

	var result []*models.TrackedFile

	for rows.Next() {
		f := &models.TrackedFile{}
		if err := rows.Scan(&f.Path, &f.FileID, &f.Version, &f.Size, &f.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SQLiteRepository) DeleteByFileID(ctx context.Context, fileID string) error {

	result, err := r.db.ExecContext(ctx, `delete from files where file_id=?`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotTracked
	}

	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `delete from files`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear files: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
