// Package files stores file references. Queries are written in Postgres
// placeholder style and rebound for SQLite.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/dbx"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
)

const fileColumns = `id, owner_id, name, extension, size, mime_type, is_public, current_version, created_at, updated_at, deleted_at`

// sharedPredicate matches files with an access entry for the identity in
// $1 (user id), $2 (provider id) and $3 (email).
const sharedPredicate = `EXISTS (
			SELECT 1 FROM file_access a
			WHERE a.file_id = files.id AND (
				(a.kind = 'user_id' AND a.value = $1) OR
				(a.kind = 'provider_id' AND a.value = $2) OR
				(a.kind = 'email' AND LOWER(a.value) = LOWER($3))
			)
		)`

// SQLRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

// NewRepository binds a repository to db using the placeholder style of dialect.
func NewRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// NewPostgresRepository constructs a repository for a pgx connection.
func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return NewRepository(db, dbx.Postgres)
}

func (r *SQLRepository) q(query string) string {
	return dbx.Rebind(r.dialect, query)
}

// Create inserts a new file row with its access list.
func (r *SQLRepository) Create(ctx context.Context, f *models.File) error {
	query := `
		INSERT INTO files (id, owner_id, name, extension, size, mime_type, is_public, current_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, r.q(query),
		f.ID, f.OwnerID, f.Name, f.Extension, f.Size, f.MimeType, f.IsPublic, f.CurrentVersion, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("file %s already exists: %w", f.ID, common.ErrVersionConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return r.insertAccess(ctx, f.ID, f.AccessList)
}

// Get returns a live file with its access list, or common.ErrorNotFound.
func (r *SQLRepository) Get(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND deleted_at IS NULL`

	f, err := scanFile(r.db.QueryRowContext(ctx, r.q(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}

	f.AccessList, err = r.accessList(ctx, id)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// IncrementVersion bumps current_version and returns the new value. The
// UPDATE holds the row lock until the surrounding transaction ends, which
// serializes concurrent writers of the same file.
func (r *SQLRepository) IncrementVersion(ctx context.Context, id string, at time.Time) (int64, error) {
	query := `
		UPDATE files SET current_version = current_version + 1, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING current_version
	`
	var n int64
	if err := r.db.QueryRowContext(ctx, r.q(query), id, at).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// SetContent records the size and mime type of the newest version.
func (r *SQLRepository) SetContent(ctx context.Context, id string, size int64, mimeType string, at time.Time) error {
	query := `UPDATE files SET size = $2, mime_type = $3, updated_at = $4 WHERE id = $1 AND deleted_at IS NULL`
	return r.execOne(ctx, query, id, size, mimeType, at)
}

// ListByOwner returns the caller's live files, newest first. Rows carry no
// access list.
func (r *SQLRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC`
	return r.selectFiles(ctx, query, ownerID)
}

// ListSharedWith returns live files not owned by identity that carry an
// access entry matching one of its attributes.
func (r *SQLRepository) ListSharedWith(ctx context.Context, identity models.Identity) ([]*models.File, error) {
	if identity.Anonymous() {
		return []*models.File{}, nil
	}
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE deleted_at IS NULL AND owner_id <> $1 AND ` + sharedPredicate + `
		ORDER BY updated_at DESC`
	return r.selectFiles(ctx, query, identity.UserID, identity.ProviderID, identity.Email)
}

// Search returns live files whose name contains name (case-insensitive) and
// which identity can at least read.
func (r *SQLRepository) Search(ctx context.Context, identity models.Identity, name string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE deleted_at IS NULL
		AND LOWER(name) LIKE $4 ESCAPE '\'
		AND (owner_id = $1 OR is_public OR ` + sharedPredicate + `)
		ORDER BY name`
	return r.selectFiles(ctx, query, identity.UserID, identity.ProviderID, identity.Email, likePattern(name))
}

// Rename changes the display name of a live file.
func (r *SQLRepository) Rename(ctx context.Context, id, name, extension string, at time.Time) error {
	query := `UPDATE files SET name = $2, extension = $3, updated_at = $4 WHERE id = $1 AND deleted_at IS NULL`
	return r.execOne(ctx, query, id, name, extension, at)
}

// SoftDelete hides the file. Versions and chunks stay in place.
func (r *SQLRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE files SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	return r.execOne(ctx, query, id, at)
}

// SetAccess replaces the public flag and the whole access list. Run it
// inside a transaction.
func (r *SQLRepository) SetAccess(ctx context.Context, id string, isPublic bool, entries []models.AccessEntry, at time.Time) error {
	query := `UPDATE files SET is_public = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`
	if err := r.execOne(ctx, query, id, isPublic, at); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, r.q(`DELETE FROM file_access WHERE file_id = $1`), id); err != nil {
		return fmt.Errorf("failed to clear access list: %w", err)
	}
	return r.insertAccess(ctx, id, entries)
}

func (r *SQLRepository) insertAccess(ctx context.Context, id string, entries []models.AccessEntry) error {
	query := `INSERT INTO file_access (file_id, kind, value, level) VALUES ($1, $2, $3, $4)`
	for _, e := range entries {
		if _, err := r.db.ExecContext(ctx, r.q(query), id, string(e.Kind), e.Value, string(e.Level)); err != nil {
			return fmt.Errorf("failed to insert access entry: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) accessList(ctx context.Context, id string) ([]models.AccessEntry, error) {
	query := `SELECT kind, value, level FROM file_access WHERE file_id = $1 ORDER BY kind, value`
	rows, err := r.db.QueryContext(ctx, r.q(query), id)
	if err != nil {
		return nil, fmt.Errorf("failed to select access list: %w", err)
	}
	defer rows.Close()

	result := []models.AccessEntry{}
	for rows.Next() {
		var kind, value, level string
		if err := rows.Scan(&kind, &value, &level); err != nil {
			return nil, err
		}
		result = append(result, models.AccessEntry{
			Kind:  models.IdentityKind(kind),
			Value: value,
			Level: models.AccessLevel(level),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLRepository) selectFiles(ctx context.Context, query string, args ...any) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := []*models.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, r.q(query), args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	f := &models.File{}
	var deleted sql.NullTime
	err := s.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Extension, &f.Size, &f.MimeType, &f.IsPublic,
		&f.CurrentVersion, &f.CreatedAt, &f.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	if deleted.Valid {
		t := deleted.Time
		f.DeletedAt = &t
	}
	return f, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
