package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/neurostore/internal/client/migrations"
	"github.com/dmitrijs2005/neurostore/internal/client/repositories/files"
	"github.com/dmitrijs2005/neurostore/internal/client/repositories/metadata"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories groups the tracking database handles.
type Repositories struct {
	Metadata metadata.Repository
	Files    files.Repository
	DB       *sql.DB
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, "sqlite")
}

// InitDatabase opens the SQLite tracking database at dsn and brings its
// schema up to date.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		Metadata: metadata.NewSQLiteRepository(db),
		Files:    files.NewSQLiteRepository(db),
		DB:       db,
	}, nil
}
