// Package repomanager vends repository implementations for the configured
// SQL dialect and runs the embedded goose migrations for it.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/dbx"
	"github.com/dmitrijs2005/neurostore/internal/server/migrations"
	"github.com/dmitrijs2005/neurostore/internal/server/repositories/files"
	"github.com/dmitrijs2005/neurostore/internal/server/repositories/versions"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLRepositoryManager vends repositories bound to one dialect.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

// Dialect returns the dialect repositories are built for.
func (m *SQLRepositoryManager) Dialect() dbx.Dialect {
	return m.dialect
}

// Files returns a files.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Files(db dbx.DBTX) files.Repository {
	return files.NewRepository(db, m.dialect)
}

// Versions returns a versions.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Versions(db dbx.DBTX) versions.Repository {
	return versions.NewRepository(db, m.dialect)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// migrationDir maps a dialect to its directory inside migrations.Migrations.
func migrationDir(d dbx.Dialect) string {
	if d == dbx.SQLite {
		return "sqlite"
	}
	return "postgres"
}

// RunMigrations sets up goose with the embedded migrations and runs the
// ones for the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.GooseDialect()); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, migrationDir(m.dialect)); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &SQLRepositoryManager{dialect: dbx.Postgres}
}

// NewSQLiteRepositoryManager constructs a SQLite-backed RepositoryManager.
func NewSQLiteRepositoryManager() RepositoryManager {
	return &SQLRepositoryManager{dialect: dbx.SQLite}
}

// New returns the manager for dialect.
func New(dialect dbx.Dialect) (RepositoryManager, error) {
	switch dialect {
	case dbx.Postgres:
		return NewPostgresRepositoryManager(), nil
	case dbx.SQLite:
		return NewSQLiteRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

// Open connects to dsn and checks the connection. SQLite gets a single
// connection so writers queue in the pool instead of failing with SQLITE_BUSY.
func Open(ctx context.Context, dialect dbx.Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, err
	}

	if dialect == dbx.SQLite {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database is not reachable: %w", err)
	}

	if dialect == dbx.SQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}
