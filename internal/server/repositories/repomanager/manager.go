package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/neurostore/internal/dbx"
	"github.com/dmitrijs2005/neurostore/internal/server/repositories/files"
	"github.com/dmitrijs2005/neurostore/internal/server/repositories/versions"
)

type RepositoryManager interface {
	Dialect() dbx.Dialect
	RunMigrations(context.Context, *sql.DB) error
	Files(db dbx.DBTX) files.Repository
	Versions(db dbx.DBTX) versions.Repository
}
