// Package files persists which local paths were uploaded as which server
// files, so a second upload of the same path becomes a new version instead
// of a new file.
//
// Typical usage
//
//	repo := files.NewSQLiteRepository(db)
//	_ = repo.Upsert(ctx, &models.TrackedFile{Path: p, FileID: id, Version: 2})
//	f, _ := repo.GetByPath(ctx, p)
package files
