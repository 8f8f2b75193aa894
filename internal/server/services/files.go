// Package services contains server-side business logic. FileService plans
// and commits uploads, streams reconstructions and answers metadata queries
// on behalf of an identity.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/dbx"
	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/dmitrijs2005/neurostore/internal/server/access"
	"github.com/dmitrijs2005/neurostore/internal/server/chunkstore"
	"github.com/dmitrijs2005/neurostore/internal/server/diff"
	"github.com/dmitrijs2005/neurostore/internal/server/ledger"
	"github.com/dmitrijs2005/neurostore/internal/server/metrics"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/dmitrijs2005/neurostore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/neurostore/internal/server/stream"
	"github.com/google/uuid"
)

// PlanRequest announces an upload. FileID is empty for a new file; a client
// may also pick the id of a file that does not exist yet.
type PlanRequest struct {
	FileID          string             `json:"file_id,omitempty"`
	Name            string             `json:"name,omitempty"`
	MimeType        string             `json:"mime_type,omitempty"`
	Size            int64              `json:"size"`
	Chunks          models.Descriptors `json:"chunks"`
	CompressionHint string             `json:"compression_hint,omitempty"`
	EncryptionHint  string             `json:"encryption_hint,omitempty"`
}

// UploadPlan tells the client which chunks to send.
type UploadPlan struct {
	FileID      string             `json:"file_id"`
	BaseVersion int64              `json:"base_version"`
	Upload      models.Descriptors `json:"upload"`
	Stats       diff.Stats         `json:"stats"`
}

type Options struct {
	UploadWorkers int
	ReadAhead     int
	Metrics       *metrics.Metrics
}

type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       chunkstore.Store
	ledger      *ledger.Ledger
	logger      logging.Logger
	opts        Options

	now   func() time.Time
	newID func() string
}

func NewFileService(db *sql.DB, rm repomanager.RepositoryManager, store chunkstore.Store, l *ledger.Ledger,
	logger logging.Logger, opts Options) *FileService {
	return &FileService{
		db:          db,
		repomanager: rm,
		store:       store,
		ledger:      l,
		logger:      logger.With("module", "files"),
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// PlanUpload validates the announced chunk list, creates the file on first
// upload and returns the chunks that are neither in the previous version nor
// anywhere in the store.
func (s *FileService) PlanUpload(ctx context.Context, identity models.Identity, req PlanRequest) (*UploadPlan, error) {
	if identity.UserID == "" {
		return nil, common.ErrorUnauthorized
	}
	if err := req.Chunks.Validate(req.Size); err != nil {
		return nil, err
	}

	f, err := s.fileForUpload(ctx, identity, req)
	if err != nil {
		return nil, err
	}

	var previous models.Descriptors
	var base int64
	prev, err := s.ledger.Latest(ctx, f.ID)
	switch {
	case err == nil:
		previous, base = prev.Chunks, prev.Number
	case errors.Is(err, common.ErrorNotFound):
	default:
		return nil, err
	}

	changed := diff.Diff(req.Chunks, previous)
	missing, err := s.store.Missing(ctx, diff.Hashes(changed))
	if err != nil {
		return nil, err
	}

	upload := firstOfEach(changed, missing)
	stats := diff.Summarize(req.Chunks, upload)
	if s.opts.Metrics != nil {
		s.opts.Metrics.ChunksPlanned.WithLabelValues("new").Add(float64(stats.New))
		s.opts.Metrics.ChunksPlanned.WithLabelValues("reused").Add(float64(stats.Reused))
	}
	s.logger.Info(ctx, "upload planned", "file_id", f.ID, "base_version", base,
		"chunks", stats.Total, "new", stats.New, "new_bytes", stats.NewBytes)

	return &UploadPlan{FileID: f.ID, BaseVersion: base, Upload: upload, Stats: stats}, nil
}

func (s *FileService) fileForUpload(ctx context.Context, identity models.Identity, req PlanRequest) (*models.File, error) {
	if req.FileID != "" {
		f, err := s.repomanager.Files(s.db).Get(ctx, req.FileID)
		if err == nil {
			if err := access.Require(identity, f, models.AccessWrite); err != nil {
				return nil, err
			}
			return f, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
	}

	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: a new file needs a name", common.ErrInvalidArgument)
	}

	id := req.FileID
	if id == "" {
		id = s.newID()
	}
	name, ext := splitName(req.Name)
	now := s.now()
	f := &models.File{
		ID:        id,
		OwnerID:   identity.UserID,
		Name:      name,
		Extension: ext,
		MimeType:  req.MimeType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repomanager.Files(s.db).Create(ctx, f); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			// The id exists but is deleted or was just taken.
			return nil, fmt.Errorf("%w: file id %s is not available", common.ErrorForbidden, id)
		}
		return nil, err
	}
	s.logger.Info(ctx, "file created", "file_id", id, "owner", identity.UserID)
	return f, nil
}

// Upload receives the chunks announced in req and commits a new version.
func (s *FileService) Upload(ctx context.Context, identity models.Identity, req PlanRequest, recv stream.Receiver) (*stream.UploadResult, error) {
	res, err := s.upload(ctx, identity, req, recv)
	if s.opts.Metrics != nil {
		outcome := "committed"
		if err != nil {
			outcome = "failed"
		}
		s.opts.Metrics.UploadSessions.WithLabelValues(outcome).Inc()
	}
	return res, err
}

func (s *FileService) upload(ctx context.Context, identity models.Identity, req PlanRequest, recv stream.Receiver) (*stream.UploadResult, error) {
	if req.FileID == "" {
		return nil, fmt.Errorf("%w: upload needs a file id from the plan", common.ErrInvalidArgument)
	}
	f, err := s.repomanager.Files(s.db).Get(ctx, req.FileID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(identity, f, models.AccessWrite); err != nil {
		return nil, err
	}

	mime := req.MimeType
	if mime == "" {
		mime = f.MimeType
	}
	session := &stream.UploadSession{
		Version: ledger.NewVersion{
			FileID:          f.ID,
			Size:            req.Size,
			MimeType:        mime,
			Chunks:          req.Chunks,
			CompressionHint: req.CompressionHint,
			EncryptionHint:  req.EncryptionHint,
		},
		Store:   s.store,
		Ledger:  s.ledger,
		Workers: s.opts.UploadWorkers,
		Logger:  s.logger,
	}

	res, err := session.Run(ctx, recv)
	if err != nil {
		s.logger.Warn(ctx, "upload aborted", "file_id", f.ID, "error", err)
		return nil, err
	}
	s.logger.Info(ctx, "upload committed", "file_id", f.ID, "version", res.Version.Number,
		"received", res.Received, "bytes", res.Bytes)
	return res, nil
}

// Reconstruct streams version (0 = latest) of fileID to out. Access and
// version problems are returned before anything is sent.
func (s *FileService) Reconstruct(ctx context.Context, identity models.Identity, fileID string, version int64, out stream.Sender) (stream.DownloadStats, error) {
	v, err := s.Descriptors(ctx, identity, fileID, version)
	if err != nil {
		return stream.DownloadStats{}, err
	}

	stats, err := stream.Reconstruct(ctx, s.store, v.Chunks, out, s.opts.ReadAhead, s.logger)
	if s.opts.Metrics != nil {
		s.opts.Metrics.DownloadChunks.WithLabelValues("sent").Add(float64(stats.Sent))
		s.opts.Metrics.DownloadChunks.WithLabelValues("failed").Add(float64(stats.Failed))
	}
	if err != nil {
		s.logger.Warn(ctx, "download interrupted", "file_id", fileID, "version", v.Number, "sent", stats.Sent, "error", err)
		return stats, err
	}
	s.logger.Info(ctx, "download finished", "file_id", fileID, "version", v.Number,
		"sent", stats.Sent, "failed", stats.Failed, "bytes", stats.Bytes)
	return stats, nil
}

// Descriptors returns the metadata, chunk list included, of version (0 =
// latest) of fileID as seen by identity.
func (s *FileService) Descriptors(ctx context.Context, identity models.Identity, fileID string, version int64) (*models.VersionMetadata, error) {
	if _, err := s.readable(ctx, identity, fileID); err != nil {
		return nil, err
	}
	return s.ledger.Resolve(ctx, fileID, version)
}

// Versions lists the version history of fileID.
func (s *FileService) Versions(ctx context.Context, identity models.Identity, fileID string) ([]models.VersionRef, error) {
	if _, err := s.readable(ctx, identity, fileID); err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, fileID)
}

// GetFile returns the file with its version refs. The access list is only
// shown to callers with write access.
func (s *FileService) GetFile(ctx context.Context, identity models.Identity, fileID string) (*models.File, error) {
	f, err := s.readable(ctx, identity, fileID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(identity, f, models.AccessWrite); err != nil {
		f.AccessList = nil
	}
	f.Versions, err = s.ledger.List(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FileService) ListOwned(ctx context.Context, identity models.Identity) ([]*models.File, error) {
	if identity.UserID == "" {
		return nil, common.ErrorUnauthorized
	}
	return s.repomanager.Files(s.db).ListByOwner(ctx, identity.UserID)
}

func (s *FileService) ListSharedWith(ctx context.Context, identity models.Identity) ([]*models.File, error) {
	if identity.Anonymous() {
		return nil, common.ErrorUnauthorized
	}
	return s.repomanager.Files(s.db).ListSharedWith(ctx, identity)
}

// Search finds readable files whose name contains query.
func (s *FileService) Search(ctx context.Context, identity models.Identity, query string) ([]*models.File, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search", common.ErrInvalidArgument)
	}
	return s.repomanager.Files(s.db).Search(ctx, identity, query)
}

func (s *FileService) Rename(ctx context.Context, identity models.Identity, fileID, newName string) (*models.File, error) {
	if strings.TrimSpace(newName) == "" {
		return nil, fmt.Errorf("%w: empty name", common.ErrInvalidArgument)
	}
	f, err := s.writable(ctx, identity, fileID)
	if err != nil {
		return nil, err
	}

	f.Name, f.Extension = splitName(newName)
	f.UpdatedAt = s.now()
	if err := s.repomanager.Files(s.db).Rename(ctx, fileID, f.Name, f.Extension, f.UpdatedAt); err != nil {
		return nil, err
	}
	return f, nil
}

// Delete hides the file. Only the owner may delete; chunks are untouched.
func (s *FileService) Delete(ctx context.Context, identity models.Identity, fileID string) error {
	f, err := s.repomanager.Files(s.db).Get(ctx, fileID)
	if err != nil {
		return err
	}
	if !access.IsOwner(identity, f) {
		if _, rerr := access.Resolve(identity, f); rerr != nil {
			return common.ErrorNotFound
		}
		return common.ErrorForbidden
	}
	if err := s.repomanager.Files(s.db).SoftDelete(ctx, fileID, s.now()); err != nil {
		return err
	}
	s.logger.Info(ctx, "file deleted", "file_id", fileID)
	return nil
}

// UpdateAccess replaces the public flag and the access list.
func (s *FileService) UpdateAccess(ctx context.Context, identity models.Identity, fileID string, isPublic bool, entries []models.AccessEntry) (*models.File, error) {
	for i, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, fmt.Errorf("access entry %d: %w", i, err)
		}
	}
	entries = mergeEntries(entries)

	f, err := s.writable(ctx, identity, fileID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Files(tx).SetAccess(ctx, fileID, isPublic, entries, now)
	})
	if err != nil {
		return nil, err
	}

	f.IsPublic, f.AccessList, f.UpdatedAt = isPublic, entries, now
	s.logger.Info(ctx, "access updated", "file_id", fileID, "public", isPublic, "entries", len(entries))
	return f, nil
}

// readable loads fileID and checks read access.
func (s *FileService) readable(ctx context.Context, identity models.Identity, fileID string) (*models.File, error) {
	f, err := s.repomanager.Files(s.db).Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(identity, f, models.AccessRead); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FileService) writable(ctx context.Context, identity models.Identity, fileID string) (*models.File, error) {
	f, err := s.repomanager.Files(s.db).Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(identity, f, models.AccessWrite); err != nil {
		return nil, err
	}
	return f, nil
}

func validateEntry(e models.AccessEntry) error {
	switch e.Kind {
	case models.KindUserID, models.KindProviderID, models.KindEmail:
	default:
		return fmt.Errorf("%w: unknown identity kind %q", common.ErrInvalidArgument, e.Kind)
	}
	if strings.TrimSpace(e.Value) == "" {
		return fmt.Errorf("%w: empty identity value", common.ErrInvalidArgument)
	}
	if !e.Level.Valid() {
		return fmt.Errorf("%w: unknown access level %q", common.ErrInvalidArgument, e.Level)
	}
	return nil
}

// mergeEntries folds entries naming the same identity into one, keeping the
// highest level. Emails compare case-insensitively, as in Identity.Matches.
func mergeEntries(entries []models.AccessEntry) []models.AccessEntry {
	if len(entries) == 0 {
		return entries
	}
	type key struct {
		kind  models.IdentityKind
		value string
	}
	seen := make(map[key]int, len(entries))
	out := make([]models.AccessEntry, 0, len(entries))
	for _, e := range entries {
		k := key{kind: e.Kind, value: e.Value}
		if e.Kind == models.KindEmail {
			k.value = strings.ToLower(e.Value)
		}
		if i, ok := seen[k]; ok {
			if e.Level.Allows(out[i].Level) {
				out[i].Level = e.Level
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, e)
	}
	return out
}

// firstOfEach keeps the first descriptor of every hash listed in missing.
func firstOfEach(list models.Descriptors, missing []string) models.Descriptors {
	want := make(map[string]bool, len(missing))
	for _, h := range missing {
		want[h] = true
	}
	out := make(models.Descriptors, 0, len(missing))
	for _, d := range list {
		if want[d.Hash] {
			out = append(out, d)
			want[d.Hash] = false
		}
	}
	return out
}

// splitName turns "report.final.pdf" into ("report.final", "pdf").
func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	ext := filepath.Ext(full)
	if ext == "" || ext == full {
		return full, ""
	}
	return strings.TrimSuffix(full, ext), strings.TrimPrefix(ext, ".")
}
