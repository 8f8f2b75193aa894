// Package services contains the application services behind the neurostore
// CLI. FileService pairs the remote API with the local tracking database so
// that uploading the same path twice produces a new version of one file.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/api"
	"github.com/dmitrijs2005/neurostore/internal/client/boundary"
	"github.com/dmitrijs2005/neurostore/internal/client/client"
	cmodels "github.com/dmitrijs2005/neurostore/internal/client/models"
	"github.com/dmitrijs2005/neurostore/internal/client/repositories/files"
	"github.com/dmitrijs2005/neurostore/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/neurostore/internal/hashx"
	"github.com/dmitrijs2005/neurostore/internal/logging"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/google/renameio"
)

// ServerKey is the metadata key holding the endpoint the tracking database
// belongs to.
const ServerKey = "server"

// ErrServerChanged means the tracking database was filled against another
// server, so the file ids it holds are meaningless here.
var ErrServerChanged = errors.New("tracking database belongs to another server")

// API is the subset of client.GRPCClient the service needs.
type API interface {
	Ping(ctx context.Context) error
	PlanUpload(ctx context.Context, req *api.PlanUploadRequest) (*api.PlanUploadResponse, error)
	Upload(ctx context.Context, header *api.PlanUploadRequest, plan *api.PlanUploadResponse, src io.ReaderAt) (*api.UploadResponse, error)
	Download(ctx context.Context, fileID string, version int64, w io.Writer) (*client.DownloadReport, error)
	Versions(ctx context.Context, fileID string) ([]models.VersionRef, error)
	GetFile(ctx context.Context, fileID string) (*api.FileInfo, error)
	ListFiles(ctx context.Context) ([]api.FileInfo, error)
	SharedWithMe(ctx context.Context) ([]api.FileInfo, error)
	Search(ctx context.Context, query string) ([]api.FileInfo, error)
	Rename(ctx context.Context, fileID, name string) (*api.FileInfo, error)
	Delete(ctx context.Context, fileID string) error
	UpdateAccess(ctx context.Context, fileID string, isPublic bool, entries []models.AccessEntry) (*api.FileInfo, error)
	Close() error
}

// UploadResult describes a committed upload.
type UploadResult struct {
	Path     string
	FileID   string
	Version  int64
	Size     int64
	Chunks   int
	Sent     int
	NewBytes uint64
}

// FileService is what the CLI commands call. A ref is either a path that
// was uploaded before or a server file id.
type FileService interface {
	Ping(ctx context.Context) error
	Upload(ctx context.Context, path, fileID string) (*UploadResult, error)
	// Download writes the version (0 = latest) to dest atomically, or to w
	// when dest is empty.
	Download(ctx context.Context, ref string, version int64, dest string, w io.Writer) (*client.DownloadReport, error)
	Versions(ctx context.Context, ref string) ([]models.VersionRef, error)
	Get(ctx context.Context, ref string) (*api.FileInfo, error)
	List(ctx context.Context, shared bool) ([]api.FileInfo, error)
	Search(ctx context.Context, query string) ([]api.FileInfo, error)
	Rename(ctx context.Context, ref, name string) (*api.FileInfo, error)
	Delete(ctx context.Context, ref string) error
	// Share replaces the access list of the file.
	Share(ctx context.Context, ref string, isPublic bool, entries []models.AccessEntry) (*api.FileInfo, error)
	Tracked(ctx context.Context) ([]*cmodels.TrackedFile, error)
	// Rebind forgets every tracked path and binds the database to the
	// configured server. It returns how many paths were forgotten.
	Rebind(ctx context.Context) (int64, error)
	Close() error
}

type fileService struct {
	api      API
	files    files.Repository
	metadata metadata.Repository
	server   string
	hash     string
	logger   logging.Logger

	newProducer func(h hashx.Hasher) boundary.Producer
	now         func() time.Time
}

// NewFileService binds api to the tracking repositories. server is the
// endpoint the client talks to; hashAlgorithm must match the server's.
func NewFileService(a API, fr files.Repository, mr metadata.Repository, server, hashAlgorithm string, logger logging.Logger) FileService {
	return &fileService{
		api:         a,
		files:       fr,
		metadata:    mr,
		server:      server,
		hash:        hashAlgorithm,
		logger:      logger.With("module", "files"),
		newProducer: func(h hashx.Hasher) boundary.Producer { return boundary.NewRabinProducer(h) },
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *fileService) Ping(ctx context.Context) error {
	return s.api.Ping(ctx)
}

func (s *fileService) Close() error {
	return s.api.Close()
}

// checkServer records the endpoint on first use and refuses a database
// that was filled against another one.
func (s *fileService) checkServer(ctx context.Context) error {
	v, err := s.metadata.Get(ctx, ServerKey)
	if err != nil {
		return err
	}
	if v == nil {
		return s.metadata.Set(ctx, ServerKey, []byte(s.server))
	}
	if !bytes.Equal(v, []byte(s.server)) {
		return fmt.Errorf("%w: %s", ErrServerChanged, v)
	}
	return nil
}

// resolve maps a tracked path to its file id. Anything else is taken to
// be a file id already.
func (s *fileService) resolve(ctx context.Context, ref string) (string, error) {
	abs, err := filepath.Abs(ref)
	if err != nil {
		return ref, nil
	}
	t, err := s.files.GetByPath(ctx, abs)
	switch {
	case err == nil:
		if err := s.checkServer(ctx); err != nil {
			return "", err
		}
		return t.FileID, nil
	case errors.Is(err, files.ErrNotTracked):
		return ref, nil
	default:
		return "", err
	}
}

func (s *fileService) Upload(ctx context.Context, path, fileID string) (*UploadResult, error) {
	if err := s.checkServer(ctx); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	if fileID == "" {
		t, err := s.files.GetByPath(ctx, abs)
		switch {
		case err == nil:
			fileID = t.FileID
		case errors.Is(err, files.ErrNotTracked):
		default:
			return nil, err
		}
	}

	h, err := hashx.New(s.hash)
	if err != nil {
		return nil, err
	}
	chunks, err := s.newProducer(h).Produce(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", path, err)
	}

	header := &api.PlanUploadRequest{
		FileID:   fileID,
		Name:     filepath.Base(abs),
		MimeType: mime.TypeByExtension(filepath.Ext(abs)),
		Size:     st.Size(),
		Chunks:   chunks,
	}
	plan, err := s.api.PlanUpload(ctx, header)
	if err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "upload planned", "path", abs, "file_id", plan.FileID,
		"chunks", plan.Total, "new", plan.New)

	res, err := s.api.Upload(ctx, header, plan, f)
	if err != nil {
		return nil, err
	}

	if err := s.files.Upsert(ctx, &cmodels.TrackedFile{
		Path:      abs,
		FileID:    res.FileID,
		Version:   res.Version,
		Size:      res.Size,
		UpdatedAt: s.now(),
	}); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "uploaded", "path", abs, "file_id", res.FileID, "version", res.Version)

	return &UploadResult{
		Path:     abs,
		FileID:   res.FileID,
		Version:  res.Version,
		Size:     res.Size,
		Chunks:   plan.Total,
		Sent:     res.Received,
		NewBytes: plan.NewBytes,
	}, nil
}

func (s *fileService) Download(ctx context.Context, ref string, version int64, dest string, w io.Writer) (*client.DownloadReport, error) {
	id, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	if dest == "" {
		return s.api.Download(ctx, id, version, w)
	}

	pf, err := renameio.TempFile("", dest)
	if err != nil {
		return nil, err
	}
	defer pf.Cleanup()

	report, err := s.api.Download(ctx, id, version, pf)
	if err != nil {
		return report, err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return report, err
	}
	s.logger.Info(ctx, "downloaded", "file_id", id, "dest", dest, "bytes", report.Bytes)
	return report, nil
}

func (s *fileService) Versions(ctx context.Context, ref string) ([]models.VersionRef, error) {
	id, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.api.Versions(ctx, id)
}

func (s *fileService) Get(ctx context.Context, ref string) (*api.FileInfo, error) {
	id, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.api.GetFile(ctx, id)
}

func (s *fileService) List(ctx context.Context, shared bool) ([]api.FileInfo, error) {
	if shared {
		return s.api.SharedWithMe(ctx)
	}
	return s.api.ListFiles(ctx)
}

func (s *fileService) Search(ctx context.Context, query string) ([]api.FileInfo, error) {
	return s.api.Search(ctx, query)
}

func (s *fileService) Rename(ctx context.Context, ref, name string) (*api.FileInfo, error) {
	id, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.api.Rename(ctx, id, name)
}

func (s *fileService) Delete(ctx context.Context, ref string) error {
	id, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.files.DeleteByFileID(ctx, id); err != nil && !errors.Is(err, files.ErrNotTracked) {
		return err
	}
	return nil
}

func (s *fileService) Share(ctx context.Context, ref string, isPublic bool, entries []models.AccessEntry) (*api.FileInfo, error) {
	id, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.api.UpdateAccess(ctx, id, isPublic, entries)
}

func (s *fileService) Tracked(ctx context.Context) ([]*cmodels.TrackedFile, error) {
	return s.files.List(ctx)
}

func (s *fileService) Rebind(ctx context.Context) (int64, error) {
	n, err := s.files.Clear(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.metadata.Clear(ctx); err != nil {
		return n, err
	}
	if err := s.metadata.Set(ctx, ServerKey, []byte(s.server)); err != nil {
		return n, err
	}
	s.logger.Info(ctx, "tracking database rebound", "server", s.server, "forgotten", n)
	return n, nil
}
