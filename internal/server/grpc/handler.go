package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/neurostore/internal/api"
	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/server/auth"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/dmitrijs2005/neurostore/internal/server/services"
	"github.com/dmitrijs2005/neurostore/internal/server/stream"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ api.ChunkServiceServer = (*GRPCServer)(nil)

func (s *GRPCServer) PlanUpload(ctx context.Context, req *api.PlanUploadRequest) (*api.PlanUploadResponse, error) {
	plan, err := s.files.PlanUpload(ctx, auth.IdentityFrom(ctx), services.PlanRequest(*req))
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.PlanUploadResponse{
		FileID:      plan.FileID,
		BaseVersion: plan.BaseVersion,
		Upload:      plan.Upload,
		Total:       plan.Stats.Total,
		New:         plan.Stats.New,
		Reused:      plan.Stats.Reused,
		NewBytes:    plan.Stats.NewBytes,
	}, nil
}

// uploadReceiver adapts the Upload stream to stream.Receiver. The header
// frame has already been consumed.
type uploadReceiver struct {
	srv api.ChunkService_UploadServer
}

func (r uploadReceiver) Recv() (*stream.UploadMessage, error) {
	m, err := r.srv.Recv()
	if err != nil {
		return nil, err
	}
	if m.Header != nil {
		return nil, fmt.Errorf("%w: header sent twice", common.ErrProtocol)
	}
	return &stream.UploadMessage{Index: m.Index, Hash: m.Hash, Data: m.Data, End: m.End}, nil
}

func (s *GRPCServer) Upload(srv api.ChunkService_UploadServer) error {
	ctx := srv.Context()

	first, err := srv.Recv()
	if errors.Is(err, io.EOF) {
		return status.Error(codes.InvalidArgument, "empty upload stream")
	}
	if err != nil {
		return err
	}
	if first.Header == nil {
		return status.Error(codes.InvalidArgument, "first upload frame must carry the header")
	}

	res, err := s.files.Upload(ctx, auth.IdentityFrom(ctx), services.PlanRequest(*first.Header), uploadReceiver{srv: srv})
	if err != nil {
		return toStatus(err)
	}

	return srv.SendAndClose(&api.UploadResponse{
		FileID:   res.Version.FileID,
		Version:  res.Version.Number,
		Size:     res.Version.Size,
		Received: res.Received,
		Bytes:    res.Bytes,
	})
}

type downloadSender struct {
	srv api.ChunkService_DownloadServer
}

func (d downloadSender) Send(m *stream.DownloadMessage) error {
	return d.srv.Send(&api.DownloadResponse{Index: m.Index, Data: m.Data, Error: m.Error, Done: m.Done})
}

func (s *GRPCServer) Download(req *api.DownloadRequest, srv api.ChunkService_DownloadServer) error {
	ctx := srv.Context()
	if _, err := s.files.Reconstruct(ctx, auth.IdentityFrom(ctx), req.FileID, req.Version, downloadSender{srv: srv}); err != nil {
		return toStatus(err)
	}
	return nil
}

func (s *GRPCServer) GetDescriptors(ctx context.Context, req *api.DescriptorsRequest) (*api.DescriptorsResponse, error) {
	v, err := s.files.Descriptors(ctx, auth.IdentityFrom(ctx), req.FileID, req.Version)
	if err != nil {
		return nil, toStatus(err)
	}
	return DescriptorsResponse(v), nil
}

// DescriptorsResponse converts version metadata to its wire form.
func DescriptorsResponse(v *models.VersionMetadata) *api.DescriptorsResponse {
	return &api.DescriptorsResponse{
		FileID:          v.FileID,
		Version:         v.Number,
		Size:            v.Size,
		Chunks:          v.Chunks,
		CompressionHint: v.CompressionHint,
		EncryptionHint:  v.EncryptionHint,
		CreatedAt:       v.CreatedAt,
	}
}

func (s *GRPCServer) ListVersions(ctx context.Context, req *api.FileRequest) (*api.VersionsResponse, error) {
	refs, err := s.files.Versions(ctx, auth.IdentityFrom(ctx), req.FileID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.VersionsResponse{Versions: refs}, nil
}

func (s *GRPCServer) GetFile(ctx context.Context, req *api.FileRequest) (*api.FileInfo, error) {
	f, err := s.files.GetFile(ctx, auth.IdentityFrom(ctx), req.FileID)
	return fileInfo(f, err)
}

func (s *GRPCServer) ListFiles(ctx context.Context, _ *api.ListFilesRequest) (*api.ListFilesResponse, error) {
	return fileList(s.files.ListOwned(ctx, auth.IdentityFrom(ctx)))
}

func (s *GRPCServer) SharedWithMe(ctx context.Context, _ *api.ListFilesRequest) (*api.ListFilesResponse, error) {
	return fileList(s.files.ListSharedWith(ctx, auth.IdentityFrom(ctx)))
}

func (s *GRPCServer) SearchFiles(ctx context.Context, req *api.SearchRequest) (*api.ListFilesResponse, error) {
	return fileList(s.files.Search(ctx, auth.IdentityFrom(ctx), req.Query))
}

func (s *GRPCServer) RenameFile(ctx context.Context, req *api.RenameRequest) (*api.FileInfo, error) {
	f, err := s.files.Rename(ctx, auth.IdentityFrom(ctx), req.FileID, req.Name)
	return fileInfo(f, err)
}

func (s *GRPCServer) DeleteFile(ctx context.Context, req *api.FileRequest) (*api.Empty, error) {
	if err := s.files.Delete(ctx, auth.IdentityFrom(ctx), req.FileID); err != nil {
		return nil, toStatus(err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) UpdateAccess(ctx context.Context, req *api.UpdateAccessRequest) (*api.FileInfo, error) {
	f, err := s.files.UpdateAccess(ctx, auth.IdentityFrom(ctx), req.FileID, req.IsPublic, req.Entries)
	return fileInfo(f, err)
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {

	return &api.PingResponse{Status: "OK"}, nil

}

func fileInfo(f *models.File, err error) (*api.FileInfo, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	info := api.FileInfoFrom(f)
	return &info, nil
}

func fileList(files []*models.File, err error) (*api.ListFilesResponse, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.ListFilesResponse{Files: api.FileInfosFrom(files)}, nil
}
