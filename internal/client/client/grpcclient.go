package client

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/neurostore/internal/api"
	"github.com/dmitrijs2005/neurostore/internal/client/boundary"
	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *api.ChunkServiceClient
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withAccessToken(ctx, s.accessToken), method, req, reply, cc, opts...)
}

func (s *GRPCClient) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(withAccessToken(ctx, s.accessToken), desc, cc, method, opts...)
}

// NewGRPCClient connects lazily to endpointURL. accessToken may be empty
// for anonymous access to public files.
func NewGRPCClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithStreamInterceptor(c.streamAccessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = api.NewChunkServiceClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrForbidden, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) PlanUpload(ctx context.Context, req *api.PlanUploadRequest) (*api.PlanUploadResponse, error) {
	resp, err := s.client.PlanUpload(ctx, req)
	return resp, s.mapError(err)
}

// Upload streams the chunks named by plan, reading their bytes from src,
// and returns the committed version.
func (s *GRPCClient) Upload(ctx context.Context, header *api.PlanUploadRequest, plan *api.PlanUploadResponse, src io.ReaderAt) (*api.UploadResponse, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.client.Upload(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}

	h := *header
	h.FileID = plan.FileID
	if err := stream.Send(&api.UploadRequest{Header: &h}); err != nil {
		return nil, s.closeAndMap(stream, err)
	}

	for _, d := range plan.Upload {
		data, err := boundary.ReadChunk(src, d)
		if err != nil {
			return nil, err
		}
		if err := stream.Send(&api.UploadRequest{Index: d.Index, Hash: d.Hash, Data: data}); err != nil {
			return nil, s.closeAndMap(stream, err)
		}
	}

	if err := stream.Send(&api.UploadRequest{End: true}); err != nil {
		return nil, s.closeAndMap(stream, err)
	}

	resp, err := stream.CloseAndRecv()
	return resp, s.mapError(err)
}

// closeAndMap surfaces the server's status when a Send fails with io.EOF,
// which is how gRPC reports that the server already ended the stream.
func (s *GRPCClient) closeAndMap(stream *api.UploadClient, sendErr error) error {
	if sendErr != io.EOF {
		return s.mapError(sendErr)
	}
	_, err := stream.CloseAndRecv()
	if err == nil {
		return fmt.Errorf("server closed upload early")
	}
	return s.mapError(err)
}

// Download writes version (0 = latest) of fileID to w.
func (s *GRPCClient) Download(ctx context.Context, fileID string, version int64, w io.Writer) (*DownloadReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.client.Download(ctx, &api.DownloadRequest{FileID: fileID, Version: version})
	if err != nil {
		return nil, s.mapError(err)
	}

	report, err := Reassemble(func() (*api.DownloadResponse, error) {
		m, err := stream.Recv()
		if err != nil && err != io.EOF {
			return nil, s.mapError(err)
		}
		return m, err
	}, w)
	return report, err
}

func (s *GRPCClient) Descriptors(ctx context.Context, fileID string, version int64) (*api.DescriptorsResponse, error) {
	resp, err := s.client.GetDescriptors(ctx, &api.DescriptorsRequest{FileID: fileID, Version: version})
	return resp, s.mapError(err)
}

func (s *GRPCClient) Versions(ctx context.Context, fileID string) ([]models.VersionRef, error) {
	resp, err := s.client.ListVersions(ctx, &api.FileRequest{FileID: fileID})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Versions, nil
}

func (s *GRPCClient) GetFile(ctx context.Context, fileID string) (*api.FileInfo, error) {
	resp, err := s.client.GetFile(ctx, &api.FileRequest{FileID: fileID})
	return resp, s.mapError(err)
}

func (s *GRPCClient) ListFiles(ctx context.Context) ([]api.FileInfo, error) {
	resp, err := s.client.ListFiles(ctx, &api.ListFilesRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Files, nil
}

func (s *GRPCClient) SharedWithMe(ctx context.Context) ([]api.FileInfo, error) {
	resp, err := s.client.SharedWithMe(ctx, &api.ListFilesRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Files, nil
}

func (s *GRPCClient) Search(ctx context.Context, query string) ([]api.FileInfo, error) {
	resp, err := s.client.SearchFiles(ctx, &api.SearchRequest{Query: query})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Files, nil
}

func (s *GRPCClient) Rename(ctx context.Context, fileID, name string) (*api.FileInfo, error) {
	resp, err := s.client.RenameFile(ctx, &api.RenameRequest{FileID: fileID, Name: name})
	return resp, s.mapError(err)
}

func (s *GRPCClient) Delete(ctx context.Context, fileID string) error {
	_, err := s.client.DeleteFile(ctx, &api.FileRequest{FileID: fileID})
	return s.mapError(err)
}

func (s *GRPCClient) UpdateAccess(ctx context.Context, fileID string, isPublic bool, entries []models.AccessEntry) (*api.FileInfo, error) {
	resp, err := s.client.UpdateAccess(ctx, &api.UpdateAccessRequest{FileID: fileID, IsPublic: isPublic, Entries: entries})
	return resp, s.mapError(err)
}
