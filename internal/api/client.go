package api

import (
	"context"

	"google.golang.org/grpc"
)

// ChunkServiceClient calls ChunkService over cc. Every call uses the JSON
// codec.
type ChunkServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChunkServiceClient(cc grpc.ClientConnInterface) *ChunkServiceClient {
	return &ChunkServiceClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ChunkServiceClient) PlanUpload(ctx context.Context, in *PlanUploadRequest, opts ...grpc.CallOption) (*PlanUploadResponse, error) {
	return invoke[PlanUploadResponse](ctx, c.cc, MethodPlanUpload, in, opts)
}

func (c *ChunkServiceClient) GetDescriptors(ctx context.Context, in *DescriptorsRequest, opts ...grpc.CallOption) (*DescriptorsResponse, error) {
	return invoke[DescriptorsResponse](ctx, c.cc, MethodGetDescriptors, in, opts)
}

func (c *ChunkServiceClient) ListVersions(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*VersionsResponse, error) {
	return invoke[VersionsResponse](ctx, c.cc, MethodListVersions, in, opts)
}

func (c *ChunkServiceClient) GetFile(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*FileInfo, error) {
	return invoke[FileInfo](ctx, c.cc, MethodGetFile, in, opts)
}

func (c *ChunkServiceClient) ListFiles(ctx context.Context, in *ListFilesRequest, opts ...grpc.CallOption) (*ListFilesResponse, error) {
	return invoke[ListFilesResponse](ctx, c.cc, MethodListFiles, in, opts)
}

func (c *ChunkServiceClient) SharedWithMe(ctx context.Context, in *ListFilesRequest, opts ...grpc.CallOption) (*ListFilesResponse, error) {
	return invoke[ListFilesResponse](ctx, c.cc, MethodSharedWithMe, in, opts)
}

func (c *ChunkServiceClient) SearchFiles(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*ListFilesResponse, error) {
	return invoke[ListFilesResponse](ctx, c.cc, MethodSearchFiles, in, opts)
}

func (c *ChunkServiceClient) RenameFile(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*FileInfo, error) {
	return invoke[FileInfo](ctx, c.cc, MethodRenameFile, in, opts)
}

func (c *ChunkServiceClient) DeleteFile(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodDeleteFile, in, opts)
}

func (c *ChunkServiceClient) UpdateAccess(ctx context.Context, in *UpdateAccessRequest, opts ...grpc.CallOption) (*FileInfo, error) {
	return invoke[FileInfo](ctx, c.cc, MethodUpdateAccess, in, opts)
}

func (c *ChunkServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, in, opts)
}

type UploadClient struct {
	grpc.ClientStream
}

func (x *UploadClient) Send(m *UploadRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *UploadClient) CloseAndRecv() (*UploadResponse, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(UploadResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *ChunkServiceClient) Upload(ctx context.Context, opts ...grpc.CallOption) (*UploadClient, error) {
	stream, err := c.cc.NewStream(ctx, &ChunkServiceDesc.Streams[0], FullMethod(MethodUpload), withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &UploadClient{stream}, nil
}

type DownloadClient struct {
	grpc.ClientStream
}

func (x *DownloadClient) Recv() (*DownloadResponse, error) {
	m := new(DownloadResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *ChunkServiceClient) Download(ctx context.Context, in *DownloadRequest, opts ...grpc.CallOption) (*DownloadClient, error) {
	stream, err := c.cc.NewStream(ctx, &ChunkServiceDesc.Streams[1], FullMethod(MethodDownload), withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &DownloadClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
