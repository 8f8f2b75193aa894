package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "neurostore.ChunkService"

// Method names.
const (
	MethodPlanUpload     = "PlanUpload"
	MethodUpload         = "Upload"
	MethodDownload       = "Download"
	MethodGetDescriptors = "GetDescriptors"
	MethodListVersions   = "ListVersions"
	MethodGetFile        = "GetFile"
	MethodListFiles      = "ListFiles"
	MethodSharedWithMe   = "SharedWithMe"
	MethodSearchFiles    = "SearchFiles"
	MethodRenameFile     = "RenameFile"
	MethodDeleteFile     = "DeleteFile"
	MethodUpdateAccess   = "UpdateAccess"
	MethodPing           = "Ping"
)

// FullMethod returns the gRPC path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type ChunkServiceServer interface {
	PlanUpload(context.Context, *PlanUploadRequest) (*PlanUploadResponse, error)
	Upload(ChunkService_UploadServer) error
	Download(*DownloadRequest, ChunkService_DownloadServer) error
	GetDescriptors(context.Context, *DescriptorsRequest) (*DescriptorsResponse, error)
	ListVersions(context.Context, *FileRequest) (*VersionsResponse, error)
	GetFile(context.Context, *FileRequest) (*FileInfo, error)
	ListFiles(context.Context, *ListFilesRequest) (*ListFilesResponse, error)
	SharedWithMe(context.Context, *ListFilesRequest) (*ListFilesResponse, error)
	SearchFiles(context.Context, *SearchRequest) (*ListFilesResponse, error)
	RenameFile(context.Context, *RenameRequest) (*FileInfo, error)
	DeleteFile(context.Context, *FileRequest) (*Empty, error)
	UpdateAccess(context.Context, *UpdateAccessRequest) (*FileInfo, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

type ChunkService_UploadServer interface {
	Recv() (*UploadRequest, error)
	SendAndClose(*UploadResponse) error
	grpc.ServerStream
}

type ChunkService_DownloadServer interface {
	Send(*DownloadResponse) error
	grpc.ServerStream
}

type uploadServer struct {
	grpc.ServerStream
}

func (s *uploadServer) Recv() (*UploadRequest, error) {
	m := new(UploadRequest)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *uploadServer) SendAndClose(m *UploadResponse) error {
	return s.ServerStream.SendMsg(m)
}

type downloadServer struct {
	grpc.ServerStream
}

func (s *downloadServer) Send(m *DownloadResponse) error {
	return s.ServerStream.SendMsg(m)
}

type unaryHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

// unary adapts a typed method to the untyped handler grpc.ServiceDesc wants.
func unary[Req, Resp any](method string, call func(ChunkServiceServer, context.Context, *Req) (*Resp, error)) unaryHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ChunkServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ChunkServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ChunkServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChunkServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodPlanUpload, Handler: unary(MethodPlanUpload, ChunkServiceServer.PlanUpload)},
		{MethodName: MethodGetDescriptors, Handler: unary(MethodGetDescriptors, ChunkServiceServer.GetDescriptors)},
		{MethodName: MethodListVersions, Handler: unary(MethodListVersions, ChunkServiceServer.ListVersions)},
		{MethodName: MethodGetFile, Handler: unary(MethodGetFile, ChunkServiceServer.GetFile)},
		{MethodName: MethodListFiles, Handler: unary(MethodListFiles, ChunkServiceServer.ListFiles)},
		{MethodName: MethodSharedWithMe, Handler: unary(MethodSharedWithMe, ChunkServiceServer.SharedWithMe)},
		{MethodName: MethodSearchFiles, Handler: unary(MethodSearchFiles, ChunkServiceServer.SearchFiles)},
		{MethodName: MethodRenameFile, Handler: unary(MethodRenameFile, ChunkServiceServer.RenameFile)},
		{MethodName: MethodDeleteFile, Handler: unary(MethodDeleteFile, ChunkServiceServer.DeleteFile)},
		{MethodName: MethodUpdateAccess, Handler: unary(MethodUpdateAccess, ChunkServiceServer.UpdateAccess)},
		{MethodName: MethodPing, Handler: unary(MethodPing, ChunkServiceServer.Ping)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: MethodUpload,
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(ChunkServiceServer).Upload(&uploadServer{stream})
			},
			ClientStreams: true,
		},
		{
			StreamName: MethodDownload,
			Handler: func(srv any, stream grpc.ServerStream) error {
				m := new(DownloadRequest)
				if err := stream.RecvMsg(m); err != nil {
					return err
				}
				return srv.(ChunkServiceServer).Download(m, &downloadServer{stream})
			},
			ServerStreams: true,
		},
	},
	Metadata: "neurostore/chunk_service",
}

func RegisterChunkServiceServer(s grpc.ServiceRegistrar, srv ChunkServiceServer) {
	s.RegisterService(&ChunkServiceDesc, srv)
}
