package grpc

import (
	"context"

	"github.com/dmitrijs2005/neurostore/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TokenMetadataKey is the metadata key carrying the access token.
const TokenMetadataKey = "access_token"

func tokenFromContext(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(TokenMetadataKey)
		if len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// authenticate attaches the caller identity to ctx. A call without a token
// runs as the anonymous identity; a bad token is rejected.
func (s *GRPCServer) authenticate(ctx context.Context) (context.Context, error) {
	accessToken := tokenFromContext(ctx)
	if len(accessToken) == 0 {
		return ctx, nil
	}

	identity, err := auth.IdentityFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	return auth.WithIdentity(ctx, identity), nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	authCtx, err := s.authenticate(ctx)
	if err != nil {
		s.logger.Warn(ctx, "rejected call", "method", info.FullMethod, "error", err)
		return nil, err
	}
	return handler(authCtx, req)
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context {
	return s.ctx
}

func (s *GRPCServer) streamAccessTokenInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authenticate(ss.Context())
	if err != nil {
		s.logger.Warn(ss.Context(), "rejected stream", "method", info.FullMethod, "error", err)
		return err
	}
	return handler(srv, &identityStream{ServerStream: ss, ctx: ctx})
}
