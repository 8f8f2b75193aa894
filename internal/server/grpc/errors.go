package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors onto gRPC status codes. Unknown errors become
// Internal without leaking their text.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, common.ErrorNotFound):
		code = codes.NotFound
	case errors.Is(err, common.ErrorForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		code = codes.Unauthenticated
	case errors.Is(err, common.ErrInvalidArgument):
		code = codes.InvalidArgument
	case errors.Is(err, common.ErrProtocol):
		code = codes.FailedPrecondition
	case errors.Is(err, common.ErrIntegrity):
		code = codes.DataLoss
	case errors.Is(err, common.ErrStorageTransient):
		code = codes.Unavailable
	case errors.Is(err, common.ErrVersionConflict):
		code = codes.Aborted
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
