// Package client talks to the neurostore server over gRPC.
//
// # Overview
//
// GRPCClient wraps the ChunkService contract from internal/api: it attaches
// the access token to every call, streams the planned chunks of an upload
// and reassembles downloads. Chunk messages may arrive in any order;
// Reassemble puts them back in index order before writing.
//
// # Error Handling
//
// gRPC status codes are mapped to sentinel errors callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrForbidden, ErrNotFound.
// A download that lost chunks fails with a *DownloadError listing each
// ChunkError.
package client
