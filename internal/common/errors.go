// Package common defines shared constants and sentinel errors used across
// client and server layers of neurostore. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrorForbidden     = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrVersionConflict = errors.New("version conflict")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Storage errors. ErrStorageTransient marks backend I/O failures that
	// are worth retrying.
	ErrStorageTransient = errors.New("storage temporarily unavailable")

	// Transfer errors.
	ErrProtocol  = errors.New("protocol error")
	ErrIntegrity = errors.New("integrity check failed")
)
