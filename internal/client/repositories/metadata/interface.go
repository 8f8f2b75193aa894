package metadata

import (
	"context"
)

// Repository holds client-wide settings of the tracking database, such as
// the server endpoint it is bound to.
type Repository interface {
	// Get returns (nil, nil) when key was never set.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Clear drops every setting.
	Clear(ctx context.Context) error
}
