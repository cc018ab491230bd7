// Package provider defines the byte stores under the kvcache backend.
//
// A provider only moves opaque frames. It must hand back exactly the bytes
// it was given; kvcache validates frames on read and deletes anything that
// fails, so keys under "asset:<ns>:" and "assetgen:<ns>:" must not be shared
// with other writers.
package provider

import (
	"context"
	"time"
)

// Provider is a byte store with optional expiry. Implementations are safe
// for concurrent use.
type Provider interface {
	// Get reports a miss as (nil, false, nil). Errors are transport or store
	// failures, never misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl (0 means no expiry). cost is the frame size
	// and may be ignored. ok=false means the store declined the write, for
	// example under memory pressure or a per-item size cap.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes key; a missing key is not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
