// Package genstore keeps per-asset generation counters.
//
// Key/value caches stamp each stored frame with the asset's generation at
// write time. Removing an asset bumps the counter first, so a frame written
// earlier is stale on every replica that shares the store, even one that
// missed the delete.
package genstore

import (
	"context"
	"time"
)

// GenStore is safe for concurrent use.
type GenStore interface {
	// Snapshot returns the current generation of id; an unknown id is 0.
	Snapshot(ctx context.Context, id string) (uint64, error)
	// Bump increments the generation of id and returns the new value.
	Bump(ctx context.Context, id string) (uint64, error)
	// Cleanup forgets counters idle for longer than retention. Stores with
	// their own expiry treat it as a no-op.
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
