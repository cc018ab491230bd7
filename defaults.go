package assetcache

import "time"

const (
	// DefaultNotifyInterval is the progress tick used by streaming backends.
	DefaultNotifyInterval = 500 * time.Millisecond
	// DefaultPinGrace is how long the memory cache pins an asset after Has.
	DefaultPinGrace = time.Second
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
