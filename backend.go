package assetcache

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
)

// Backend is a single source or cache of assets.
//
// Implementations must be safe for concurrent use. Ordinary failures never
// panic: Get reports a miss as nil and an undecodable hit as a corrupt Asset,
// the remaining operations return an error the Manager logs.
type Backend interface {
	// Has is a bounded existence probe.
	Has(ctx context.Context, id string) bool

	// Get resolves id. When l is non-nil it receives NotifyPartial zero or more
	// times and then exactly one Notify, also on failure.
	Get(ctx context.Context, id string, l Listener) *Asset

	// CanCache reports whether Cache accepts a.
	CanCache(a *Asset) bool
	// Cache stores a under id (upsert).
	Cache(ctx context.Context, id string, a *Asset) error

	// CanCreate reports whether Create accepts payloads of type t.
	CanCreate(t reflect.Type) bool
	// Create stores a under a freshly minted id.
	Create(ctx context.Context, a *Asset) (string, error)
	// Update stores a under an existing or new id.
	Update(ctx context.Context, id string, a *Asset) error

	CanRemove(ctx context.Context, id string) bool
	Remove(ctx context.Context, id string) error

	// Priority orders backends; higher is preferred.
	Priority() int
	SetPriority(p int)
}

// Overrider is implemented by backends that may preempt a higher-priority
// backend holding the same id (see DefaultStrategy.AllowOverride).
type Overrider interface {
	WantOverride(ctx context.Context, id string) bool
}

// Closer is implemented by backends holding resources. Manager.Close calls it.
type Closer interface {
	Close(ctx context.Context) error
}

// Class tags a registered backend with its capability class. The zero value is
// not a valid class.
type Class uint8

const (
	ClassMemoryCache Class = iota + 1
	ClassDiskCache
	ClassRemoteCache
	ClassFileOrigin
	ClassArchiveOrigin
	ClassNetworkOrigin
)

// DefaultClassOrder is fastest and cheapest first.
var DefaultClassOrder = []Class{
	ClassMemoryCache,
	ClassDiskCache,
	ClassRemoteCache,
	ClassFileOrigin,
	ClassArchiveOrigin,
	ClassNetworkOrigin,
}

func (c Class) String() string {
	switch c {
	case ClassMemoryCache:
		return "memory-cache"
	case ClassDiskCache:
		return "disk-cache"
	case ClassRemoteCache:
		return "remote-cache"
	case ClassFileOrigin:
		return "file-origin"
	case ClassArchiveOrigin:
		return "archive-origin"
	case ClassNetworkOrigin:
		return "network-origin"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Origin reports whether backends of this class may create assets.
func (c Class) Origin() bool {
	return c == ClassFileOrigin || c == ClassArchiveOrigin || c == ClassNetworkOrigin
}

// Base carries the priority and refuses every optional capability. Embed it
// and override what the backend supports; set the priority with SetPriority.
type Base struct {
	priority atomic.Int64
}

func (b *Base) Priority() int     { return int(b.priority.Load()) }
func (b *Base) SetPriority(p int) { b.priority.Store(int64(p)) }

func (*Base) CanCache(*Asset) bool                  { return false }
func (*Base) CanCreate(reflect.Type) bool           { return false }
func (*Base) CanRemove(context.Context, string) bool { return false }

func (*Base) Cache(context.Context, string, *Asset) error  { return ErrNotSupported }
func (*Base) Update(context.Context, string, *Asset) error { return ErrNotSupported }
func (*Base) Remove(context.Context, string) error         { return ErrNotSupported }
func (*Base) Create(context.Context, *Asset) (string, error) {
	return "", ErrNotSupported
}

func describe(b Backend) string {
	if s, ok := b.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", b)
}
