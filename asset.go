package assetcache

import (
	"bytes"
	"fmt"
	"reflect"
)

// DefaultFormat is used when an asset is built without a format hint.
const DefaultFormat = "bin"

// Asset is an immutable payload plus a storage-format hint. The hint is only
// consulted by writers and never takes part in equality.
type Asset struct {
	payload any
	format  string
}

// NewAsset wraps payload. An empty format falls back to DefaultFormat.
func NewAsset(payload any, format string) *Asset {
	return &Asset{payload: payload, format: coalesce(format, DefaultFormat)}
}

// CheckFormat reports whether format is safe to use as a file extension:
// 1 to 255 bytes of [A-Za-z0-9._-], starting with a letter or digit and never
// containing "..". Backends that name files after the hint call it before
// writing.
func CheckFormat(format string) error {
	if format == "" || len(format) > 255 {
		return fmt.Errorf("%w: length %d", ErrInvalidFormat, len(format))
	}
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case i > 0 && (c == '.' || c == '_' || c == '-'):
			if c == '.' && format[i-1] == '.' {
				return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
			}
		default:
			return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
		}
	}
	return nil
}

// Corrupted builds the "found but not decodable" sentinel.
func Corrupted(format string) *Asset { return NewAsset(nil, format) }

func (a *Asset) Payload() any { return a.payload }

func (a *Asset) Format() string { return a.format }

// Type is the dynamic type of the payload, nil for a corrupt asset.
func (a *Asset) Type() reflect.Type {
	if a == nil || a.payload == nil {
		return nil
	}
	return reflect.TypeOf(a.payload)
}

// Corrupt reports whether the asset was found but could not be decoded.
func (a *Asset) Corrupt() bool { return a != nil && a.payload == nil }

// Equal compares payloads only.
func (a *Asset) Equal(o *Asset) bool {
	if a == nil || o == nil {
		return a == o
	}
	return payloadEqual(a.payload, o.payload)
}

func payloadEqual(x, y any) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	if bx, ok := x.([]byte); ok {
		by, ok := y.([]byte)
		return ok && bytes.Equal(bx, by)
	}
	if reflect.TypeOf(x) != reflect.TypeOf(y) {
		return false
	}
	if reflect.ValueOf(x).Comparable() {
		return x == y
	}
	return reflect.DeepEqual(x, y)
}

// PayloadAs returns the payload as V when it has that type.
func PayloadAs[V any](a *Asset) (V, bool) {
	var zero V
	if a == nil {
		return zero, false
	}
	v, ok := a.payload.(V)
	if !ok {
		return zero, false
	}
	return v, true
}
