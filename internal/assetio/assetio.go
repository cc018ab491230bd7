// Package assetio converts between typed assets and stored bytes for the
// backends that persist payloads through a codec.
package assetio

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/codec"
	"github.com/unkn0wn-root/assetcache/internal/wire"
)

var ErrPayloadType = errors.New("assetcache: payload type not handled by codec")

// Accepts reports whether a is a well-formed asset with a V payload.
func Accepts[V any](a *assetcache.Asset) bool {
	if a == nil || a.Corrupt() {
		return false
	}
	_, ok := assetcache.PayloadAs[V](a)
	return ok
}

// Encode returns the codec bytes of a's payload.
func Encode[V any](c codec.Codec[V], a *assetcache.Asset) ([]byte, error) {
	v, ok := assetcache.PayloadAs[V](a)
	if !ok || a.Corrupt() {
		return nil, fmt.Errorf("%w: %s", ErrPayloadType, a.Type())
	}
	return c.Encode(v)
}

// Decode builds an asset from codec bytes. Undecodable bytes yield a corrupt
// asset and the decode error.
func Decode[V any](c codec.Codec[V], b []byte, format string) (*assetcache.Asset, error) {
	v, err := c.Decode(b)
	if err != nil {
		return assetcache.Corrupted(format), err
	}
	return assetcache.NewAsset(v, format), nil
}

// EncodeFrame encodes a and frames it with gen and its format hint.
func EncodeFrame[V any](c codec.Codec[V], gen uint64, a *assetcache.Asset) ([]byte, error) {
	b, err := Encode(c, a)
	if err != nil {
		return nil, err
	}
	return wire.Encode(wire.Entry{Gen: gen, Format: a.Format(), Payload: b})
}

// DecodeFrame is the inverse of EncodeFrame. A broken frame or payload yields
// a corrupt asset together with the error.
func DecodeFrame[V any](c codec.Codec[V], b []byte) (uint64, *assetcache.Asset, error) {
	e, err := wire.Decode(b)
	if err != nil {
		return 0, assetcache.Corrupted(""), err
	}
	a, err := Decode(c, e.Payload, e.Format)
	return e.Gen, a, err
}
