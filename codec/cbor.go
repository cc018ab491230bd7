package codec

import "github.com/fxamacker/cbor/v2"

// CBOR stores payloads with fxamacker/cbor and is the default codec of the
// disk and key/value caches. Construct with NewCBOR or MustCBOR.
//
// Decoding rejects duplicate map keys so a damaged cache file surfaces as a
// decode error and the entry is reported corrupt.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR builds the codec. A deterministic codec sorts map keys (RFC 8949
// core encoding) so equal payloads produce equal files.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	enc, dec, err := cborModes(deterministic)
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: enc, dec: dec}, nil
}

// MustCBOR is NewCBOR for package-level vars and tests.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func cborModes(deterministic bool) (cbor.EncMode, cbor.DecMode, error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano
	enc, err := eo.EncMode()
	if err != nil {
		return nil, nil, err
	}
	dec, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		return nil, nil, err
	}
	return enc, dec, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
