// Package codec turns asset payloads into stored bytes and back.
package codec

import (
	"fmt"
	"strings"
)

// Codec encodes/decodes payloads of type V.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names accepted by ByName.
const (
	NameJSON    = "json"
	NameCBOR    = "cbor"
	NameMsgpack = "msgpack"
)

// ByName returns the structured codec registered under name. Byte and
// string payloads use Bytes and String directly.
func ByName[V any](name string) (Codec[V], error) {
	switch strings.ToLower(name) {
	case NameJSON:
		return JSON[V]{}, nil
	case NameCBOR, "":
		c, err := NewCBOR[V](true)
		if err != nil {
			return nil, err
		}
		return c, nil
	case NameMsgpack:
		return Msgpack[V]{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
