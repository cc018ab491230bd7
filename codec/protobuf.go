package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

// Protobuf stores proto.Message payloads in binary wire format. Encoding is
// deterministic so cached copies of one message are byte-identical.
type Protobuf[T proto.Message] struct {
	ctor func() T
	// MaxDepth bounds message nesting on decode; 0 keeps the library default.
	MaxDepth int
}

// NewProtobuf returns a codec that decodes into messages built by ctor.
func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{ctor: ctor}
}

func (c Protobuf[T]) Encode(m T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(m)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	if c.ctor == nil {
		var zero T
		return zero, errors.New("codec: protobuf codec has no message constructor")
	}
	m := c.ctor()
	err := proto.UnmarshalOptions{RecursionLimit: c.MaxDepth}.Unmarshal(b, m)
	return m, err
}
