package codec

import "fmt"

// TooLargeError reports a payload rejected by Limit.
type TooLargeError struct {
	Size, Max int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("codec: payload of %d bytes exceeds limit of %d", e.Size, e.Max)
}

// Limit guards Inner against oversized payloads from shared stores such as
// Redis or an HTTP origin. MaxDecode and MaxEncode <= 0 mean unlimited.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
	MaxEncode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, &TooLargeError{Size: len(b), Max: c.MaxEncode}
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, &TooLargeError{Size: len(b), Max: c.MaxDecode}
	}
	return c.Inner.Decode(b)
}
