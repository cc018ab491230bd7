package codec

import (
	"errors"
	"unicode/utf8"
)

// Bytes is the identity codec for opaque payloads (images, audio, archives)
// that are already in their on-disk form.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }

// Decode copies b; backends may hand in a slice of a mapped or reused buffer.
func (Bytes) Decode(b []byte) ([]byte, error) { return append([]byte(nil), b...), nil }

// ErrInvalidText is returned by String.Decode for bytes that are not UTF-8.
var ErrInvalidText = errors.New("codec: text asset is not valid UTF-8")

// String stores text assets (shaders, scripts, localisation tables) as
// UTF-8. Invalid input decodes to ErrInvalidText so the asset reads as corrupt.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }

func (String) Decode(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", ErrInvalidText
	}
	return string(b), nil
}
