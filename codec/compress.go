package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Names accepted by Compressed.
const (
	CompressNone = "none"
	CompressLZ4  = "lz4"
	CompressZstd = "zstd"
)

// LZ4 compresses the output of Inner with LZ4 frames. It favours speed and
// suits the disk cache, where assets are read back often.
type LZ4[V any] struct {
	Inner Codec[V]
}

func (c LZ4[V]) Encode(v V) ([]byte, error) {
	raw, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c LZ4[V]) Decode(b []byte) (V, error) {
	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(b)))
	if err != nil {
		var zero V
		return zero, fmt.Errorf("codec: lz4: %w", err)
	}
	return c.Inner.Decode(raw)
}

// Zstd compresses the output of Inner with zstandard. It trades CPU for
// smaller frames, which pays off on remote caches.
type Zstd[V any] struct {
	Inner Codec[V]
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// NewZstd builds a Zstd codec. maxDecoded bounds the decompressed size of a
// single payload; 0 keeps the library default.
func NewZstd[V any](inner Codec[V], maxDecoded uint64) (*Zstd[V], error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(0)}
	if maxDecoded > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(maxDecoded))
	}
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, err
	}
	return &Zstd[V]{Inner: inner, enc: enc, dec: dec}, nil
}

func (c *Zstd[V]) Encode(v V) ([]byte, error) {
	raw, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *Zstd[V]) Decode(b []byte) (V, error) {
	raw, err := c.dec.DecodeAll(b, nil)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("codec: zstd: %w", err)
	}
	return c.Inner.Decode(raw)
}

// Compressed wraps inner with the compression scheme called name.
func Compressed[V any](name string, inner Codec[V]) (Codec[V], error) {
	switch name {
	case "", CompressNone:
		return inner, nil
	case CompressLZ4:
		return LZ4[V]{Inner: inner}, nil
	case CompressZstd:
		z, err := NewZstd(inner, 0)
		if err != nil {
			return nil, err
		}
		return z, nil
	default:
		return nil, fmt.Errorf("codec: unknown compression %q", name)
	}
}
