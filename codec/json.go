package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// JSON stores payloads as JSON documents. The zero value writes compact
// output and accepts unknown fields.
//
// Indent is useful for file origins that people edit by hand. Strict turns
// unknown fields into decode errors, which the backends report as corrupt
// assets.
type JSON[V any] struct {
	Indent string
	Strict bool
}

var _ Codec[struct{}] = JSON[struct{}]{}

func (c JSON[V]) Encode(v V) ([]byte, error) {
	if c.Indent != "" {
		return json.MarshalIndent(v, "", c.Indent)
	}
	return json.Marshal(v)
}

func (c JSON[V]) Decode(b []byte) (V, error) {
	var v V
	dec := json.NewDecoder(bytes.NewReader(b))
	if c.Strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return v, errors.New("codec: trailing data after JSON document")
	}
	return v, nil
}
