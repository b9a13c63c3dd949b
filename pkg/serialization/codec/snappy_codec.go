package codec

import (
	"fmt"

	"github.com/golang/snappy"
)

type snappyCodec[V any] struct {
	inner Codec[V]
}

// Snappy compresses the output of inner with snappy block compression.
func Snappy[V any](inner Codec[V]) Codec[V] {
	return snappyCodec[V]{inner: inner}
}

func (c snappyCodec[V]) Encode(v V) []byte {
	return snappy.Encode(nil, c.inner.Encode(v))
}

func (c snappyCodec[V]) Decode(data []byte) (V, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("snappy decode: %w", err)
	}
	return c.inner.Decode(raw)
}
