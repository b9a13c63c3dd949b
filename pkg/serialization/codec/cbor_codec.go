package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBORCodec stores values in deterministic (core) CBOR. Structs, maps and
// slices of encodable types are supported.
type CBORCodec[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func CBOR[V any]() Codec[V] {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("cbor enc mode: %w", err))
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Errorf("cbor dec mode: %w", err))
	}
	return &CBORCodec[V]{enc: enc, dec: dec}
}

// Encode panics if v cannot be represented in CBOR.
func (c *CBORCodec[V]) Encode(v V) []byte {
	data, err := c.enc.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("cbor encode %T: %w", v, err))
	}
	return data
}

func (c *CBORCodec[V]) Decode(data []byte) (V, error) {
	var v V
	if err := c.dec.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("cbor decode %T: %w", v, err)
	}
	return v, nil
}
