package codec

import (
	"encoding/json"
	"fmt"
)

// JSONCodec stores values as JSON documents.
type JSONCodec[V any] struct{}

func JSON[V any]() Codec[V] { return JSONCodec[V]{} }

// Encode panics if v cannot be represented as JSON.
func (JSONCodec[V]) Encode(v V) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json encode %T: %w", v, err))
	}
	return data
}

func (JSONCodec[V]) Decode(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}
