package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

type uint64Codec struct{}

// Uint64 encodes as 8 bytes big-endian.
func Uint64() Key[uint64] { return uint64Codec{} }

func (uint64Codec) OrderPreserving() {}

func (uint64Codec) Encode(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func (uint64Codec) Decode(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf(ErrLengthMismatch, ErrInvalidLength, 8, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

type uint32Codec struct{}

// Uint32 encodes as 4 bytes big-endian.
func Uint32() Key[uint32] { return uint32Codec{} }

func (uint32Codec) OrderPreserving() {}

func (uint32Codec) Encode(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func (uint32Codec) Decode(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf(ErrLengthMismatch, ErrInvalidLength, 4, len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}

type uint8Codec struct{}

// Uint8 encodes as a single byte.
func Uint8() Key[uint8] { return uint8Codec{} }

func (uint8Codec) OrderPreserving() {}

func (uint8Codec) Encode(v uint8) []byte { return []byte{v} }

func (uint8Codec) Decode(data []byte) (uint8, error) {
	if len(data) != 1 {
		return 0, fmt.Errorf(ErrLengthMismatch, ErrInvalidLength, 1, len(data))
	}
	return data[0], nil
}

type int64Codec struct{}

// Int64 encodes as 8 bytes big-endian with the sign bit flipped, so negative
// numbers sort before positive ones.
func Int64() Key[int64] { return int64Codec{} }

func (int64Codec) OrderPreserving() {}

func (int64Codec) Encode(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v)^(1<<63))
}

func (int64Codec) Decode(data []byte) (int64, error) {
	u, err := uint64Codec{}.Decode(data)
	if err != nil {
		return 0, err
	}
	return int64(u ^ (1 << 63)), nil
}

type stringCodec struct{}

// String stores the raw UTF-8 bytes.
func String() Key[string] { return stringCodec{} }

func (stringCodec) OrderPreserving() {}

func (stringCodec) Encode(v string) []byte { return []byte(v) }

func (stringCodec) Decode(data []byte) (string, error) { return string(data), nil }

type bytesCodec struct{}

// Bytes stores the slice as is.
func Bytes() Key[[]byte] { return bytesCodec{} }

func (bytesCodec) OrderPreserving() {}

func (bytesCodec) Encode(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (bytesCodec) Decode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

type unitCodec struct{}

// Unit encodes struct{} as no bytes at all. Entries and key sets use it.
func Unit() Key[struct{}] { return unitCodec{} }

func (unitCodec) OrderPreserving() {}

func (unitCodec) Encode(struct{}) []byte { return []byte{} }

func (unitCodec) Decode(data []byte) (struct{}, error) {
	if len(data) != 0 {
		return struct{}{}, ErrTrailingBytes
	}
	return struct{}{}, nil
}

type float64Codec struct{}

// Float64 is a value codec storing IEEE-754 bits big-endian. It does not
// preserve order and is not a Key.
func Float64() Codec[float64] { return float64Codec{} }

func (float64Codec) Encode(v float64) []byte {
	return binary.BigEndian.AppendUint64(nil, math.Float64bits(v))
}

func (float64Codec) Decode(data []byte) (float64, error) {
	u, err := uint64Codec{}.Decode(data)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}
