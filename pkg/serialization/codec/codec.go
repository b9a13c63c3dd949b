package codec

// Codec converts values of type T to bytes and back. Decode must accept every
// output of Encode and return an equal value.
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(data []byte) (T, error)
}

// Key is a Codec usable for collection keys: the encoding is injective and
// byte-lexicographic order of encoded keys equals the logical order of keys.
type Key[K any] interface {
	Codec[K]
	OrderPreserving()
}
