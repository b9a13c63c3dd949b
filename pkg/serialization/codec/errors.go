package codec

import "errors"

var (
	ErrInvalidLength = errors.New("codec: invalid encoded length")
	ErrTrailingBytes = errors.New("codec: unexpected bytes for unit value")
)

const (
	ErrLengthMismatch = "%w: want %d bytes, got %d"
)
