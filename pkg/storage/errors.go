package storage

import (
	"errors"
	"fmt"
)

var (
	ErrTypeMismatch  = errors.New("storage: index type mismatch")
	ErrIndexNotFound = errors.New("storage: index not found")
	ErrInvalidName   = errors.New("storage: invalid index name")
	ErrReadOnly      = errors.New("storage: attempt to modify a read-only view")
	ErrForkConsumed  = errors.New("storage: fork was converted into a patch")
	ErrPatchMerged   = errors.New("storage: patch was already merged")
	ErrIDConflict    = errors.New("storage: another fork allocated index ids since this fork was created")
)

// AccessError is returned when an index address cannot be resolved.
type AccessError struct {
	Addr IndexAddress
	// Want and Got are set for type mismatches.
	Want, Got IndexType
	Err       error
}

func (e *AccessError) Error() string {
	if errors.Is(e.Err, ErrTypeMismatch) {
		return fmt.Sprintf("%v: %q is %s, requested %s", e.Err, e.Addr, e.Got, e.Want)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Addr)
}

func (e *AccessError) Unwrap() error { return e.Err }

// DecodeError reports bytes that do not decode as the expected key or value
// type. It indicates store corruption or a codec mismatch, so views panic
// with it instead of returning it.
type DecodeError struct {
	Key []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("storage: decode value at key %x: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func readOnlyPanic(op string) {
	panic(fmt.Errorf("%s: %w", op, ErrReadOnly))
}

var errBadSequence = errors.New("index id sequence is not 8 bytes")
