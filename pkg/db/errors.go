package db

import "errors"

// ErrNotFound is returned by Reader.Get for absent keys.
var ErrNotFound = errors.New("kv-store: key not found")
