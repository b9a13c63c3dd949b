package pebble

import (
	"errors"

	"github.com/matter-labs/matterdb/pkg/db"
)

var (
	ErrClosed          = errors.New("kv-store: database is closed")
	ErrNotFound        = db.ErrNotFound
	ErrBatchDone       = errors.New("kv-store: batch already committed or closed")
	ErrIteratorInvalid = errors.New("kv-store: iterator is not positioned")
	ErrReadOnly        = errors.New("kv-store: database is opened read-only")
)

const (
	ErrInIteratorCreation = "kv-store: create iterator: %w"
	ErrIteratorValue      = "kv-store: read iterator value: %w"
)
