package db

// Reader provides point lookups and ordered range iteration.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	NewIterator(start, end []byte) (Iterator, error)
}

// KVStore represents a key-value storage interface providing basic operations
// for data manipulation, iteration and point-in-time snapshots.
type KVStore interface {
	Reader
	Writer
	Delete(key []byte) error
	NewBatch() Batch
	NewSnapshot() (Snapshot, error)
	Close() error
}

type Writer interface {
	Put(key []byte, value []byte) error
}

// Snapshot is an immutable point-in-time view of a KVStore. Writes committed
// after the snapshot was taken are never observed through it.
// Snapshots must be closed after use.
type Snapshot interface {
	Reader
	Close() error
}

// Batch represents an atomic batch of operations.
// All operations in a batch are performed atomically.
type Batch interface {
	Writer
	Delete(key []byte) error
	// DeleteRange removes every key in [start, end).
	DeleteRange(start, end []byte) error
	Count() uint32
	Commit() error
	Close() error
}

// Iterator provides sequential access over a range of key-value pairs.
// Iterators must be closed after use.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Valid() bool
	Close() error
}
