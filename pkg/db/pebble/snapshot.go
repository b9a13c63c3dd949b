package pebble

import (
	"errors"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/matter-labs/matterdb/pkg/db"
)

// Snapshot is a point-in-time read view of a KVStore.
type Snapshot struct {
	snap   *pebble.Snapshot
	closed atomic.Bool
}

func (p *KVStore) NewSnapshot() (db.Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}
	return &Snapshot{snap: p.db.NewSnapshot()}, nil
}

func (s *Snapshot) Get(key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return get(s.snap, key)
}

func (s *Snapshot) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Snapshot) NewIterator(start, end []byte) (db.Iterator, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return newIterator(s.snap, start, end)
}

// Close releases the snapshot. Iterators created from it must be closed first.
func (s *Snapshot) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.snap.Close()
}
