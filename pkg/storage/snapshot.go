package storage

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/matter-labs/matterdb/pkg/db"
)

// storeSnapshot is the bottom layer: a store snapshot taken at merge
// generation gen. Registry lookups hit the cache first.
type storeSnapshot struct {
	snap   db.Snapshot
	gen    uint64
	cache  *registryCache
	closed atomic.Bool
}

func (s *storeSnapshot) get(id uint64, key []byte) ([]byte, bool) {
	if id == registryID && s.cache != nil {
		if meta, ok := s.cache.load(string(key), s.gen); ok {
			return meta.encode(), true
		}
	}
	value, err := s.snap.Get(physicalKey(id, key))
	if errors.Is(err, db.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		panic(fmt.Errorf("storage: read index %d key %x: %w", id, key, err))
	}
	return value, true
}

func (s *storeSnapshot) iter(id uint64, from []byte) bytesIter {
	return newStoreIter(s.snap, id, from)
}

func (s *storeSnapshot) close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.snap.Close()
}

// Snapshot is read-only access to the database as of its creation.
type Snapshot struct {
	raw *storeSnapshot
}

func (s *Snapshot) snapshot() rawSnapshot            { return s.raw }
func (s *Snapshot) changes(uint64) *viewChanges    { return nil }
func (s *Snapshot) changesMut(uint64) *viewChanges { return nil }
func (s *Snapshot) writable() bool                 { return false }

func (s *Snapshot) resolve(addr IndexAddress, typ IndexType) (ResolvedAddress, bool, error) {
	return resolveIndex(s, addr, typ)
}

func (s *Snapshot) indexes(prefix string) []IndexInfo {
	return listIndexes(s, prefix)
}

// Close releases the underlying store snapshot. Views and iterators opened
// from it must not be used afterwards.
func (s *Snapshot) Close() error {
	return s.raw.close()
}
