package pebble

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/matter-labs/matterdb/pkg/db"
	"github.com/matter-labs/matterdb/pkg/log"
)

// KVStore is a db.KVStore backed by pebble.
type KVStore struct {
	db       *pebble.DB
	readOnly bool
	closed   bool
	mu       sync.RWMutex
}

// NewKVStore opens a pebble store. The store is kept in memory unless WithPath is given.
func NewKVStore(opts ...Option) (*KVStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	cache := pebble.NewCache(o.cacheSize)
	defer cache.Unref()

	logger := log.Storage
	if o.logger != nil {
		logger = *o.logger
	}
	pebbleOpts := &pebble.Options{
		Cache:        cache,
		MemTableSize: o.memTableSize,
		ReadOnly:     o.readOnly,
		Logger:       newEngineLogger(logger),
	}
	if o.path == "" {
		pebbleOpts.FS = vfs.NewMem()
	}

	pdb, err := pebble.Open(o.path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %q: %w", o.path, err)
	}

	return &KVStore{db: pdb, readOnly: o.readOnly}, nil
}

func (p *KVStore) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}
	return get(p.db, key)
}

func (p *KVStore) Has(key []byte) (bool, error) {
	_, err := p.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *KVStore) Put(key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.readOnly {
		return ErrReadOnly
	}
	return p.db.Set(key, value, pebble.Sync)
}

func (p *KVStore) Delete(key []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.readOnly {
		return ErrReadOnly
	}
	return p.db.Delete(key, pebble.Sync)
}

func (p *KVStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

// pebbleReader is implemented by both *pebble.DB and *pebble.Snapshot.
type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

func get(r pebbleReader, key []byte) ([]byte, error) {
	value, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close() //nolint:errcheck

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

var _ db.KVStore = (*KVStore)(nil)
