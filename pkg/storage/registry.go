package storage

import (
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/matter-labs/matterdb/pkg/db"
)

type cachedIndex struct {
	meta IndexMetadata
	// gen is the merge generation that registered the index.
	gen uint64
}

// registryCache mirrors the committed registry. Entries carry the
// generation they were committed at, so a snapshot only trusts entries that
// are not newer than itself and falls back to the store otherwise.
type registryCache struct {
	entries *xsync.MapOf[string, cachedIndex]
}

func newRegistryCache() *registryCache {
	return &registryCache{entries: xsync.NewMapOf[string, cachedIndex]()}
}

func (c *registryCache) load(name string, gen uint64) (IndexMetadata, bool) {
	e, ok := c.entries.Load(name)
	if !ok || e.gen > gen {
		return IndexMetadata{}, false
	}
	return e.meta, true
}

func (c *registryCache) size() int {
	return c.entries.Size()
}

// apply records the registry changes of a merge committed as generation gen.
func (c *registryCache) apply(changes *viewChanges, gen uint64) {
	changes.data.Ascend(func(ch change) bool {
		if ch.deleted {
			c.entries.Delete(string(ch.key))
			return true
		}
		if meta, err := decodeIndexMetadata(ch.value); err == nil {
			c.entries.Store(string(ch.key), cachedIndex{meta: meta, gen: gen})
		}
		return true
	})
}

// rebuild replaces the cache with the registry stored in r.
func (c *registryCache) rebuild(r db.Reader, gen uint64) error {
	it, err := r.NewIterator(indexPrefix(registryID), indexPrefix(registryID+1))
	if err != nil {
		return fmt.Errorf("scan registry: %w", err)
	}
	defer it.Close() //nolint:errcheck

	c.entries.Clear()
	for it.Next() {
		value, err := it.Value()
		if err != nil {
			return fmt.Errorf("scan registry: %w", err)
		}
		name := it.Key()[8:]
		meta, err := decodeIndexMetadata(value)
		if err != nil {
			return errors.Join(fmt.Errorf("registry entry %q", name), err)
		}
		c.entries.Store(string(name), cachedIndex{meta: meta, gen: gen})
	}
	return nil
}
