package migration

import (
	"fmt"

	"github.com/matter-labs/matterdb/pkg/storage"
)

// position is the stored state of a persistent iterator: the encoded key to
// resume from (inclusive), or ended.
type position struct {
	ended bool
	next  []byte
}

const (
	tagNextKey byte = 0
	tagEnded   byte = 1
)

type positionCodec struct{}

func (positionCodec) Encode(p position) []byte {
	if p.ended {
		return []byte{tagEnded}
	}
	return append([]byte{tagNextKey}, p.next...)
}

func (positionCodec) Decode(data []byte) (position, error) {
	if len(data) == 0 {
		return position{}, fmt.Errorf("iterator position: empty")
	}
	switch data[0] {
	case tagNextKey:
		return position{next: append([]byte{}, data[1:]...)}, nil
	case tagEnded:
		if len(data) != 1 {
			return position{}, fmt.Errorf("iterator position: trailing bytes after end marker")
		}
		return position{ended: true}, nil
	default:
		return position{}, fmt.Errorf("iterator position: unknown tag %d", data[0])
	}
}

// PersistentIter iterates a collection and stores its position in a
// scratchpad after every item, so a new PersistentIter with the same name
// continues where the previous one stopped, possibly in a later fork. The
// position entry is created by the first advance; opening an iterator alone
// leaves the scratchpad untouched.
//
// The position is the key following the last yielded item. Inserting keys
// smaller than that position while the iteration is in progress is not
// supported: such keys are never yielded.
type PersistentIter[K, V any] struct {
	name  string
	index storage.IndexIterator[K, V]
	sp    *Scratchpad
	pos   *storage.Entry[position] // nil until the position is first written
	iter  *storage.Iter[K, V]
	ended bool
}

// NewPersistentIter opens the iterator called name over index. Positions are
// kept per name, so iterators with different names are independent.
func NewPersistentIter[K, V any](sp *Scratchpad, name string, index storage.IndexIterator[K, V]) (*PersistentIter[K, V], error) {
	stored, err := storage.GetEntry[position](sp.readonly, storage.FromRoot(name), positionCodec{})
	if err != nil {
		return nil, fmt.Errorf("persistent iterator %q: %w", name, err)
	}

	it := &PersistentIter[K, V]{name: name, index: index, sp: sp}
	pos, ok := stored.Get()
	switch {
	case !ok:
		it.iter = index.IndexIter(nil)
	case pos.ended:
		it.ended = true
	default:
		from, err := index.KeyCodec().Decode(pos.next)
		if err != nil {
			return nil, fmt.Errorf("persistent iterator %q: %w", name, &storage.DecodeError{Key: pos.next, Err: err})
		}
		it.iter = index.IndexIter(&from)
	}
	return it, nil
}

func (it *PersistentIter[K, V]) Name() string { return it.name }

// Next yields the next item and records the position after it.
func (it *PersistentIter[K, V]) Next() (storage.Item[K, V], bool) {
	if it.ended {
		return storage.Item[K, V]{}, false
	}
	item, ok := it.iter.Next()
	if !ok {
		it.finish()
		return item, false
	}
	if next, ok := it.iter.Peek(); ok {
		it.save(position{next: it.index.KeyCodec().Encode(next.Key)})
	} else {
		it.finish()
	}
	return item, true
}

func (it *PersistentIter[K, V]) finish() {
	it.save(position{ended: true})
	it.ended = true
	it.iter.Close()
}

func (it *PersistentIter[K, V]) save(p position) {
	if it.pos == nil {
		pos, err := storage.GetEntry[position](it.sp, storage.FromRoot(it.name), positionCodec{})
		if err != nil {
			// the name was free or an entry when the iterator was opened
			panic(fmt.Errorf("persistent iterator %q: %w", it.name, err))
		}
		it.pos = pos
	}
	it.pos.Set(p)
}

// Advance yields up to n items.
func (it *PersistentIter[K, V]) Advance(n int) []storage.Item[K, V] {
	var items []storage.Item[K, V]
	for len(items) < n {
		item, ok := it.Next()
		if !ok {
			break
		}
		items = append(items, item)
	}
	return items
}

// Ended reports whether the iteration is complete.
func (it *PersistentIter[K, V]) Ended() bool { return it.ended }

// Close releases the underlying iterator. The stored position is kept.
func (it *PersistentIter[K, V]) Close() {
	if it.iter != nil {
		it.iter.Close()
	}
}

// PersistentKeys is a PersistentIter over a key set yielding keys only.
type PersistentKeys[K any] struct {
	inner *PersistentIter[K, struct{}]
}

func NewPersistentKeys[K any](sp *Scratchpad, name string, set storage.IndexIterator[K, struct{}]) (*PersistentKeys[K], error) {
	inner, err := NewPersistentIter(sp, name, set)
	if err != nil {
		return nil, err
	}
	return &PersistentKeys[K]{inner: inner}, nil
}

func (k *PersistentKeys[K]) Next() (K, bool) {
	item, ok := k.inner.Next()
	return item.Key, ok
}

func (k *PersistentKeys[K]) Advance(n int) []K {
	items := k.inner.Advance(n)
	keys := make([]K, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	return keys
}

func (k *PersistentKeys[K]) Ended() bool { return k.inner.Ended() }

func (k *PersistentKeys[K]) Close() { k.inner.Close() }
