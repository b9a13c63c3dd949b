package storage

import (
	"bytes"
	"fmt"
	"iter"

	"github.com/matter-labs/matterdb/pkg/db"
	"github.com/matter-labs/matterdb/pkg/serialization/codec"
)

// kv is a raw key-value pair with the index id already stripped from the key.
type kv struct {
	key   []byte
	value []byte
}

// bytesIter is an ordered iterator over one index keyspace.
type bytesIter interface {
	next() (kv, bool)
	peek() (kv, bool)
	close()
}

type emptyIter struct{}

func (emptyIter) next() (kv, bool) { return kv{}, false }
func (emptyIter) peek() (kv, bool) { return kv{}, false }
func (emptyIter) close()           {}

// storeIter adapts a db.Iterator bounded to one index.
type storeIter struct {
	it      db.Iterator
	head    kv
	hasHead bool
	done    bool
}

func newStoreIter(r db.Reader, id uint64, from []byte) *storeIter {
	it, err := r.NewIterator(physicalKey(id, from), indexPrefix(id+1))
	if err != nil {
		panic(fmt.Errorf("storage: iterate index %d: %w", id, err))
	}
	return &storeIter{it: it}
}

func (s *storeIter) peek() (kv, bool) {
	if s.hasHead {
		return s.head, true
	}
	if s.done {
		return kv{}, false
	}
	if !s.it.Next() {
		s.close()
		return kv{}, false
	}
	value, err := s.it.Value()
	if err != nil {
		panic(fmt.Errorf("storage: read iterator value: %w", err))
	}
	s.head = kv{key: s.it.Key()[8:], value: value}
	s.hasHead = true
	return s.head, true
}

func (s *storeIter) next() (kv, bool) {
	item, ok := s.peek()
	s.hasHead = false
	return item, ok
}

func (s *storeIter) close() {
	if s.done {
		return
	}
	s.done = true
	s.hasHead = false
	_ = s.it.Close()
}

// changesIter yields the puts of a cleared overlay. Tombstones are consumed
// on peek, so callers never see them.
type changesIter struct {
	cur *changesCursor
}

func (c *changesIter) peek() (kv, bool) {
	for {
		ch, ok := c.cur.peek()
		if !ok {
			return kv{}, false
		}
		if !ch.deleted {
			return kv{key: ch.key, value: ch.value}, true
		}
		c.cur.advance()
	}
}

func (c *changesIter) next() (kv, bool) {
	item, ok := c.peek()
	if ok {
		c.cur.advance()
	}
	return item, ok
}

func (c *changesIter) close() {}

// forkIter merges a lower layer with an overlay. On equal keys the overlay
// wins; overlay tombstones hide the lower entry.
type forkIter struct {
	lower   bytesIter
	changes *changesCursor
	head    kv
	hasHead bool
	done    bool
}

func (f *forkIter) peek() (kv, bool) {
	if f.hasHead {
		return f.head, true
	}
	if f.done {
		return kv{}, false
	}
	item, ok := f.pull()
	if !ok {
		f.close()
		return kv{}, false
	}
	f.head, f.hasHead = item, true
	return item, true
}

func (f *forkIter) next() (kv, bool) {
	item, ok := f.peek()
	f.hasHead = false
	return item, ok
}

func (f *forkIter) pull() (kv, bool) {
	for {
		low, lowOK := f.lower.peek()
		ch, chOK := f.changes.peek()
		switch {
		case !lowOK && !chOK:
			return kv{}, false
		case !chOK:
			return f.lower.next()
		case !lowOK:
			f.changes.advance()
			if !ch.deleted {
				return kv{key: ch.key, value: ch.value}, true
			}
		default:
			switch cmp := bytes.Compare(low.key, ch.key); {
			case cmp < 0:
				return f.lower.next()
			case cmp == 0:
				f.lower.next()
				fallthrough
			default:
				f.changes.advance()
				if !ch.deleted {
					return kv{key: ch.key, value: ch.value}, true
				}
			}
		}
	}
}

func (f *forkIter) close() {
	if f.done {
		return
	}
	f.done = true
	f.hasHead = false
	f.lower.close()
}

// layeredIter stacks the overlay ch (possibly nil) over the iterator of the
// layer below.
func layeredIter(ch *viewChanges, below func(from []byte) bytesIter, from []byte) bytesIter {
	switch {
	case ch == nil:
		return below(from)
	case ch.cleared:
		return &changesIter{cur: ch.cursor(from)}
	default:
		return &forkIter{lower: below(from), changes: ch.cursor(from)}
	}
}

// RawIter iterates raw entries of a view that start with a prefix.
type RawIter struct {
	base   bytesIter
	prefix []byte
	ended  bool
}

func newRawIter(base bytesIter, prefix []byte) *RawIter {
	return &RawIter{base: base, prefix: prefix}
}

// Next returns the next entry. Once it reports false the iterator is closed.
func (it *RawIter) Next() (key, value []byte, ok bool) {
	item, ok := it.peek()
	if !ok {
		return nil, nil, false
	}
	it.base.next()
	return item.key, item.value, true
}

// Peek returns the next entry without consuming it.
func (it *RawIter) Peek() (key, value []byte, ok bool) {
	item, ok := it.peek()
	return item.key, item.value, ok
}

func (it *RawIter) peek() (kv, bool) {
	if it.ended {
		return kv{}, false
	}
	item, ok := it.base.peek()
	if !ok || !bytes.HasPrefix(item.key, it.prefix) {
		it.Close()
		return kv{}, false
	}
	return item, true
}

func (it *RawIter) Close() {
	if it.ended {
		return
	}
	it.ended = true
	it.base.close()
}

// Item is a decoded key-value pair.
type Item[K, V any] struct {
	Key   K
	Value V
}

// Iter decodes the entries of a RawIter. Iterators release their resources
// once exhausted; call Close when abandoning one early.
type Iter[K, V any] struct {
	raw  *RawIter
	keys codec.Codec[K]
	vals codec.Codec[V]
}

func newIter[K, V any](raw *RawIter, keys codec.Codec[K], vals codec.Codec[V]) *Iter[K, V] {
	return &Iter[K, V]{raw: raw, keys: keys, vals: vals}
}

func (it *Iter[K, V]) Next() (Item[K, V], bool) {
	item, ok := it.Peek()
	if ok {
		it.raw.base.next()
	}
	return item, ok
}

// Peek decodes the next entry without consuming it.
func (it *Iter[K, V]) Peek() (Item[K, V], bool) {
	raw, ok := it.raw.peek()
	if !ok {
		return Item[K, V]{}, false
	}
	return Item[K, V]{
		Key:   decode(it.keys, raw.key, raw.key),
		Value: decode(it.vals, raw.key, raw.value),
	}, true
}

func (it *Iter[K, V]) Close() { it.raw.Close() }

// All ranges over the remaining entries and closes the iterator afterwards.
func (it *Iter[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		defer it.Close()
		for {
			item, ok := it.Next()
			if !ok || !yield(item.Key, item.Value) {
				return
			}
		}
	}
}

// Collect drains the iterator.
func (it *Iter[K, V]) Collect() []Item[K, V] {
	var items []Item[K, V]
	for {
		item, ok := it.Next()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

func decode[T any](c codec.Codec[T], key, data []byte) T {
	v, err := c.Decode(data)
	if err != nil {
		panic(&DecodeError{Key: key, Err: err})
	}
	return v
}
