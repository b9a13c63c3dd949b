package storage

import (
	"bytes"

	"github.com/google/btree"
)

const (
	changesDegree = 32
	// changesChunk is how many overlay entries a cursor copies out of the
	// tree at a time.
	changesChunk = 64
)

// change is a pending put, or a tombstone when deleted is set.
type change struct {
	key     []byte
	value   []byte
	deleted bool
}

func lessChange(a, b change) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// viewChanges is the in-memory overlay of one index. When cleared is set,
// every key absent from data is deleted relative to the layers below.
type viewChanges struct {
	data    *btree.BTreeG[change]
	cleared bool
}

func newViewChanges() *viewChanges {
	return &viewChanges{data: btree.NewG(changesDegree, lessChange)}
}

// lookup reports the overlay's verdict for key. determined is false when the
// overlay has no opinion and the caller has to ask the layer below; a
// determined nil value means the key is absent.
func (c *viewChanges) lookup(key []byte) (value []byte, determined bool) {
	ch, ok := c.data.Get(change{key: key})
	switch {
	case ok && ch.deleted:
		return nil, true
	case ok:
		return ch.value, true
	case c.cleared:
		return nil, true
	default:
		return nil, false
	}
}

func (c *viewChanges) contains(key []byte) (found, determined bool) {
	value, determined := c.lookup(key)
	return value != nil, determined
}

func (c *viewChanges) put(key, value []byte) {
	c.data.ReplaceOrInsert(change{
		key:   append([]byte{}, key...),
		value: append([]byte{}, value...),
	})
}

func (c *viewChanges) remove(key []byte) {
	c.data.ReplaceOrInsert(change{key: append([]byte{}, key...), deleted: true})
}

func (c *viewChanges) clear() {
	c.cleared = true
	c.data.Clear(false)
}

func (c *viewChanges) isEmpty() bool {
	return !c.cleared && c.data.Len() == 0
}

// absorb folds newer changes into c. A cleared newer overlay replaces c
// entirely; callers handle that case by swapping the pointer.
func (c *viewChanges) absorb(newer *viewChanges) {
	newer.data.Ascend(func(ch change) bool {
		c.data.ReplaceOrInsert(ch)
		return true
	})
}

// cursor returns the overlay entries with key >= from, tombstones included.
func (c *viewChanges) cursor(from []byte) *changesCursor {
	return &changesCursor{tree: c.data, next: append([]byte{}, from...)}
}

// changesCursor walks a tree in chunks so that the tree may be modified
// between calls. Entries inserted behind the cursor are not observed.
type changesCursor struct {
	tree *btree.BTreeG[change]
	next []byte
	buf  []change
	pos  int
	done bool
}

func (c *changesCursor) peek() (change, bool) {
	if c.pos < len(c.buf) {
		return c.buf[c.pos], true
	}
	if c.done {
		return change{}, false
	}
	c.fill()
	if c.pos < len(c.buf) {
		return c.buf[c.pos], true
	}
	return change{}, false
}

func (c *changesCursor) advance() (change, bool) {
	ch, ok := c.peek()
	if ok {
		c.pos++
	}
	return ch, ok
}

func (c *changesCursor) fill() {
	c.buf = c.buf[:0]
	c.pos = 0
	c.tree.AscendGreaterOrEqual(change{key: c.next}, func(ch change) bool {
		c.buf = append(c.buf, ch)
		return len(c.buf) < changesChunk
	})
	if len(c.buf) < changesChunk {
		c.done = true
	}
	if n := len(c.buf); n > 0 {
		// the smallest key strictly greater than the last one seen
		last := c.buf[n-1].key
		c.next = append(append(make([]byte, 0, len(last)+1), last...), 0)
	}
}
