package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/matter-labs/matterdb/pkg/serialization/codec"
)

// IndexIterator is implemented by collections that can be iterated in key
// order from an arbitrary key. Persistent iterators are built on it.
type IndexIterator[K, V any] interface {
	// IndexIter iterates from the first key >= *from, or from the start
	// when from is nil.
	IndexIter(from *K) *Iter[K, V]
	KeyCodec() codec.Key[K]
}

// stateKey holds collection metadata such as list length. Item keys are
// never empty, so it sorts before all of them.
var stateKey = []byte{}

// firstOrdinal is the encoding of ordinal 0, where list iteration starts.
var firstOrdinal = codec.Uint64().Encode(0)

// List is an append-oriented sequence indexed by dense ordinals.
type List[V any] struct {
	view *View
	vals codec.Codec[V]
}

var _ IndexIterator[uint64, struct{}] = (*List[struct{}])(nil)

func GetList[V any](access Access, addr IndexAddress, vals codec.Codec[V]) (*List[V], error) {
	view, err := OpenView(access, addr, IndexTypeList)
	if err != nil {
		return nil, err
	}
	return &List[V]{view: view, vals: vals}, nil
}

func (l *List[V]) Len() uint64 {
	raw, ok := l.view.GetBytes(stateKey)
	if !ok {
		return 0
	}
	return decode(codec.Uint64(), stateKey, raw)
}

func (l *List[V]) setLen(n uint64) {
	l.view.PutBytes(stateKey, codec.Uint64().Encode(n))
}

func (l *List[V]) IsEmpty() bool { return l.Len() == 0 }

func (l *List[V]) Get(i uint64) (V, bool) {
	if i >= l.Len() {
		var zero V
		return zero, false
	}
	return Get(l.view, codec.Uint64(), l.vals, i)
}

func (l *List[V]) Last() (V, bool) {
	n := l.Len()
	if n == 0 {
		var zero V
		return zero, false
	}
	return Get(l.view, codec.Uint64(), l.vals, n-1)
}

func (l *List[V]) Push(v V) {
	n := l.Len()
	Put(l.view, codec.Uint64(), l.vals, n, v)
	l.setLen(n + 1)
}

func (l *List[V]) Extend(vs ...V) {
	n := l.Len()
	for _, v := range vs {
		Put(l.view, codec.Uint64(), l.vals, n, v)
		n++
	}
	l.setLen(n)
}

// Pop removes and returns the last item.
func (l *List[V]) Pop() (V, bool) {
	n := l.Len()
	if n == 0 {
		var zero V
		return zero, false
	}
	v, _ := Get(l.view, codec.Uint64(), l.vals, n-1)
	Remove(l.view, codec.Uint64(), n-1)
	l.setLen(n - 1)
	return v, true
}

// Set replaces item i. It panics if i is out of bounds.
func (l *List[V]) Set(i uint64, v V) {
	if n := l.Len(); i >= n {
		panic(fmt.Sprintf("list index %d out of bounds (len %d)", i, n))
	}
	Put(l.view, codec.Uint64(), l.vals, i, v)
}

// Truncate shortens the list to n items.
func (l *List[V]) Truncate(n uint64) {
	length := l.Len()
	if n >= length {
		return
	}
	for i := n; i < length; i++ {
		Remove(l.view, codec.Uint64(), i)
	}
	l.setLen(n)
}

func (l *List[V]) Clear() { l.view.Clear() }

func (l *List[V]) Iter() *Iter[uint64, V] { return l.IndexIter(nil) }

func (l *List[V]) IterFrom(from uint64) *Iter[uint64, V] { return l.IndexIter(&from) }

func (l *List[V]) IndexIter(from *uint64) *Iter[uint64, V] {
	return ordinalIter(l.view, l.vals, from)
}

func (l *List[V]) KeyCodec() codec.Key[uint64] { return codec.Uint64() }

func ordinalIter[V any](view *View, vals codec.Codec[V], from *uint64) *Iter[uint64, V] {
	start := firstOrdinal
	if from != nil {
		start = codec.Uint64().Encode(*from)
	}
	return newIter(view.IterBytes(nil, start), codec.Codec[uint64](codec.Uint64()), vals)
}

// SparseList is a list whose items may be missing. Capacity is one past the
// highest index ever set; Len counts present items.
type SparseList[V any] struct {
	view *View
	vals codec.Codec[V]
}

var _ IndexIterator[uint64, struct{}] = (*SparseList[struct{}])(nil)

func GetSparseList[V any](access Access, addr IndexAddress, vals codec.Codec[V]) (*SparseList[V], error) {
	view, err := OpenView(access, addr, IndexTypeSparseList)
	if err != nil {
		return nil, err
	}
	return &SparseList[V]{view: view, vals: vals}, nil
}

func (l *SparseList[V]) state() (capacity, length uint64) {
	raw, ok := l.view.GetBytes(stateKey)
	if !ok {
		return 0, 0
	}
	if len(raw) != 16 {
		panic(&DecodeError{Key: stateKey, Err: fmt.Errorf("sparse list state: want 16 bytes, got %d", len(raw))})
	}
	return binary.BigEndian.Uint64(raw), binary.BigEndian.Uint64(raw[8:])
}

func (l *SparseList[V]) setState(capacity, length uint64) {
	raw := binary.BigEndian.AppendUint64(make([]byte, 0, 16), capacity)
	l.view.PutBytes(stateKey, binary.BigEndian.AppendUint64(raw, length))
}

func (l *SparseList[V]) Capacity() uint64 {
	c, _ := l.state()
	return c
}

func (l *SparseList[V]) Len() uint64 {
	_, n := l.state()
	return n
}

func (l *SparseList[V]) IsEmpty() bool { return l.Len() == 0 }

func (l *SparseList[V]) Get(i uint64) (V, bool) {
	return Get(l.view, codec.Uint64(), l.vals, i)
}

func (l *SparseList[V]) Set(i uint64, v V) {
	capacity, length := l.state()
	if !Contains(l.view, codec.Uint64(), i) {
		length++
	}
	Put(l.view, codec.Uint64(), l.vals, i, v)
	l.setState(max(capacity, i+1), length)
}

// Push sets the item at index Capacity.
func (l *SparseList[V]) Push(v V) {
	l.Set(l.Capacity(), v)
}

// Remove deletes item i and returns it. Capacity is unchanged.
func (l *SparseList[V]) Remove(i uint64) (V, bool) {
	v, ok := l.Get(i)
	if !ok {
		return v, false
	}
	capacity, length := l.state()
	Remove(l.view, codec.Uint64(), i)
	l.setState(capacity, length-1)
	return v, true
}

func (l *SparseList[V]) Clear() { l.view.Clear() }

func (l *SparseList[V]) Iter() *Iter[uint64, V] { return l.IndexIter(nil) }

func (l *SparseList[V]) IterFrom(from uint64) *Iter[uint64, V] { return l.IndexIter(&from) }

func (l *SparseList[V]) IndexIter(from *uint64) *Iter[uint64, V] {
	return ordinalIter(l.view, l.vals, from)
}

func (l *SparseList[V]) KeyCodec() codec.Key[uint64] { return codec.Uint64() }

// Map is an ordered key-value collection.
type Map[K, V any] struct {
	view *View
	keys codec.Key[K]
	vals codec.Codec[V]
}

func GetMap[K, V any](access Access, addr IndexAddress, keys codec.Key[K], vals codec.Codec[V]) (*Map[K, V], error) {
	view, err := OpenView(access, addr, IndexTypeMap)
	if err != nil {
		return nil, err
	}
	return &Map[K, V]{view: view, keys: keys, vals: vals}, nil
}

func (m *Map[K, V]) Get(key K) (V, bool) { return Get(m.view, m.keys, m.vals, key) }

func (m *Map[K, V]) MultiGet(keys []K) ([]V, []bool) { return MultiGet(m.view, m.keys, m.vals, keys) }

func (m *Map[K, V]) Contains(key K) bool { return Contains(m.view, m.keys, key) }

func (m *Map[K, V]) Put(key K, value V) { Put(m.view, m.keys, m.vals, key, value) }

func (m *Map[K, V]) Remove(key K) { Remove(m.view, m.keys, key) }

func (m *Map[K, V]) Clear() { m.view.Clear() }

func (m *Map[K, V]) Iter() *Iter[K, V] { return m.IndexIter(nil) }

func (m *Map[K, V]) IterFrom(from K) *Iter[K, V] { return m.IndexIter(&from) }

func (m *Map[K, V]) IndexIter(from *K) *Iter[K, V] {
	if from == nil {
		return IterPrefix(m.view, m.keys, m.vals, nil)
	}
	return IterFrom(m.view, m.keys, m.vals, nil, *from)
}

func (m *Map[K, V]) KeyCodec() codec.Key[K] { return m.keys }

// KeySet is an ordered set of keys.
type KeySet[K any] struct {
	view *View
	keys codec.Key[K]
}

func GetKeySet[K any](access Access, addr IndexAddress, keys codec.Key[K]) (*KeySet[K], error) {
	view, err := OpenView(access, addr, IndexTypeKeySet)
	if err != nil {
		return nil, err
	}
	return &KeySet[K]{view: view, keys: keys}, nil
}

func (s *KeySet[K]) Insert(key K) { Put(s.view, s.keys, codec.Unit(), key, struct{}{}) }

func (s *KeySet[K]) Contains(key K) bool { return Contains(s.view, s.keys, key) }

func (s *KeySet[K]) Remove(key K) { Remove(s.view, s.keys, key) }

func (s *KeySet[K]) Clear() { s.view.Clear() }

func (s *KeySet[K]) Iter() *Iter[K, struct{}] { return s.IndexIter(nil) }

func (s *KeySet[K]) IterFrom(from K) *Iter[K, struct{}] { return s.IndexIter(&from) }

func (s *KeySet[K]) IndexIter(from *K) *Iter[K, struct{}] {
	if from == nil {
		return IterPrefix(s.view, s.keys, codec.Codec[struct{}](codec.Unit()), nil)
	}
	return IterFrom(s.view, s.keys, codec.Codec[struct{}](codec.Unit()), nil, *from)
}

func (s *KeySet[K]) KeyCodec() codec.Key[K] { return s.keys }
