package storage

import "github.com/matter-labs/matterdb/pkg/serialization/codec"

// Entry is a single optional value.
type Entry[V any] struct {
	view *View
	vals codec.Codec[V]
}

func GetEntry[V any](access Access, addr IndexAddress, vals codec.Codec[V]) (*Entry[V], error) {
	view, err := OpenView(access, addr, IndexTypeEntry)
	if err != nil {
		return nil, err
	}
	return &Entry[V]{view: view, vals: vals}, nil
}

func (e *Entry[V]) Get() (V, bool) {
	return Get(e.view, codec.Unit(), e.vals, struct{}{})
}

func (e *Entry[V]) Exists() bool {
	return e.view.ContainsBytes(nil)
}

func (e *Entry[V]) Set(v V) {
	e.view.PutBytes(nil, e.vals.Encode(v))
}

func (e *Entry[V]) Remove() {
	e.view.RemoveBytes(nil)
}

// Take removes the value and returns it.
func (e *Entry[V]) Take() (V, bool) {
	v, ok := e.Get()
	if ok {
		e.Remove()
	}
	return v, ok
}

// Swap stores v and returns the previous value.
func (e *Entry[V]) Swap(v V) (V, bool) {
	prev, ok := e.Get()
	e.Set(v)
	return prev, ok
}
