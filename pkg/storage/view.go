package storage

import (
	"github.com/matter-labs/matterdb/pkg/serialization/codec"
)

// View is the merged read/write interface over one index: the overlay of the
// access (if any) stacked on its snapshot. A phantom view has no backing
// index; it reads as empty and rejects writes.
//
// A view looks its overlay up on every call, so it stays valid across
// Fork.Flush and Fork.Rollback. A view whose registration was rolled back
// keeps its id; no other address is bound to that id afterwards.
type View struct {
	access Access
	addr   ResolvedAddress
}

func newView(access Access, addr ResolvedAddress) *View {
	return &View{access: access, addr: addr}
}

func newPhantomView() *View {
	return &View{}
}

func (v *View) IsPhantom() bool { return v.access == nil }

// Address is the resolved address of a bound view.
func (v *View) Address() ResolvedAddress { return v.addr }

func (v *View) overlay() *viewChanges {
	return v.access.changes(v.addr.ID)
}

func (v *View) GetBytes(key []byte) ([]byte, bool) {
	if v.IsPhantom() {
		return nil, false
	}
	if ch := v.overlay(); ch != nil {
		if value, ok := ch.lookup(key); ok {
			return value, value != nil
		}
	}
	return v.access.snapshot().get(v.addr.ID, key)
}

// MultiGetBytes resolves every key independently. Absent keys map to nil.
func (v *View) MultiGetBytes(keys [][]byte) [][]byte {
	out := make([][]byte, len(keys))
	for i, key := range keys {
		out[i], _ = v.GetBytes(key)
	}
	return out
}

func (v *View) ContainsBytes(key []byte) bool {
	if v.IsPhantom() {
		return false
	}
	if ch := v.overlay(); ch != nil {
		if found, ok := ch.contains(key); ok {
			return found
		}
	}
	_, found := v.access.snapshot().get(v.addr.ID, key)
	return found
}

// IterBytes iterates entries starting with prefix, from the first key >= from.
func (v *View) IterBytes(prefix, from []byte) *RawIter {
	if v.IsPhantom() {
		return newRawIter(emptyIter{}, prefix)
	}
	if len(from) == 0 || string(from) < string(prefix) {
		from = prefix
	}
	snap := v.access.snapshot()
	id := v.addr.ID
	base := layeredIter(v.overlay(), func(from []byte) bytesIter {
		return snap.iter(id, from)
	}, from)
	return newRawIter(base, prefix)
}

// PutBytes panics with ErrReadOnly unless the view is writable.
func (v *View) PutBytes(key, value []byte) {
	if !v.PutOrForget(key, value) {
		readOnlyPanic("put")
	}
}

// PutOrForget stores the value when the view is writable and reports whether
// it did. Code generic over access kinds uses it to degrade on read-only access.
func (v *View) PutOrForget(key, value []byte) bool {
	ch := v.writableOverlay()
	if ch == nil {
		return false
	}
	ch.put(key, value)
	return true
}

func (v *View) RemoveBytes(key []byte) {
	ch := v.writableOverlay()
	if ch == nil {
		readOnlyPanic("remove")
	}
	ch.remove(key)
}

// Clear removes every entry of the index.
func (v *View) Clear() {
	ch := v.writableOverlay()
	if ch == nil {
		readOnlyPanic("clear")
	}
	ch.clear()
}

func (v *View) writableOverlay() *viewChanges {
	if v.IsPhantom() {
		return nil
	}
	return v.access.changesMut(v.addr.ID)
}

// Get decodes the value stored under key.
func Get[K, V any](v *View, keys codec.Key[K], vals codec.Codec[V], key K) (V, bool) {
	k := keys.Encode(key)
	raw, ok := v.GetBytes(k)
	if !ok {
		var zero V
		return zero, false
	}
	return decode(vals, k, raw), true
}

// MultiGet looks up every key; found[i] reports whether values[i] was present.
func MultiGet[K, V any](v *View, keys codec.Key[K], vals codec.Codec[V], ks []K) (values []V, found []bool) {
	encoded := make([][]byte, len(ks))
	for i, k := range ks {
		encoded[i] = keys.Encode(k)
	}
	values = make([]V, len(ks))
	found = make([]bool, len(ks))
	for i, raw := range v.MultiGetBytes(encoded) {
		if raw != nil {
			values[i] = decode(vals, encoded[i], raw)
			found[i] = true
		}
	}
	return values, found
}

func Contains[K any](v *View, keys codec.Key[K], key K) bool {
	return v.ContainsBytes(keys.Encode(key))
}

// IterPrefix iterates entries whose raw keys start with prefix.
func IterPrefix[K, V any](v *View, keys codec.Key[K], vals codec.Codec[V], prefix []byte) *Iter[K, V] {
	return newIter(v.IterBytes(prefix, prefix), codec.Codec[K](keys), vals)
}

// IterFrom iterates entries starting with prefix from the first key >= from.
func IterFrom[K, V any](v *View, keys codec.Key[K], vals codec.Codec[V], prefix []byte, from K) *Iter[K, V] {
	return newIter(v.IterBytes(prefix, keys.Encode(from)), codec.Codec[K](keys), vals)
}

func Put[K, V any](v *View, keys codec.Key[K], vals codec.Codec[V], key K, value V) {
	v.PutBytes(keys.Encode(key), vals.Encode(value))
}

func Remove[K any](v *View, keys codec.Key[K], key K) {
	v.RemoveBytes(keys.Encode(key))
}
