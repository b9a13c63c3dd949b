// Package inspect reads database contents by index name without knowing the
// schema, for tooling such as the matter CLI.
package inspect

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/matter-labs/matterdb/pkg/serialization/codec"
	"github.com/matter-labs/matterdb/pkg/storage"
)

var (
	ErrIndexNotFound = storage.ErrIndexNotFound
	ErrWrongType     = storage.ErrTypeMismatch
)

// Inspector reads indexes through an access, optionally restricted to the
// indexes under a name prefix.
type Inspector struct {
	access storage.Access
}

// New returns an inspector over access. A non-empty prefix scopes every name
// to "prefix.name".
func New(access storage.Access, prefix string) (*Inspector, error) {
	if prefix == "" {
		return &Inspector{access: access}, nil
	}
	prefixed, err := storage.NewPrefixed(access, prefix)
	if err != nil {
		return nil, err
	}
	return &Inspector{access: prefixed}, nil
}

// Indexes lists every visible index with its type.
func (in *Inspector) Indexes() []storage.IndexInfo {
	return storage.Indexes(in.access, "")
}

// Filter lists the indexes whose qualified name starts with prefix.
func (in *Inspector) Filter(prefix string) []storage.IndexInfo {
	return storage.Indexes(in.access, prefix)
}

// catchDecode turns a *storage.DecodeError panic into the returned error.
// Values read without their schema may legitimately fail to decode.
func catchDecode(err *error) {
	r := recover()
	if r == nil {
		return
	}
	var decodeErr *storage.DecodeError
	if e, ok := r.(error); ok && errors.As(e, &decodeErr) {
		*err = e
		return
	}
	panic(r)
}

func (in *Inspector) lookup(name string) (storage.IndexAddress, storage.IndexType, error) {
	addr := storage.ParseQualified(name)
	if err := storage.ValidateName(addr.Name()); err != nil {
		return addr, 0, &storage.AccessError{Addr: addr, Err: err}
	}
	typ, ok := storage.IndexTypeOf(in.access, addr)
	if !ok {
		return addr, 0, &storage.AccessError{Addr: addr, Err: ErrIndexNotFound}
	}
	return addr, typ, nil
}

func (in *Inspector) list(name string) (storage.IndexAddress, error) {
	addr, typ, err := in.lookup(name)
	if err != nil {
		return addr, err
	}
	if typ != storage.IndexTypeList {
		return addr, &storage.AccessError{Addr: addr, Want: storage.IndexTypeList, Got: typ, Err: ErrWrongType}
	}
	return addr, nil
}

// List reads up to limit items of list name starting at offset.
func List[V any](in *Inspector, name string, offset, limit uint64, vals codec.Codec[V]) (_ []storage.Item[uint64, V], err error) {
	defer catchDecode(&err)
	addr, err := in.list(name)
	if err != nil {
		return nil, err
	}
	l, err := storage.GetList(in.access, addr, vals)
	if err != nil {
		return nil, err
	}

	it := l.IterFrom(offset)
	defer it.Close()
	var items []storage.Item[uint64, V]
	for uint64(len(items)) < limit {
		item, ok := it.Next()
		if !ok {
			break
		}
		items = append(items, item)
	}
	return items, nil
}

// ListItem reads item index of list name.
func ListItem[V any](in *Inspector, name string, index uint64, vals codec.Codec[V]) (_ V, err error) {
	defer catchDecode(&err)
	var zero V
	addr, err := in.list(name)
	if err != nil {
		return zero, err
	}
	l, err := storage.GetList(in.access, addr, vals)
	if err != nil {
		return zero, err
	}
	v, ok := l.Get(index)
	if !ok {
		return zero, fmt.Errorf("item %d of %q (len %d): %w", index, name, l.Len(), ErrIndexNotFound)
	}
	return v, nil
}

// Len is the number of items of list name.
func (in *Inspector) Len(name string) (_ uint64, err error) {
	defer catchDecode(&err)
	addr, err := in.list(name)
	if err != nil {
		return 0, err
	}
	l, err := storage.GetList(in.access, addr, codec.Bytes())
	if err != nil {
		return 0, err
	}
	return l.Len(), nil
}

// Checksum is a BLAKE2b-256 digest of every raw entry of index name, for
// comparing two copies of a collection. Each key and value is prefixed by
// its length.
func (in *Inspector) Checksum(name string) (_ [blake2b.Size256]byte, err error) {
	defer catchDecode(&err)
	var sum [blake2b.Size256]byte
	addr, typ, err := in.lookup(name)
	if err != nil {
		return sum, err
	}
	view, err := storage.OpenView(in.access, addr, typ)
	if err != nil {
		return sum, err
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return sum, err
	}
	h.Write([]byte{byte(typ)})

	it := view.IterBytes(nil, nil)
	defer it.Close()
	var n [8]byte
	for {
		key, value, ok := it.Next()
		if !ok {
			break
		}
		binary.BigEndian.PutUint64(n[:], uint64(len(key)))
		h.Write(n[:])
		h.Write(key)
		binary.BigEndian.PutUint64(n[:], uint64(len(value)))
		h.Write(n[:])
		h.Write(value)
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
