package storage

import (
	"encoding/binary"
	"strings"
)

// rawSnapshot is a read-only layer of index data keyed by index id.
type rawSnapshot interface {
	get(id uint64, key []byte) ([]byte, bool)
	iter(id uint64, from []byte) bytesIter
}

// Access resolves index addresses and provides the layers views read from.
// Implementations are *Snapshot, *Patch, *ReadonlyFork, *Fork and *Prefixed.
// Only *Fork (possibly wrapped in *Prefixed) can be written to.
type Access interface {
	snapshot() rawSnapshot
	// changes returns the overlay of index id, or nil when there is none.
	changes(id uint64) *viewChanges
	// changesMut returns the overlay of index id, creating it if needed. It
	// returns nil for read-only access.
	changesMut(id uint64) *viewChanges
	writable() bool
	// resolve binds addr to an index id. ok is false when the address is
	// unknown and the access is read-only.
	resolve(addr IndexAddress, typ IndexType) (resolved ResolvedAddress, ok bool, err error)
	indexes(prefix string) []IndexInfo
}

// Writable reports whether views opened through access accept writes.
func Writable(access Access) bool {
	return access.writable()
}

// Indexes lists registered indexes whose qualified name starts with prefix,
// in byte order of the qualified names.
func Indexes(access Access, prefix string) []IndexInfo {
	return access.indexes(prefix)
}

// OpenView resolves addr as an index of type typ. Read-only access to an
// unknown address yields a phantom view.
func OpenView(access Access, addr IndexAddress, typ IndexType) (*View, error) {
	resolved, ok, err := access.resolve(addr, typ)
	if err != nil {
		return nil, err
	}
	if !ok {
		return newPhantomView(), nil
	}
	return newView(access, resolved), nil
}

// IndexTypeOf returns the registered type of addr.
func IndexTypeOf(access Access, addr IndexAddress) (IndexType, bool) {
	for _, info := range access.indexes(addr.Qualified()) {
		if info.Name == addr.Qualified() {
			return info.Type, true
		}
	}
	return 0, false
}

func registryView(access Access) *View {
	return newView(access, ResolvedAddress{ID: registryID})
}

func resolveIndex(access Access, addr IndexAddress, typ IndexType) (ResolvedAddress, bool, error) {
	if err := addr.validate(); err != nil {
		return ResolvedAddress{}, false, &AccessError{Addr: addr, Err: err}
	}

	registry := registryView(access)
	name := []byte(addr.Qualified())
	if raw, ok := registry.GetBytes(name); ok {
		meta, err := decodeIndexMetadata(raw)
		if err != nil {
			panic(&DecodeError{Key: name, Err: err})
		}
		if meta.Type != typ {
			return ResolvedAddress{}, false, &AccessError{Addr: addr, Want: typ, Got: meta.Type, Err: ErrTypeMismatch}
		}
		return ResolvedAddress{ID: meta.ID}, true, nil
	}

	if !access.writable() {
		return ResolvedAddress{}, false, nil
	}
	id := allocateIndexID(access)
	registry.PutBytes(name, IndexMetadata{ID: id, Type: typ}.encode())
	return ResolvedAddress{ID: id}, true, nil
}

func allocateIndexID(access Access) uint64 {
	seq := newView(access, ResolvedAddress{ID: sequenceID})
	id := firstUserID
	if raw, ok := seq.GetBytes(nil); ok {
		if len(raw) != 8 {
			panic(&DecodeError{Key: nil, Err: errBadSequence})
		}
		id = binary.BigEndian.Uint64(raw)
	}
	seq.PutBytes(nil, binary.BigEndian.AppendUint64(nil, id+1))
	return id
}

func listIndexes(access Access, prefix string) []IndexInfo {
	it := registryView(access).IterBytes([]byte(prefix), []byte(prefix))
	defer it.Close()

	var infos []IndexInfo
	for {
		key, value, ok := it.Next()
		if !ok {
			return infos
		}
		meta, err := decodeIndexMetadata(value)
		if err != nil {
			panic(&DecodeError{Key: key, Err: err})
		}
		infos = append(infos, IndexInfo{Name: string(key), Type: meta.Type})
	}
}

// Prefixed places every index opened through it under "prefix.".
type Prefixed struct {
	access Access
	prefix string
}

func NewPrefixed(access Access, prefix string) (*Prefixed, error) {
	if err := ValidateName(prefix); err != nil {
		return nil, err
	}
	return &Prefixed{access: access, prefix: prefix}, nil
}

func (p *Prefixed) Prefix() string { return p.prefix }

func (p *Prefixed) snapshot() rawSnapshot             { return p.access.snapshot() }
func (p *Prefixed) changes(id uint64) *viewChanges    { return p.access.changes(id) }
func (p *Prefixed) changesMut(id uint64) *viewChanges { return p.access.changesMut(id) }
func (p *Prefixed) writable() bool                    { return p.access.writable() }

func (p *Prefixed) resolve(addr IndexAddress, typ IndexType) (ResolvedAddress, bool, error) {
	if err := addr.validate(); err != nil {
		return ResolvedAddress{}, false, &AccessError{Addr: addr, Err: err}
	}
	return p.access.resolve(addr.prependName(p.prefix), typ)
}

func (p *Prefixed) indexes(prefix string) []IndexInfo {
	full := p.prefix + "." + prefix
	infos := p.access.indexes(full)
	for i := range infos {
		infos[i].Name = strings.TrimPrefix(infos[i].Name, p.prefix+".")
	}
	return infos
}
