package storage

import (
	"encoding/binary"
	"fmt"
)

// IndexType is the collection type an index name is bound to.
type IndexType uint8

const (
	IndexTypeEntry IndexType = iota + 1
	IndexTypeList
	IndexTypeSparseList
	IndexTypeMap
	IndexTypeKeySet
)

func (t IndexType) String() string {
	switch t {
	case IndexTypeEntry:
		return "entry"
	case IndexTypeList:
		return "list"
	case IndexTypeSparseList:
		return "sparse_list"
	case IndexTypeMap:
		return "map"
	case IndexTypeKeySet:
		return "key_set"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func (t IndexType) valid() bool {
	return t >= IndexTypeEntry && t <= IndexTypeKeySet
}

// IndexMetadata is the registry record of one index.
type IndexMetadata struct {
	ID   uint64
	Type IndexType
}

func (m IndexMetadata) encode() []byte {
	out := binary.BigEndian.AppendUint64(make([]byte, 0, 9), m.ID)
	return append(out, byte(m.Type))
}

func decodeIndexMetadata(data []byte) (IndexMetadata, error) {
	if len(data) != 9 {
		return IndexMetadata{}, fmt.Errorf("index metadata: want 9 bytes, got %d", len(data))
	}
	m := IndexMetadata{ID: binary.BigEndian.Uint64(data), Type: IndexType(data[8])}
	if !m.Type.valid() {
		return IndexMetadata{}, fmt.Errorf("index metadata: unknown type %d", data[8])
	}
	return m, nil
}

// IndexInfo is one entry of a registry listing.
type IndexInfo struct {
	Name string
	Type IndexType
}
