package storage

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ScratchpadMarker starts the names of migration scratchpad namespaces.
const ScratchpadMarker = '^'

// IndexAddress names a collection: a dotted name plus optional group key
// bytes. Collections sharing a name but with different group keys form an
// index family and never see each other's entries.
type IndexAddress struct {
	name string
	key  []byte
}

func FromRoot(name string) IndexAddress {
	return IndexAddress{name: name}
}

// AppendName returns the address with ".suffix" added to its name.
func (a IndexAddress) AppendName(suffix string) IndexAddress {
	if a.name == "" {
		return IndexAddress{name: suffix, key: a.key}
	}
	return IndexAddress{name: a.name + "." + suffix, key: a.key}
}

// AppendKey returns the address with key appended to its group key.
func (a IndexAddress) AppendKey(key []byte) IndexAddress {
	k := make([]byte, 0, len(a.key)+len(key))
	k = append(k, a.key...)
	k = append(k, key...)
	return IndexAddress{name: a.name, key: k}
}

func (a IndexAddress) Name() string { return a.name }

func (a IndexAddress) GroupKey() []byte { return a.key }

// Qualified is the registry key of the address: the name, followed by a zero
// byte and the group key when there is one.
func (a IndexAddress) Qualified() string {
	if a.key == nil {
		return a.name
	}
	return a.name + "\x00" + string(a.key)
}

func (a IndexAddress) String() string {
	if a.key == nil {
		return a.name
	}
	return fmt.Sprintf("%s[%x]", a.name, a.key)
}

func (a IndexAddress) prependName(prefix string) IndexAddress {
	if a.name == "" {
		return IndexAddress{name: prefix, key: a.key}
	}
	return IndexAddress{name: prefix + "." + a.name, key: a.key}
}

func (a IndexAddress) validate() error {
	return ValidateName(a.name)
}

// ValidateName checks that name is non-empty and consists of ASCII letters,
// digits, '_', '-' and '.'. A leading '^' is allowed for scratchpad names.
func ValidateName(name string) error {
	body := strings.TrimPrefix(name, string(ScratchpadMarker))
	if body == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '-', c == '.':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, c)
		}
	}
	return nil
}

// ResolvedAddress is the numeric index id an address was bound to.
type ResolvedAddress struct {
	ID uint64
}

const (
	registryID  uint64 = 0
	sequenceID  uint64 = 1
	firstUserID uint64 = 16
)

// indexPrefix is the first physical key of index id.
func indexPrefix(id uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, id)
}

func physicalKey(id uint64, key []byte) []byte {
	out := make([]byte, 8, 8+len(key))
	binary.BigEndian.PutUint64(out, id)
	return append(out, key...)
}

// ParseQualified is the inverse of IndexAddress.Qualified.
func ParseQualified(qualified string) IndexAddress {
	name, key, grouped := strings.Cut(qualified, "\x00")
	if !grouped {
		return FromRoot(name)
	}
	return FromRoot(name).AppendKey([]byte(key))
}
