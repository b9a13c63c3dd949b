package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matter-labs/matterdb/pkg/db/pebble"
	"github.com/matter-labs/matterdb/pkg/serialization/codec"
)

func TestRegistryEnforcesTypes(t *testing.T) {
	d := newTestDB(t)
	f := mustFork(t, d)

	_, err := GetMap(f, FromRoot("foo"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)

	_, err = GetList(f, FromRoot("foo"), codec.Uint64())
	require.ErrorIs(t, err, ErrTypeMismatch)
	var accessErr *AccessError
	require.True(t, errors.As(err, &accessErr))
	assert.Equal(t, IndexTypeList, accessErr.Want)
	assert.Equal(t, IndexTypeMap, accessErr.Got)
	assert.Contains(t, err.Error(), `"foo" is map, requested list`)

	_, err = GetMap(f, FromRoot("foo"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)

	mustMerge(t, d, f)

	// the binding is persistent and enforced for read-only access too
	s := mustSnapshot(t, d)
	_, err = GetList(s, FromRoot("foo"), codec.Uint64())
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = GetMap(s, FromRoot("foo"), codec.Uint64(), codec.Uint64())
	assert.NoError(t, err)
}

func TestInvalidNames(t *testing.T) {
	d := newTestDB(t)
	f := mustFork(t, d)

	tests := []struct {
		name string
		addr IndexAddress
	}{
		{name: "empty", addr: FromRoot("")},
		{name: "space", addr: FromRoot("a b")},
		{name: "zero_byte", addr: FromRoot("a\x00b")},
		{name: "caret_inside", addr: FromRoot("a^b")},
		{name: "caret_only", addr: FromRoot("^")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := OpenView(f, tc.addr, IndexTypeMap)
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}

	_, err := OpenView(f, FromRoot("^session.iter-1_a"), IndexTypeEntry)
	assert.NoError(t, err)
}

func TestGroupedAddressesAreDisjoint(t *testing.T) {
	d := newTestDB(t)
	f := mustFork(t, d)

	root := FromRoot("list")
	one := root.AppendKey(codec.Uint32().Encode(1))
	three := root.AppendKey(codec.Uint32().Encode(3))

	l0, err := GetList(f, root, codec.Uint64())
	require.NoError(t, err)
	l1, err := GetList(f, one, codec.Uint64())
	require.NoError(t, err)
	// members of a family may have different types
	s3, err := GetSparseList(f, three, codec.Uint64())
	require.NoError(t, err)

	l0.Push(100)
	l1.Extend(1, 2)
	s3.Set(7, 70)

	assert.Equal(t, uint64(1), l0.Len())
	assert.Equal(t, uint64(2), l1.Len())
	assert.Equal(t, uint64(1), s3.Len())
	assert.Equal(t, "list\x00\x00\x00\x00\x01", one.Qualified())
	assert.Equal(t, "list.sub", root.AppendName("sub").Qualified())
}

func TestRegistrationsAreForkLocal(t *testing.T) {
	d := newTestDB(t)
	f := mustFork(t, d)
	_, err := GetEntry(f, FromRoot("cell"), codec.Uint64())
	require.NoError(t, err)

	s := mustSnapshot(t, d)
	assert.Empty(t, Indexes(s, ""))
	other, err := d.Indexes("")
	require.NoError(t, err)
	assert.Empty(t, other)

	// a snapshot taken before the merge keeps not seeing it
	mustMerge(t, d, f)
	assert.Empty(t, Indexes(s, ""))

	infos, err := d.Indexes("")
	require.NoError(t, err)
	assert.Equal(t, []IndexInfo{{Name: "cell", Type: IndexTypeEntry}}, infos)
}

func TestIndexesListing(t *testing.T) {
	d := newTestDB(t)
	f := mustFork(t, d)

	open := []struct {
		addr IndexAddress
		typ  IndexType
	}{
		{FromRoot("list"), IndexTypeList},
		{FromRoot("list").AppendKey(codec.Uint32().Encode(1)), IndexTypeList},
		{FromRoot("sparse_list"), IndexTypeSparseList},
		{FromRoot("list").AppendKey(codec.Uint32().Encode(3)), IndexTypeSparseList},
		{FromRoot("map"), IndexTypeMap},
		{FromRoot("map").AppendKey(codec.Uint32().Encode(1)), IndexTypeMap},
		{FromRoot("key_set"), IndexTypeKeySet},
		{FromRoot("set").AppendKey(codec.Uint32().Encode(1)), IndexTypeKeySet},
	}
	for _, o := range open {
		_, err := OpenView(f, o.addr, o.typ)
		require.NoError(t, err)
	}

	expected := []IndexInfo{
		{Name: "key_set", Type: IndexTypeKeySet},
		{Name: "list", Type: IndexTypeList},
		{Name: "list\x00\x00\x00\x00\x01", Type: IndexTypeList},
		{Name: "list\x00\x00\x00\x00\x03", Type: IndexTypeSparseList},
		{Name: "map", Type: IndexTypeMap},
		{Name: "map\x00\x00\x00\x00\x01", Type: IndexTypeMap},
		{Name: "set\x00\x00\x00\x00\x01", Type: IndexTypeKeySet},
		{Name: "sparse_list", Type: IndexTypeSparseList},
	}
	assert.Equal(t, expected, Indexes(f, ""))
	assert.Equal(t, expected[1:4], Indexes(f.Readonly(), "list"))

	mustMerge(t, d, f)
	infos, err := d.Indexes("")
	require.NoError(t, err)
	assert.Equal(t, expected, infos)

	typ, ok := IndexTypeOf(mustSnapshot(t, d), FromRoot("list").AppendKey(codec.Uint32().Encode(3)))
	require.True(t, ok)
	assert.Equal(t, IndexTypeSparseList, typ)
}

func TestPrefixedAccess(t *testing.T) {
	d := newTestDB(t)
	f := mustFork(t, d)

	p, err := NewPrefixed(f, "ns")
	require.NoError(t, err)

	inner, err := GetEntry(p, FromRoot("value"), codec.String())
	require.NoError(t, err)
	inner.Set("inside")

	outer, err := GetEntry(f, FromRoot("value"), codec.String())
	require.NoError(t, err)
	assert.False(t, outer.Exists())

	direct, err := GetEntry(f, FromRoot("ns.value"), codec.String())
	require.NoError(t, err)
	got, ok := direct.Get()
	require.True(t, ok)
	assert.Equal(t, "inside", got)

	assert.Equal(t, []IndexInfo{{Name: "value", Type: IndexTypeEntry}}, Indexes(p, ""))

	_, err = NewPrefixed(f, "bad prefix")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestRegistrySurvivesReopen(t *testing.T) {
	kv, err := pebble.NewKVStore()
	require.NoError(t, err)
	defer kv.Close() //nolint:errcheck

	d, err := Open(kv)
	require.NoError(t, err)
	f, err := d.Fork()
	require.NoError(t, err)
	m, err := GetMap(f, FromRoot("accounts"), codec.String(), codec.Uint64())
	require.NoError(t, err)
	m.Put("alice", 10)
	_, err = GetList(f, FromRoot("log"), codec.String())
	require.NoError(t, err)
	require.NoError(t, d.Merge(f.IntoPatch()))

	reopened, err := Open(kv)
	require.NoError(t, err)
	infos, err := reopened.Indexes("")
	require.NoError(t, err)
	assert.Equal(t, []IndexInfo{
		{Name: "accounts", Type: IndexTypeMap},
		{Name: "log", Type: IndexTypeList},
	}, infos)

	f, err = reopened.Fork()
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	_, err = GetKeySet(f, FromRoot("accounts"), codec.String())
	assert.ErrorIs(t, err, ErrTypeMismatch)

	m, err = GetMap(f, FromRoot("accounts"), codec.String(), codec.Uint64())
	require.NoError(t, err)
	got, ok := m.Get("alice")
	require.True(t, ok)
	assert.Equal(t, uint64(10), got)

	// new indexes get fresh ids after a reopen
	fresh, err := OpenView(f, FromRoot("fresh"), IndexTypeMap)
	require.NoError(t, err)
	assert.Equal(t, firstUserID+2, fresh.Address().ID)
}
