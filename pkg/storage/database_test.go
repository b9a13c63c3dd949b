package storage

import (
	"bytes"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matter-labs/matterdb/pkg/serialization/codec"
)

func TestDatabase(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, d *Database)
	}{
		{name: "snapshot_isolation", fn: testSnapshotIsolation},
		{name: "flush_and_rollback", fn: testFlushAndRollback},
		{name: "rollback_keeps_ids_unique", fn: testRollbackKeepsIDsUnique},
		{name: "concurrent_registrations_conflict", fn: testConcurrentRegistrationsConflict},
		{name: "discarded_fork", fn: testDiscardedFork},
		{name: "patch_merged_once", fn: testPatchMergedOnce},
		{name: "consumed_fork_panics", fn: testConsumedForkPanics},
		{name: "patch_is_readable", fn: testPatchIsReadable},
		{name: "drop_indexes", fn: testDropIndexes},
		{name: "cleared_index_merge", fn: testClearedIndexMerge},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newTestDB(t))
		})
	}
}

func testSnapshotIsolation(t *testing.T, d *Database) {
	f := mustFork(t, d)
	e, err := GetEntry(f, FromRoot("counter"), codec.Uint64())
	require.NoError(t, err)
	e.Set(1)
	mustMerge(t, d, f)

	before := mustSnapshot(t, d)

	f = mustFork(t, d)
	e, err = GetEntry(f, FromRoot("counter"), codec.Uint64())
	require.NoError(t, err)
	e.Set(2)
	mustMerge(t, d, f)

	after := mustSnapshot(t, d)

	old, err := GetEntry(before, FromRoot("counter"), codec.Uint64())
	require.NoError(t, err)
	v, ok := old.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)

	cur, err := GetEntry(after, FromRoot("counter"), codec.Uint64())
	require.NoError(t, err)
	v, ok = cur.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(2), v)
}

func testFlushAndRollback(t *testing.T, d *Database) {
	f := mustFork(t, d)
	l, err := GetList(f, FromRoot("l"), codec.Uint64())
	require.NoError(t, err)

	l.Extend(1, 2, 3)
	f.Flush()
	l.Push(4)
	l.Set(0, 100)
	f.Rollback()

	assert.Equal(t, uint64(3), l.Len())
	assert.Equal(t, []Item[uint64, uint64]{{0, 1}, {1, 2}, {2, 3}}, l.Iter().Collect())

	// a rollback also discards index registrations
	_, err = GetMap(f, FromRoot("temp"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)
	f.Rollback()
	assert.Len(t, Indexes(f, ""), 1)

	mustMerge(t, d, f)
	s := mustSnapshot(t, d)
	l, err = GetList(s, FromRoot("l"), codec.Uint64())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), l.Len())
}

func testRollbackKeepsIDsUnique(t *testing.T, d *Database) {
	f := mustFork(t, d)
	m, err := GetMap(f, FromRoot("m"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)
	f.Rollback()

	// the rolled back view is still writable but must not alias a new index
	m.Put(1, 111)
	x, err := GetMap(f, FromRoot("x"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)
	assert.NotEqual(t, m.view.Address(), x.view.Address())
	assert.False(t, x.Contains(1))

	x.Put(2, 222)
	mustMerge(t, d, f)

	s := mustSnapshot(t, d)
	x, err = GetMap(s, FromRoot("x"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)
	assert.Equal(t, []Item[uint64, uint64]{{2, 222}}, x.Iter().Collect())
	assert.Equal(t, []IndexInfo{{Name: "x", Type: IndexTypeMap}}, Indexes(s, ""))

	// later forks keep allocating past the rolled back id
	f = mustFork(t, d)
	y, err := GetMap(f, FromRoot("y"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)
	assert.False(t, y.Contains(1))
	assert.NotEqual(t, m.view.Address(), y.view.Address())
}

func testConcurrentRegistrationsConflict(t *testing.T, d *Database) {
	f := mustFork(t, d)
	_, err := GetMap(f, FromRoot("existing"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)
	mustMerge(t, d, f)

	first := mustFork(t, d)
	second := mustFork(t, d)
	writer := mustFork(t, d)

	a, err := GetMap(first, FromRoot("a"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)
	a.Put(1, 1)
	b, err := GetMap(second, FromRoot("b"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)
	b.Put(1, 2)
	assert.Equal(t, a.view.Address(), b.view.Address())
	e, err := GetMap(writer, FromRoot("existing"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)
	e.Put(7, 7)

	mustMerge(t, d, first)
	require.ErrorIs(t, d.Merge(second.IntoPatch()), ErrIDConflict)
	// forks that register nothing are not affected
	mustMerge(t, d, writer)

	infos, err := d.Indexes("")
	require.NoError(t, err)
	assert.Equal(t, []IndexInfo{
		{Name: "a", Type: IndexTypeMap},
		{Name: "existing", Type: IndexTypeMap},
	}, infos)

	s := mustSnapshot(t, d)
	a, err = GetMap(s, FromRoot("a"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)
	assert.Equal(t, []Item[uint64, uint64]{{1, 1}}, a.Iter().Collect())
	e, err = GetMap(s, FromRoot("existing"), codec.Uint64(), codec.Uint64())
	require.NoError(t, err)
	assert.True(t, e.Contains(7))
}

func testDiscardedFork(t *testing.T, d *Database) {
	f := mustFork(t, d)
	m, err := GetMap(f, FromRoot("m"), codec.String(), codec.String())
	require.NoError(t, err)
	m.Put("k", "v")
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	infos, err := d.Indexes("")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func testPatchMergedOnce(t *testing.T, d *Database) {
	f := mustFork(t, d)
	patch := f.IntoPatch()
	require.NoError(t, d.Merge(patch))
	assert.ErrorIs(t, d.Merge(patch), ErrPatchMerged)
}

func testConsumedForkPanics(t *testing.T, d *Database) {
	f := mustFork(t, d)
	f.IntoPatch().Close() //nolint:errcheck
	assert.PanicsWithValue(t, ErrForkConsumed, func() {
		_, _ = GetEntry(f, FromRoot("x"), codec.Uint64())
	})
}

func testPatchIsReadable(t *testing.T, d *Database) {
	f := mustFork(t, d)
	m, err := GetMap(f, FromRoot("m"), codec.Uint64(), codec.String())
	require.NoError(t, err)
	m.Put(1, "one")
	f.Flush()
	m.Put(2, "two")

	patch := f.IntoPatch()
	assert.Equal(t, 4, patch.Len(), "two entries, one registry record, the id sequence")

	pm, err := GetMap(patch, FromRoot("m"), codec.Uint64(), codec.String())
	require.NoError(t, err)
	assert.Equal(t, []Item[uint64, string]{{1, "one"}, {2, "two"}}, pm.Iter().Collect())
	require.NoError(t, d.Merge(patch))
}

func testDropIndexes(t *testing.T, d *Database) {
	f := mustFork(t, d)
	for _, name := range []string{"^s.a", "^s.b", "^s2.a", "keep"} {
		l, err := GetList(f, FromRoot(name), codec.String())
		require.NoError(t, err)
		l.Push(name)
	}
	mustMerge(t, d, f)

	f = mustFork(t, d)
	assert.Equal(t, []string{"^s.a", "^s.b"}, DropIndexes(f, "^s."))
	mustMerge(t, d, f)

	infos, err := d.Indexes("")
	require.NoError(t, err)
	assert.Equal(t, []IndexInfo{{"^s2.a", IndexTypeList}, {"keep", IndexTypeList}}, infos)

	// reopening a dropped name starts from scratch
	f = mustFork(t, d)
	l, err := GetList(f, FromRoot("^s.a"), codec.String())
	require.NoError(t, err)
	assert.True(t, l.IsEmpty())
}

func testClearedIndexMerge(t *testing.T, d *Database) {
	f := mustFork(t, d)
	a, err := GetKeySet(f, FromRoot("a"), codec.Uint64())
	require.NoError(t, err)
	b, err := GetKeySet(f, FromRoot("b"), codec.Uint64())
	require.NoError(t, err)
	for i := uint64(0); i < 10; i++ {
		a.Insert(i)
		b.Insert(i)
	}
	mustMerge(t, d, f)

	f = mustFork(t, d)
	a, err = GetKeySet(f, FromRoot("a"), codec.Uint64())
	require.NoError(t, err)
	a.Clear()
	a.Insert(42)
	mustMerge(t, d, f)

	s := mustSnapshot(t, d)
	a, err = GetKeySet(s, FromRoot("a"), codec.Uint64())
	require.NoError(t, err)
	b, err = GetKeySet(s, FromRoot("b"), codec.Uint64())
	require.NoError(t, err)
	assert.Equal(t, []Item[uint64, struct{}]{{Key: 42}}, a.Iter().Collect())
	assert.Len(t, b.Iter().Collect(), 10, "range deletion stays within the cleared index")
}

func TestDatabaseMetrics(t *testing.T) {
	set := metrics.NewSet()
	d, err := NewTemporaryDB(WithMetricsSet(set), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer d.Close() //nolint:errcheck

	f, err := d.Fork()
	require.NoError(t, err)
	_, err = GetEntry(f, FromRoot("e"), codec.Uint64())
	require.NoError(t, err)
	require.NoError(t, d.Merge(f.IntoPatch()))

	var buf bytes.Buffer
	d.WriteMetrics(&buf)
	out := buf.String()
	assert.Contains(t, out, "matterdb_forks_total 1")
	assert.Contains(t, out, "matterdb_merges_total 1")
	assert.Contains(t, out, "matterdb_merged_changes_total 2")
	assert.Contains(t, out, "matterdb_registered_indexes 1")
	assert.Contains(t, out, "matterdb_merge_duration_seconds")
}

func TestDatabaseLogsMerges(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	d, err := NewTemporaryDB(WithLogger(logger))
	require.NoError(t, err)
	defer d.Close() //nolint:errcheck

	f, err := d.Fork()
	require.NoError(t, err)
	require.NoError(t, d.Merge(f.IntoPatch()))

	assert.Contains(t, buf.String(), `"message":"database opened"`)
	assert.Contains(t, buf.String(), `"message":"patch merged"`)
}
