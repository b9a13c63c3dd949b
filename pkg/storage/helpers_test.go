package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := NewTemporaryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func mustFork(t *testing.T, d *Database) *Fork {
	t.Helper()
	f, err := d.Fork()
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func mustSnapshot(t *testing.T, d *Database) *Snapshot {
	t.Helper()
	s, err := d.Snapshot()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustMerge(t *testing.T, d *Database, f *Fork) {
	t.Helper()
	require.NoError(t, d.Merge(f.IntoPatch()))
}

func mustView(t *testing.T, access Access, name string) *View {
	t.Helper()
	v, err := OpenView(access, FromRoot(name), IndexTypeMap)
	require.NoError(t, err)
	return v
}

func collectRaw(it *RawIter) [][2]string {
	var out [][2]string
	for {
		k, v, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, [2]string{string(k), string(v)})
	}
}
