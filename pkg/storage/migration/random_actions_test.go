package migration

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matter-labs/matterdb/pkg/serialization/codec"
	"github.com/matter-labs/matterdb/pkg/storage"
)

const actionsMaxLen = 50

type collection struct {
	name  string
	group *uint32
	typ   storage.IndexType
}

func group(g uint32) *uint32 { return &g }

func (c collection) addr() storage.IndexAddress {
	addr := storage.FromRoot(c.name)
	if c.group != nil {
		addr = addr.AppendKey(codec.Uint32().Encode(*c.group))
	}
	return addr
}

var collections = []collection{
	{name: "list", typ: storage.IndexTypeList},
	{name: "list", group: group(1), typ: storage.IndexTypeList},
	{name: "sparse_list", typ: storage.IndexTypeSparseList},
	{name: "list", group: group(3), typ: storage.IndexTypeSparseList},
	{name: "map", typ: storage.IndexTypeMap},
	{name: "map", group: group(1), typ: storage.IndexTypeMap},
	{name: "key_set", typ: storage.IndexTypeKeySet},
	{name: "set", group: group(1), typ: storage.IndexTypeKeySet},
}

func (c collection) fill(t *testing.T, f *storage.Fork, rng *rand.Rand) {
	count := 25 + rng.Intn(75)
	switch c.typ {
	case storage.IndexTypeList:
		l, err := storage.GetList(f, c.addr(), codec.Uint64())
		require.NoError(t, err)
		for range count {
			l.Push(rng.Uint64())
		}
	case storage.IndexTypeSparseList:
		l, err := storage.GetSparseList(f, c.addr(), codec.Uint64())
		require.NoError(t, err)
		for range count {
			l.Set(rng.Uint64()%256, rng.Uint64())
		}
	case storage.IndexTypeMap:
		m, err := storage.GetMap(f, c.addr(), codec.Uint64(), codec.Uint64())
		require.NoError(t, err)
		for range count {
			m.Put(rng.Uint64()&0xffff, rng.Uint64())
		}
	case storage.IndexTypeKeySet:
		s, err := storage.GetKeySet(f, c.addr(), codec.Uint64())
		require.NoError(t, err)
		for range count {
			s.Insert(rng.Uint64())
		}
	default:
		t.Fatalf("unexpected collection type %s", c.typ)
	}
}

// enumerate returns the values of the collection (keys for key sets) in order.
func (c collection) enumerate(t *testing.T, f *storage.Fork) []uint64 {
	switch c.typ {
	case storage.IndexTypeList:
		l, err := storage.GetList(f, c.addr(), codec.Uint64())
		require.NoError(t, err)
		return values(l.Iter().Collect())
	case storage.IndexTypeSparseList:
		l, err := storage.GetSparseList(f, c.addr(), codec.Uint64())
		require.NoError(t, err)
		return values(l.Iter().Collect())
	case storage.IndexTypeMap:
		m, err := storage.GetMap(f, c.addr(), codec.Uint64(), codec.Uint64())
		require.NoError(t, err)
		return values(m.Iter().Collect())
	default:
		s, err := storage.GetKeySet(f, c.addr(), codec.Uint64())
		require.NoError(t, err)
		var keys []uint64
		for k := range s.Iter().All() {
			keys = append(keys, k)
		}
		return keys
	}
}

type iterState struct {
	name       string
	collection collection
	items      []uint64
	position   int
}

func (s *iterState) advance(t *testing.T, f *storage.Fork, amount int) {
	s.position += amount
	sp := mustScratchpad(t, f)
	addr := s.collection.addr()

	switch s.collection.typ {
	case storage.IndexTypeList:
		l, err := storage.GetList(f, addr, codec.Uint64())
		require.NoError(t, err)
		it, err := NewPersistentIter[uint64, uint64](sp, s.name, l)
		require.NoError(t, err)
		s.items = append(s.items, values(it.Advance(amount))...)
		it.Close()
	case storage.IndexTypeSparseList:
		l, err := storage.GetSparseList(f, addr, codec.Uint64())
		require.NoError(t, err)
		it, err := NewPersistentIter[uint64, uint64](sp, s.name, l)
		require.NoError(t, err)
		s.items = append(s.items, values(it.Advance(amount))...)
		it.Close()
	case storage.IndexTypeMap:
		m, err := storage.GetMap(f, addr, codec.Uint64(), codec.Uint64())
		require.NoError(t, err)
		it, err := NewPersistentIter[uint64, uint64](sp, s.name, m)
		require.NoError(t, err)
		s.items = append(s.items, values(it.Advance(amount))...)
		it.Close()
	case storage.IndexTypeKeySet:
		set, err := storage.GetKeySet(f, addr, codec.Uint64())
		require.NoError(t, err)
		it, err := NewPersistentKeys[uint64](sp, s.name, set)
		require.NoError(t, err)
		s.items = append(s.items, it.Advance(amount)...)
		it.Close()
	}
}

func (s *iterState) check(t *testing.T, f *storage.Fork) {
	expected := s.collection.enumerate(t, f)
	if len(expected) > s.position {
		expected = expected[:s.position]
	}
	// a cursor that has yielded nothing holds a nil slice
	require.Equal(t, append([]uint64{}, expected...), append([]uint64{}, s.items...),
		"iterator %s over %s", s.name, s.collection.addr())
}

type actionKind int

const (
	createIter actionKind = iota
	advanceIter
	flushFork
	mergeFork
)

type action struct {
	kind       actionKind
	collection collection
	index      int
	amount     int
}

// generateAction picks create and advance four times as often as flush and merge.
func generateAction(rng *rand.Rand, from []collection) action {
	switch w := rng.Intn(10); {
	case w < 4:
		return action{kind: createIter, collection: from[rng.Intn(len(from))]}
	case w < 8:
		return action{kind: advanceIter, index: rng.Int(), amount: 1 + rng.Intn(9)}
	case w < 9:
		return action{kind: flushFork}
	default:
		return action{kind: mergeFork}
	}
}

func fillCollections(t *testing.T, d *storage.Database) {
	rng := rand.New(rand.NewSource(0x5eed))
	f := mustFork(t, d)
	for _, c := range collections {
		c.fill(t, f, rng)
	}
	require.NoError(t, d.Merge(f.IntoPatch()))
}

func clearScratchpad(t *testing.T, d *storage.Database) {
	f := mustFork(t, d)
	require.NoError(t, RollbackMigration(f, "iters"))
	require.NoError(t, d.Merge(f.IntoPatch()))
}

func applyActions(t *testing.T, d *storage.Database, actions []action) {
	f := mustFork(t, d)
	var iters []*iterState

	for _, a := range actions {
		switch a.kind {
		case createIter:
			iters = append(iters, &iterState{
				name:       fmt.Sprintf("iter%d", len(iters)),
				collection: a.collection,
			})
		case advanceIter:
			if len(iters) == 0 {
				continue
			}
			it := iters[a.index%len(iters)]
			it.advance(t, f, a.amount)
			it.check(t, f)
		case flushFork:
			f.Flush()
		case mergeFork:
			require.NoError(t, d.Merge(f.IntoPatch()))
			f = mustFork(t, d)
		}
	}

	for _, it := range iters {
		it.check(t, f)
	}
	require.NoError(t, d.Merge(f.IntoPatch()))
}

func runRandomActions(t *testing.T, from []collection) {
	d := newTestDB(t)
	fillCollections(t, d)

	for seed := int64(0); seed < 64; seed++ {
		rng := rand.New(rand.NewSource(seed))
		actions := make([]action, 1+rng.Intn(actionsMaxLen-1))
		for i := range actions {
			actions[i] = generateAction(rng, from)
		}
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			// runs even when the seed fails, so later seeds start clean
			t.Cleanup(func() { clearScratchpad(t, d) })
			applyActions(t, d, actions)
		})
	}
}

func TestPersistentIters(t *testing.T) {
	runRandomActions(t, collections)
}

func TestPersistentItersOverSingleCollection(t *testing.T) {
	runRandomActions(t, collections[:1])
}
