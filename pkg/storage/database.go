package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog"

	"github.com/matter-labs/matterdb/pkg/db"
	"github.com/matter-labs/matterdb/pkg/db/pebble"
	"github.com/matter-labs/matterdb/pkg/log"
)

// Database owns a byte store and the committed index registry. Any number
// of snapshots may be read concurrently; merges are serialised.
type Database struct {
	kv     db.KVStore
	ownsKV bool

	// mu orders merges against snapshot creation, so that a snapshot and
	// its generation always agree.
	mu    sync.RWMutex
	gen   uint64
	cache *registryCache

	logger  *zerolog.Logger
	metrics *dbMetrics
}

type Option func(*Database)

// WithLogger overrides the storage component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Database) {
		d.logger = &l
	}
}

// WithMetricsSet registers the database metrics in set instead of a private
// set. Metric names are fixed, so a set can serve one database only.
func WithMetricsSet(set *metrics.Set) Option {
	return func(d *Database) {
		d.metrics = newDBMetrics(set, d.cache)
	}
}

type dbMetrics struct {
	set           *metrics.Set
	forks         *metrics.Counter
	snapshots     *metrics.Counter
	merges        *metrics.Counter
	mergedChanges *metrics.Counter
	mergeDuration *metrics.Histogram
}

func newDBMetrics(set *metrics.Set, cache *registryCache) *dbMetrics {
	set.NewGauge("matterdb_registered_indexes", func() float64 {
		return float64(cache.size())
	})
	return &dbMetrics{
		set:           set,
		forks:         set.NewCounter("matterdb_forks_total"),
		snapshots:     set.NewCounter("matterdb_snapshots_total"),
		merges:        set.NewCounter("matterdb_merges_total"),
		mergedChanges: set.NewCounter("matterdb_merged_changes_total"),
		mergeDuration: set.NewHistogram("matterdb_merge_duration_seconds"),
	}
}

// Open loads the index registry of kv.
func Open(kv db.KVStore, opts ...Option) (*Database, error) {
	d := &Database{kv: kv, cache: newRegistryCache()}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = newDBMetrics(metrics.NewSet(), d.cache)
	}

	if err := d.cache.rebuild(kv, 0); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d.log().Info().Int("indexes", d.cache.size()).Msg("database opened")
	return d, nil
}

// NewTemporaryDB opens a database over an in-memory store, closed together
// with the database.
func NewTemporaryDB(opts ...Option) (*Database, error) {
	kv, err := pebble.NewKVStore()
	if err != nil {
		return nil, err
	}
	d, err := Open(kv, opts...)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	d.ownsKV = true
	return d, nil
}

func (d *Database) log() *zerolog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return &log.Storage
}

func (d *Database) newStoreSnapshot() (*storeSnapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap, err := d.kv.NewSnapshot()
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	return &storeSnapshot{snap: snap, gen: d.gen, cache: d.cache}, nil
}

// Snapshot returns read-only access to the current committed state.
func (d *Database) Snapshot() (*Snapshot, error) {
	raw, err := d.newStoreSnapshot()
	if err != nil {
		return nil, err
	}
	d.metrics.snapshots.Inc()
	return &Snapshot{raw: raw}, nil
}

// Fork starts a read-write transaction over the current committed state.
//
// Only one fork may be written at a time. Forks do not detect conflicting
// writes to the same keys; the last merge wins. Two live forks registering new
// indexes would allocate the same ids, so Merge rejects the later of them with
// ErrIDConflict.
func (d *Database) Fork() (*Fork, error) {
	raw, err := d.newStoreSnapshot()
	if err != nil {
		return nil, err
	}
	d.metrics.forks.Inc()
	return newFork(raw), nil
}

// Merge atomically commits patch. The patch is consumed whether or not the
// commit succeeds.
func (d *Database) Merge(patch *Patch) error {
	if patch.merged.Swap(true) {
		return ErrPatchMerged
	}
	defer patch.Close() //nolint:errcheck

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkSequence(patch); err != nil {
		return err
	}

	start := time.Now()
	batch := d.kv.NewBatch()
	defer batch.Close() //nolint:errcheck

	cleared := 0
	// ids are written in order so that range deletions precede the puts of
	// the same index
	for _, id := range slices.Sorted(maps.Keys(patch.pending)) {
		ch := patch.pending[id]
		if ch.cleared {
			cleared++
			if err := batch.DeleteRange(indexPrefix(id), indexPrefix(id+1)); err != nil {
				return fmt.Errorf("clear index %d: %w", id, err)
			}
		}
		var err error
		ch.data.Ascend(func(c change) bool {
			if c.deleted {
				err = batch.Delete(physicalKey(id, c.key))
			} else {
				err = batch.Put(physicalKey(id, c.key), c.value)
			}
			return err == nil
		})
		if err != nil {
			return fmt.Errorf("write index %d: %w", id, err)
		}
	}

	entries := batch.Count()
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	d.gen++
	if registry := patch.pending[registryID]; registry != nil {
		if registry.cleared {
			if err := d.cache.rebuild(d.kv, d.gen); err != nil {
				return fmt.Errorf("reload registry: %w", err)
			}
		} else {
			d.cache.apply(registry, d.gen)
		}
	}

	d.metrics.merges.Inc()
	d.metrics.mergedChanges.Add(int(entries))
	d.metrics.mergeDuration.UpdateDuration(start)
	d.log().Debug().
		Uint32("entries", entries).
		Int("cleared", cleared).
		Uint64("generation", d.gen).
		Dur("took", time.Since(start)).
		Msg("patch merged")
	return nil
}

// checkSequence rejects a patch that allocated index ids when the committed
// id sequence moved on after the patch's fork was created.
func (d *Database) checkSequence(patch *Patch) error {
	if patch.pending[sequenceID] == nil {
		return nil
	}
	base, _ := patch.base.get(sequenceID, nil)
	current, err := d.kv.Get(physicalKey(sequenceID, nil))
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("read index id sequence: %w", err)
	}
	if !bytes.Equal(base, current) {
		return ErrIDConflict
	}
	return nil
}

// Indexes lists the committed indexes whose name starts with prefix.
func (d *Database) Indexes(prefix string) ([]IndexInfo, error) {
	s, err := d.Snapshot()
	if err != nil {
		return nil, err
	}
	defer s.Close() //nolint:errcheck
	return Indexes(s, prefix), nil
}

// WriteMetrics writes the database metrics in Prometheus text format.
func (d *Database) WriteMetrics(w io.Writer) {
	d.metrics.set.WritePrometheus(w)
}

// Close closes the store if the database opened it.
func (d *Database) Close() error {
	if d.ownsKV {
		return d.kv.Close()
	}
	return nil
}
