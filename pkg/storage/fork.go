package storage

import "sync/atomic"

// Patch is the set of changes of a fork, read on top of the snapshot the fork
// was created from. It is consumed by Database.Merge.
type Patch struct {
	base    *storeSnapshot
	pending map[uint64]*viewChanges
	merged  atomic.Bool
}

func (p *Patch) get(id uint64, key []byte) ([]byte, bool) {
	if ch := p.pending[id]; ch != nil {
		if value, ok := ch.lookup(key); ok {
			return value, value != nil
		}
	}
	return p.base.get(id, key)
}

func (p *Patch) iter(id uint64, from []byte) bytesIter {
	return layeredIter(p.pending[id], func(from []byte) bytesIter {
		return p.base.iter(id, from)
	}, from)
}

// absorb folds the overlay of index id into the patch.
func (p *Patch) absorb(id uint64, ch *viewChanges) {
	existing := p.pending[id]
	if existing == nil || ch.cleared {
		p.pending[id] = ch
		return
	}
	existing.absorb(ch)
}

// Len is the number of pending entry changes, tombstones included.
func (p *Patch) Len() int {
	n := 0
	for _, ch := range p.pending {
		n += ch.data.Len()
	}
	return n
}

func (p *Patch) snapshot() rawSnapshot          { return p }
func (p *Patch) changes(uint64) *viewChanges    { return nil }
func (p *Patch) changesMut(uint64) *viewChanges { return nil }
func (p *Patch) writable() bool                 { return false }

func (p *Patch) resolve(addr IndexAddress, typ IndexType) (ResolvedAddress, bool, error) {
	return resolveIndex(p, addr, typ)
}

func (p *Patch) indexes(prefix string) []IndexInfo {
	return listIndexes(p, prefix)
}

// Close releases the snapshot under the patch. Merge closes it as well.
func (p *Patch) Close() error {
	return p.base.close()
}

// Fork is a read-write transaction. Writes go to a working overlay; Flush
// moves them into the fork's patch and Rollback discards them. A fork is
// committed by passing IntoPatch to Database.Merge, or dropped with Close.
type Fork struct {
	patch   *Patch
	working map[uint64]*viewChanges
}

func newFork(base *storeSnapshot) *Fork {
	return &Fork{
		patch:   &Patch{base: base, pending: make(map[uint64]*viewChanges)},
		working: make(map[uint64]*viewChanges),
	}
}

func (f *Fork) live() *Patch {
	if f.patch == nil {
		panic(ErrForkConsumed)
	}
	return f.patch
}

func (f *Fork) snapshot() rawSnapshot { return f.live() }

func (f *Fork) changes(id uint64) *viewChanges {
	f.live()
	return f.working[id]
}

func (f *Fork) changesMut(id uint64) *viewChanges {
	f.live()
	ch := f.working[id]
	if ch == nil {
		ch = newViewChanges()
		f.working[id] = ch
	}
	return ch
}

func (f *Fork) writable() bool { return true }

func (f *Fork) resolve(addr IndexAddress, typ IndexType) (ResolvedAddress, bool, error) {
	return resolveIndex(f, addr, typ)
}

func (f *Fork) indexes(prefix string) []IndexInfo {
	return listIndexes(f, prefix)
}

// Flush moves the working changes into the patch. Rollback no longer
// reverts them.
func (f *Fork) Flush() {
	patch := f.live()
	for id, ch := range f.working {
		if !ch.isEmpty() {
			patch.absorb(id, ch)
		}
	}
	f.working = make(map[uint64]*viewChanges)
}

// Rollback discards the changes made since the last Flush, including index
// registrations. The id sequence is kept: a view opened before the rollback
// still writes to its own id, which is never handed out again.
func (f *Fork) Rollback() {
	f.live()
	seq := f.working[sequenceID]
	f.working = make(map[uint64]*viewChanges)
	if seq != nil {
		f.working[sequenceID] = seq
	}
}

// IntoPatch flushes the fork and hands its changes over. The fork cannot be
// used afterwards.
func (f *Fork) IntoPatch() *Patch {
	f.Flush()
	patch := f.patch
	f.patch = nil
	f.working = nil
	return patch
}

// Readonly returns read-only access that sees the fork's unflushed changes.
func (f *Fork) Readonly() *ReadonlyFork {
	return &ReadonlyFork{fork: f}
}

// Close discards the fork. It is a no-op after IntoPatch.
func (f *Fork) Close() error {
	if f.patch == nil {
		return nil
	}
	patch := f.patch
	f.patch = nil
	f.working = nil
	return patch.Close()
}

// ReadonlyFork is a read-only window into a fork, including changes that
// have not been flushed.
type ReadonlyFork struct {
	fork *Fork
}

func (r *ReadonlyFork) snapshot() rawSnapshot            { return r.fork.live() }
func (r *ReadonlyFork) changes(id uint64) *viewChanges { return r.fork.changes(id) }
func (r *ReadonlyFork) changesMut(uint64) *viewChanges { return nil }
func (r *ReadonlyFork) writable() bool                 { return false }

func (r *ReadonlyFork) resolve(addr IndexAddress, typ IndexType) (ResolvedAddress, bool, error) {
	return resolveIndex(r, addr, typ)
}

func (r *ReadonlyFork) indexes(prefix string) []IndexInfo {
	return listIndexes(r, prefix)
}

// DropIndexes removes every index whose qualified name starts with prefix:
// the data is cleared and the registry entry deleted. Index ids are never
// reused. It returns the names removed.
func DropIndexes(fork *Fork, prefix string) []string {
	infos := listIndexes(fork, prefix)
	registry := registryView(fork)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		raw, ok := registry.GetBytes([]byte(info.Name))
		if !ok {
			continue
		}
		meta, err := decodeIndexMetadata(raw)
		if err != nil {
			panic(&DecodeError{Key: []byte(info.Name), Err: err})
		}
		fork.changesMut(meta.ID).clear()
		registry.RemoveBytes([]byte(info.Name))
		names = append(names, info.Name)
	}
	return names
}
