//go:build linux

package shmkv

import (
	"fmt"
	"sync"
)

// Component G - public table operations.
//
// Table is the explicit handle the design notes (§9) call for in place of
// the distilled source's process-wide singleton: a value that owns the
// mapping and is created by [Open]. A package-level singleton, if a host
// application wants one, is a thin sync.Once wrapper around Open - the core
// does not provide one itself.
type Table struct {
	seg *segment

	// tableLock abstracts over rwLock/procMutex so table.go's operations
	// never branch on backend.
	lock tableLock

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex // guards closed; operations never hold this across a table lock
}

// tableLock is satisfied by rwLock and by muxAsTableLock, the procMutex
// adapter in backend.go. Read ops call
// rlock/runlock; write ops call wlock/wunlock. On BackendMutex both pairs
// resolve to the same exclusive lock (see backend.go), which is exactly how
// §4.5 defines the degradation.
type tableLock interface {
	rlock()
	runlock()
	wlock()
	wunlock()
}

// Open performs the segment bootstrap (§4.7) for name and returns a handle
// using the requested backend. A non-nil error is fatal to the calling
// process: the table's invariants cannot hold without a mapped segment.
func Open(name string, backend Backend) (*Table, error) {
	seg, err := openSegment(name)
	if err != nil {
		return nil, err
	}

	return &Table{
		seg:  seg,
		lock: newTableLock(seg.data, backend),
	}, nil
}

// Close unmaps the segment. It does not unlink the named shared-memory
// object - see [Unlink]. Close is idempotent.
func (t *Table) Close() error {
	var err error

	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()

		err = t.seg.unmap()
	})

	return err
}

func (t *Table) checkOpen() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	return nil
}

// Add inserts (key, value). Duplicate keys and oversized values are
// rejected; value length is checked before any lock is taken (§4.6).
func (t *Table) Add(key int32, value []byte) error {
	if err := checkValueLen(value); err != nil {
		return err
	}

	if err := t.checkOpen(); err != nil {
		return err
	}

	t.lock.wlock()
	defer t.lock.wunlock()

	seg := t.seg.data
	seed := readHeaderHashSeed(seg)

	t.maybeRehash()

	idx, outcome := findInsertSlot(seg, seed, key)

	switch outcome {
	case insertDup:
		return ErrDuplicate
	case insertNoSpace:
		return ErrNoSpace
	}

	// Rehash only compacts tombstones; it can leave live already at MaxLive
	// with room to spare in the probe sequence. Re-check the live cap itself
	// here so a MaxLive+1'th live entry is never accepted (§3.1, P5).
	if atLiveCap(seg) {
		return ErrNoSpace
	}

	wasTombstone := readSlotState(seg, idx) == stateTombstone

	writeSlotKey(seg, idx, key)
	writeSlotValue(seg, idx, value)
	writeSlotHashPrimary(seg, idx, primary(seed, key))
	writeSlotState(seg, idx, stateOccupied)

	live, tomb := readHeaderCounts(seg)
	if wasTombstone {
		tomb--
	}

	writeHeaderCounts(seg, live+1, tomb)

	return nil
}

// Update overwrites the value of an existing key. Missing keys return
// ErrNotFound; oversized values return ErrNoSpace before any lock is taken.
func (t *Table) Update(key int32, value []byte) error {
	if err := checkValueLen(value); err != nil {
		return err
	}

	if err := t.checkOpen(); err != nil {
		return err
	}

	t.lock.wlock()
	defer t.lock.wunlock()

	seg := t.seg.data
	seed := readHeaderHashSeed(seg)

	idx, ok := findOccupied(seg, seed, key)
	if !ok {
		return ErrNotFound
	}

	writeSlotValue(seg, idx, value)

	return nil
}

// Upsert overwrites key's value if present, otherwise inserts it. add(k,v)
// on a key most recently written by Upsert returns ErrDuplicate (P4).
func (t *Table) Upsert(key int32, value []byte) error {
	if err := checkValueLen(value); err != nil {
		return err
	}

	if err := t.checkOpen(); err != nil {
		return err
	}

	t.lock.wlock()
	defer t.lock.wunlock()

	seg := t.seg.data
	seed := readHeaderHashSeed(seg)

	if idx, ok := findOccupied(seg, seed, key); ok {
		writeSlotValue(seg, idx, value)

		return nil
	}

	t.maybeRehash()

	idx, outcome := findInsertSlot(seg, seed, key)
	if outcome == insertNoSpace {
		return ErrNoSpace
	}
	// outcome can't be insertDup: findOccupied above already ruled out a
	// live match, so any Occupied slot seen again here would itself be a
	// broken invariant, not a legitimate duplicate.

	// This is a new key, not an overwrite of an existing one, so the live
	// cap still applies even after rehash compacted tombstones (§3.1, P5).
	if atLiveCap(seg) {
		return ErrNoSpace
	}

	wasTombstone := readSlotState(seg, idx) == stateTombstone

	writeSlotKey(seg, idx, key)
	writeSlotValue(seg, idx, value)
	writeSlotHashPrimary(seg, idx, primary(seed, key))
	writeSlotState(seg, idx, stateOccupied)

	live, tomb := readHeaderCounts(seg)
	if wasTombstone {
		tomb--
	}

	writeHeaderCounts(seg, live+1, tomb)

	return nil
}

// Get returns the value stored for key, or ErrNotFound.
func (t *Table) Get(key int32) ([]byte, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}

	t.lock.rlock()
	defer t.lock.runlock()

	seg := t.seg.data
	seed := readHeaderHashSeed(seg)

	idx, ok := findOccupied(seg, seed, key)
	if !ok {
		return nil, ErrNotFound
	}

	return readSlotValue(seg, idx), nil
}

// Remove tombstones key. Returns ErrNotFound if key is not currently
// Occupied; calling Remove twice in a row returns ErrNotFound the second
// time (P3).
func (t *Table) Remove(key int32) error {
	if err := t.checkOpen(); err != nil {
		return err
	}

	t.lock.wlock()
	defer t.lock.wunlock()

	seg := t.seg.data
	seed := readHeaderHashSeed(seg)

	idx, ok := findOccupied(seg, seed, key)
	if !ok {
		return ErrNotFound
	}

	writeSlotState(seg, idx, stateTombstone)

	live, tomb := readHeaderCounts(seg)
	writeHeaderCounts(seg, live-1, tomb+1)

	return nil
}

// Contains reports whether key is currently Occupied (P2).
func (t *Table) Contains(key int32) (bool, error) {
	if err := t.checkOpen(); err != nil {
		return false, err
	}

	t.lock.rlock()
	defer t.lock.runlock()

	seg := t.seg.data
	seed := readHeaderHashSeed(seg)

	_, ok := findOccupied(seg, seed, key)

	return ok, nil
}

// Clear resets every slot to Empty and zeroes live/tomb counts. It does not
// reset hash_seed.
func (t *Table) Clear() error {
	if err := t.checkOpen(); err != nil {
		return err
	}

	t.lock.wlock()
	defer t.lock.wunlock()

	seg := t.seg.data

	for i := range Capacity {
		writeSlotState(seg, i, stateEmpty)
		writeSlotHashPrimary(seg, i, 0)
	}

	writeHeaderCounts(seg, 0, 0)

	return nil
}

// Count returns the number of Occupied slots.
func (t *Table) Count() (int32, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}

	t.lock.rlock()
	defer t.lock.runlock()

	live, _ := readHeaderCounts(t.seg.data)

	return live, nil
}

// LoadFactor returns live/Capacity as a float.
//
// The distilled mutex-variant source skips locking inside count() in one
// place; that bug is deliberately not reproduced here (SPEC_FULL.md §9) -
// LoadFactor takes the read lock like every other read op, on both
// backends.
func (t *Table) LoadFactor() (float64, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}

	t.lock.rlock()
	defer t.lock.runlock()

	live, _ := readHeaderCounts(t.seg.data)

	return float64(live) / float64(Capacity), nil
}

// BatchUpdate applies value to every key present in updates that is
// currently Occupied, skipping keys that are absent or whose value is
// oversized. It returns the number of keys actually updated; per §7,
// batches never abort partway with a global error.
func (t *Table) BatchUpdate(updates map[int32][]byte) (int, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}

	t.lock.wlock()
	defer t.lock.wunlock()

	seg := t.seg.data
	seed := readHeaderHashSeed(seg)

	applied := 0

	for key, value := range updates {
		if len(value) >= ValueCap {
			continue
		}

		idx, ok := findOccupied(seg, seed, key)
		if !ok {
			continue
		}

		writeSlotValue(seg, idx, value)

		applied++
	}

	return applied, nil
}

// BatchGet copies every currently Occupied (key, value) pair into a fresh
// map and returns it along with the number of entries copied. Tombstoned
// keys never appear (P7).
func (t *Table) BatchGet() (map[int32][]byte, int, error) {
	if err := t.checkOpen(); err != nil {
		return nil, 0, err
	}

	t.lock.rlock()
	defer t.lock.runlock()

	seg := t.seg.data

	out := make(map[int32][]byte)

	for i := range Capacity {
		if readSlotState(seg, i) == stateOccupied {
			out[readSlotKey(seg, i)] = readSlotValue(seg, i)
		}
	}

	return out, len(out), nil
}

// Stats recomputes and returns the table's current statistics, including
// the average and maximum probe distance across every Occupied slot.
func (t *Table) Stats() (Stats, error) {
	if err := t.checkOpen(); err != nil {
		return Stats{}, err
	}

	t.lock.rlock()
	defer t.lock.runlock()

	seg := t.seg.data
	seed := readHeaderHashSeed(seg)
	live, tomb := readHeaderCounts(seg)

	var (
		totalDistance int64
		maxDistance   int
	)

	for i := range Capacity {
		if readSlotState(seg, i) != stateOccupied {
			continue
		}

		d := probeDistance(seg, seed, i, readSlotKey(seg, i))
		totalDistance += int64(d)

		if d > maxDistance {
			maxDistance = d
		}
	}

	avg := 0.0
	if live > 0 {
		avg = float64(totalDistance) / float64(live)
	}

	return Stats{
		CapacityTotal:    Capacity,
		Live:             live,
		Tombstones:       tomb,
		LoadFactor:       float64(live) / float64(Capacity),
		AvgProbeDistance: avg,
		MaxProbeDistance: maxDistance,
	}, nil
}

// maybeRehash runs Component D when the insert about to happen would raise
// live+tomb above MaxLive (§4.4) - lazy deletion lets tombstones accumulate
// even while live stays low, so tombstone pressure alone can trigger a
// compaction pass that no live-count check would catch. Callers must
// already hold the write lock and must call this before every insert that
// wasn't already ruled out as a duplicate or update.
func (t *Table) maybeRehash() {
	seg := t.seg.data
	seed := readHeaderHashSeed(seg)
	live, tomb := readHeaderCounts(seg)

	if live+tomb+1 > MaxLive {
		rehash(seg, seed, live)
	}
}

// atLiveCap reports whether live has already reached MaxLive. Rehash only
// reclaims tombstones - it cannot make room when live itself is the problem,
// so callers must check this separately after maybeRehash before accepting
// a new live entry.
func atLiveCap(seg []byte) bool {
	live, _ := readHeaderCounts(seg)

	return live >= MaxLive
}

// checkValueLen enforces the VALUE_CAP gate (P10): a value of length
// ValueCap or more is rejected before any lock is taken.
func checkValueLen(value []byte) error {
	if len(value) >= ValueCap {
		return fmt.Errorf("value length %d >= ValueCap %d: %w", len(value), ValueCap, ErrNoSpace)
	}

	return nil
}
