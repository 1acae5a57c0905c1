package shmkv

// Component D - rehash-in-place.
//
// Invoked by a writer before any insert that would push (live+tombstones)
// above MaxLive.
// Lazy deletion lets tombstones accumulate monotonically even while live
// stays low, so tombstone pressure - not just live count - drives the
// trigger (see Table.maybeRehash).
//
// The caller must already hold the write lock for the whole call; the
// snapshot below is process-local scratch space, safe to allocate because
// the write lock excludes every other reader and writer for its duration.

type liveEntry struct {
	key   int32
	value []byte
}

// rehash snapshots every Occupied (key, value) pair, resets every slot to
// Empty, and re-inserts each pair via findInsertSlot. hash_seed is never
// changed, so this only eliminates tombstones from probe sequences - it does
// not and cannot change the table's fixed capacity.
//
// A re-insert reporting "no space" here is an assertion failure, not a
// recoverable outcome: the table never holds more than MaxLive entries and
// MaxLive was chosen so that, under a correct probe policy, it cannot fail
// to place a number of entries it already held.
func rehash(seg []byte, seed uint32, live int32) {
	snapshot := make([]liveEntry, 0, live)

	for i := range Capacity {
		if readSlotState(seg, i) == stateOccupied {
			snapshot = append(snapshot, liveEntry{
				key:   readSlotKey(seg, i),
				value: readSlotValue(seg, i),
			})
		}
	}

	for i := range Capacity {
		writeSlotState(seg, i, stateEmpty)
		writeSlotHashPrimary(seg, i, 0)
	}

	var liveCount int32

	for _, e := range snapshot {
		idx, outcome := findInsertSlot(seg, seed, e.key)
		if outcome == insertNoSpace {
			panic("shmkv: rehash could not place a previously-live entry; probe policy is broken")
		}

		writeSlotKey(seg, idx, e.key)
		writeSlotValue(seg, idx, e.value)
		writeSlotHashPrimary(seg, idx, primary(seed, e.key))
		writeSlotState(seg, idx, stateOccupied)
		liveCount++
	}

	writeHeaderCounts(seg, liveCount, 0)
}
