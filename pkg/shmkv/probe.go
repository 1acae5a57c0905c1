package shmkv

// Component C - probe engine.
//
// Probe formula at step s (0-indexed): pos_s = (primary + s*secondary) mod
// Capacity. Every key-addressed public op (add, update, upsert, get, remove,
// contains) locates its slot through findOccupied or findInsertSlot; Clear,
// BatchGet and Stats scan the slot array directly. Callers must already hold
// the appropriate table lock - no function here takes or releases one.

// findOccupied walks the probe sequence for key and returns the index of the
// Occupied slot holding it. Tombstones do not terminate the search; the
// first Empty slot does. If the full sequence is exhausted without finding
// key, ok is false.
func findOccupied(seg []byte, seed uint32, key int32) (idx int, ok bool) {
	p := primary(seed, key)
	step := secondary(seed, key)
	pos := p

	for range Capacity {
		i := int(pos)

		switch readSlotState(seg, i) {
		case stateEmpty:
			return 0, false
		case stateOccupied:
			if readSlotKey(seg, i) == key {
				return i, true
			}
		case stateTombstone:
			// Does not terminate the search.
		}

		pos = (pos + step) & capacityMask
	}

	return 0, false
}

// insertOutcome describes where findInsertSlot landed.
type insertOutcome int

const (
	insertAt      insertOutcome = iota // use the returned index
	insertDup                          // key already Occupied at the returned index
	insertNoSpace                      // no slot available anywhere on the sequence
)

// findInsertSlot walks the probe sequence for key, tracking the first
// Tombstone seen so a deleted slot on the path is reused ahead of extending
// into untouched Empty space.
func findInsertSlot(seg []byte, seed uint32, key int32) (idx int, outcome insertOutcome) {
	p := primary(seed, key)
	step := secondary(seed, key)
	pos := p

	firstTomb := -1

	for range Capacity {
		i := int(pos)

		switch readSlotState(seg, i) {
		case stateOccupied:
			if readSlotKey(seg, i) == key {
				return i, insertDup
			}
		case stateTombstone:
			if firstTomb < 0 {
				firstTomb = i
			}
		case stateEmpty:
			if firstTomb >= 0 {
				return firstTomb, insertAt
			}

			return i, insertAt
		}

		pos = (pos + step) & capacityMask
	}

	if firstTomb >= 0 {
		return firstTomb, insertAt
	}

	return 0, insertNoSpace
}

// probeDistance returns the 1-indexed step count s+1 at which key's probe
// sequence reaches idx. The start index is recomputed from key, not read
// from the slot's cached hash_primary. Used only by
// Stats; bounded by Capacity steps, which the table's invariants guarantee
// is always sufficient for an Occupied slot.
func probeDistance(seg []byte, seed uint32, idx int, key int32) int {
	p := primary(seed, key)
	step := secondary(seed, key)
	pos := p

	for s := 1; s <= Capacity; s++ {
		if int(pos) == idx {
			return s
		}

		pos = (pos + step) & capacityMask
	}

	return Capacity
}
