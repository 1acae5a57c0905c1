package shmkv

// makeSegment builds a process-local buffer laid out exactly like a mapped
// segment (header + Capacity slots), with every slot Empty and hash_seed
// set to seed. Tests for the byte-layout, probe, and rehash components
// operate directly on this buffer so they don't depend on an actual
// /dev/shm mapping (exercised separately by the linux-only table tests).
func makeSegment(seed uint32) []byte {
	seg := make([]byte, segmentSize)

	for i := range Capacity {
		writeSlotState(seg, i, stateEmpty)
	}

	writeHeaderHashSeed(seg, seed)
	writeHeaderCounts(seg, 0, 0)

	return seg
}

// occupy writes key/value directly into slot idx and marks it Occupied,
// bypassing findInsertSlot. Used to set up fixtures whose exact slot
// placement the test wants to control.
func occupy(seg []byte, idx int, seed uint32, key int32, value []byte) {
	writeSlotKey(seg, idx, key)
	writeSlotValue(seg, idx, value)
	writeSlotHashPrimary(seg, idx, primary(seed, key))
	writeSlotState(seg, idx, stateOccupied)
}
