package shmkv

import "encoding/binary"

// Component B - slot table layout.
//
// The on-segment layout is the cross-process contract: every attaching
// process reads and writes these exact byte offsets via encoding/binary,
// never a Go struct cast over the mapped region. That keeps the layout
// byte-identical regardless of per-process struct padding decisions and
// keeps the region free of pointers, which would be meaningless across
// address spaces.

// Slot state values. Stored as a little-endian uint32 at offSlotState.
const (
	stateEmpty     uint32 = 0
	stateOccupied  uint32 = 1
	stateTombstone uint32 = 2
)

// Byte offsets within one Slot record.
//
//	key          int32   @ offSlotKey
//	value        [ValueCap]byte (NUL-terminated) @ offSlotValue
//	state        uint32  @ offSlotState
//	hash_primary uint32  @ offSlotHashPrimary
const (
	offSlotKey         = 0
	offSlotValue       = offSlotKey + 4
	offSlotState       = offSlotValue + ValueCap
	offSlotHashPrimary = offSlotState + 4
	slotSize           = offSlotHashPrimary + 4 // 268 bytes
)

// Byte offsets within the SharedHeader, which lives at offset 0 of the
// segment and is immediately followed by the slot array at offHeaderSlots.
//
// table_rwlock and init_mutex are each a single packed uint32 futex word
// (see lockword.go); init_mutex is reserved per the bootstrap design (§4.7)
// and is never taken by any table operation.
const (
	offHeaderInitialized = 0
	offHeaderLiveCount   = offHeaderInitialized + 4
	offHeaderTombCount   = offHeaderLiveCount + 4
	offHeaderHashSeed    = offHeaderTombCount + 4
	offHeaderRWLock      = offHeaderHashSeed + 4
	offHeaderInitMutex   = offHeaderRWLock + 4
	// offHeaderReserved is one reserved 4-byte word ahead of the slot array;
	// it carries no meaning and is always zero.
	offHeaderReserved = offHeaderInitMutex + 4
	offHeaderSlots    = offHeaderReserved + 4
	headerSize        = offHeaderSlots // 28 bytes
)

// segmentSize is the fixed total size of the mapped region: the header plus
// Capacity slots. The table never resizes, so this is computed once and used
// for both ftruncate at creation and mmap length at every attach.
const segmentSize = headerSize + Capacity*slotSize

// slotOffset returns the byte offset of slot i within the segment.
func slotOffset(i int) int {
	return offHeaderSlots + i*slotSize
}

// readSlotKey reads the key field of slot i.
func readSlotKey(seg []byte, i int) int32 {
	off := slotOffset(i) + offSlotKey

	return int32(binary.LittleEndian.Uint32(seg[off:]))
}

// writeSlotKey writes the key field of slot i.
func writeSlotKey(seg []byte, i int, key int32) {
	off := slotOffset(i) + offSlotKey
	binary.LittleEndian.PutUint32(seg[off:], uint32(key))
}

// readSlotState reads the state field of slot i.
func readSlotState(seg []byte, i int) uint32 {
	off := slotOffset(i) + offSlotState

	return binary.LittleEndian.Uint32(seg[off:])
}

// writeSlotState writes the state field of slot i.
func writeSlotState(seg []byte, i int, state uint32) {
	off := slotOffset(i) + offSlotState
	binary.LittleEndian.PutUint32(seg[off:], state)
}

// readSlotHashPrimary reads the cached hash_primary field of slot i.
func readSlotHashPrimary(seg []byte, i int) uint32 {
	off := slotOffset(i) + offSlotHashPrimary

	return binary.LittleEndian.Uint32(seg[off:])
}

// writeSlotHashPrimary writes the cached hash_primary field of slot i.
func writeSlotHashPrimary(seg []byte, i int, h uint32) {
	off := slotOffset(i) + offSlotHashPrimary
	binary.LittleEndian.PutUint32(seg[off:], h)
}

// readSlotValue returns the value bytes of slot i up to, but not including,
// the first NUL. The returned slice is a copy owned by the caller.
func readSlotValue(seg []byte, i int) []byte {
	off := slotOffset(i) + offSlotValue
	raw := seg[off : off+ValueCap]

	n := 0
	for n < ValueCap && raw[n] != 0 {
		n++
	}

	out := make([]byte, n)
	copy(out, raw[:n])

	return out
}

// writeSlotValue writes value into slot i, NUL-terminating it. Callers must
// have validated len(value) < ValueCap before calling.
func writeSlotValue(seg []byte, i int, value []byte) {
	off := slotOffset(i) + offSlotValue
	dst := seg[off : off+ValueCap]

	n := copy(dst, value)
	dst[n] = 0

	for j := n + 1; j < ValueCap; j++ {
		dst[j] = 0
	}
}

// readHeaderCounts reads live_count and tomb_count.
func readHeaderCounts(seg []byte) (live, tomb int32) {
	live = int32(binary.LittleEndian.Uint32(seg[offHeaderLiveCount:]))
	tomb = int32(binary.LittleEndian.Uint32(seg[offHeaderTombCount:]))

	return live, tomb
}

func writeHeaderCounts(seg []byte, live, tomb int32) {
	binary.LittleEndian.PutUint32(seg[offHeaderLiveCount:], uint32(live))
	binary.LittleEndian.PutUint32(seg[offHeaderTombCount:], uint32(tomb))
}

func readHeaderHashSeed(seg []byte) uint32 {
	return binary.LittleEndian.Uint32(seg[offHeaderHashSeed:])
}

func writeHeaderHashSeed(seg []byte, seed uint32) {
	binary.LittleEndian.PutUint32(seg[offHeaderHashSeed:], seed)
}
