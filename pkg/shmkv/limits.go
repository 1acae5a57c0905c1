package shmkv

// Capacity is the fixed slot count of the table. It must be a power of two:
// index arithmetic throughout the probe engine masks with Capacity-1 instead
// of taking a modulus.
const Capacity = 2048

// MaxLoad is the rehash trigger threshold, applied to (live+tombstones)/Capacity.
const MaxLoad = 0.75

// MaxLive is floor(Capacity * MaxLoad): the largest number of Occupied slots
// the table permits at once.
const MaxLive = int32(float64(Capacity) * MaxLoad)

// ValueCap is the fixed value byte budget, including the mandatory trailing
// NUL. Effective payload is therefore at most ValueCap-1 bytes.
const ValueCap = 256

// Segment names for the two lock backends. Both live under /dev/shm with
// permissions 0666 once created.
const (
	RWLockSegmentName = "/rwlock_optimized_status_memory"
	MutexSegmentName  = "/optimized_status_memory"
)

// rehashThreshold is the (live+tombstones)/Capacity ratio above which a
// writer compacts the table in place before performing an insert.
const rehashThreshold = MaxLoad
