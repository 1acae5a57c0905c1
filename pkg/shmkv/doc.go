// Package shmkv implements a fixed-capacity, cross-process key-value table
// backed by a POSIX shared-memory segment.
//
// Keys are 32-bit signed integers; values are short NUL-terminated byte
// strings bounded by [ValueCap]. The table uses open addressing with double
// hashing and lazy deletion (tombstones); a compaction pass (rehash-in-place)
// reclaims tombstones once the logical load crosses [MaxLoad].
//
// # Basic usage
//
//	tbl, err := shmkv.Open(shmkv.RWLockSegmentName, shmkv.BackendRWLock)
//	if err != nil {
//	    // segment bootstrap failure is fatal - do not proceed
//	}
//	defer tbl.Close()
//
//	err = tbl.Add(7001, []byte("hello"))
//	v, err := tbl.Get(7001)
//
// # Concurrency
//
//   - Multiple processes may attach to the same named segment concurrently.
//   - Reads ([Table.Get], [Table.Contains], [Table.Count], [Table.LoadFactor],
//     [Table.BatchGet], [Table.Stats]) take a shared lock and may run in
//     parallel with each other.
//   - Writes ([Table.Add], [Table.Update], [Table.Upsert], [Table.Remove],
//     [Table.Clear], [Table.BatchUpdate]) take an exclusive lock.
//   - The table never upgrades a held read lock to a write lock; callers must
//     release and reacquire.
//
// # Backends
//
// [BackendRWLock] is the primary backend: a process-shared reader/writer lock
// lets concurrent readers make progress. [BackendMutex] is a documented
// degradation that serializes readers behind a single process-shared mutex.
// Both backends are built on the Linux futex syscall.
//
// # Error handling
//
// Not-found, duplicate, and no-space outcomes are ordinary returned errors,
// never fatal - check them with [errors.Is] against [ErrNotFound],
// [ErrDuplicate], and [ErrNoSpace]. Failure to open or map the segment is
// fatal: the table's invariants cannot hold without a mapped segment, so
// [Open] returning an error means the process must not proceed.
package shmkv
