//go:build linux

package shmkv

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Component F - process-shared synchronization primitives.
//
// Both lock backends are built from one packed 32-bit state word living in
// the mapped segment (table_rwlock / init_mutex in the header) plus the
// Linux futex syscall, the idiom the packed intention-lock state word in
// the example pack's ilock.go uses for in-process CAS-retry locking,
// adapted here to block via FUTEX_WAIT/FUTEX_WAKE instead of sync.Cond so
// the wait queue is visible across process boundaries: the kernel, not a Go
// runtime structure, owns the waiters.
//
// rwLockState bit layout (top bit is the writer flag, the rest is the live
// reader count):
//
//	bit 31      writerHeld
//	bits 0-30   readerCount

const rwWriterBit uint32 = 1 << 31

// wordAt returns an atomic view of the 4 little-endian bytes at seg[off:].
// The segment is backed by mmap'd shared memory, so this pointer is valid
// for as long as the mapping lives; callers never retain it past a Table's
// lifetime.
func wordAt(seg []byte, off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&seg[off]))
}

func futexWait(word *uint32, expect uint32) {
	for {
		_, _, errno := unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(word)),
			uintptr(unix.FUTEX_WAIT), uintptr(expect), 0, 0, 0)
		// EAGAIN: value already changed, nothing to wait for. EINTR: retry.
		if errno == 0 || errno == unix.EAGAIN {
			return
		}
	}
}

func futexWake(word *uint32, n int) {
	unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(word)),
		uintptr(unix.FUTEX_WAKE), uintptr(n), 0, 0, 0)
}

// rwLock is a process-shared reader/writer lock living at a fixed offset in
// the mapped segment. It is the primary sync backend (§4.5): read ops take
// it shared and make progress concurrently; write ops take it exclusive
// against both other writers and all readers.
//
// Reentrant acquisition is not supported and must not be attempted - taking
// a second read or write lock on a thread that already holds one can
// self-deadlock exactly as a non-recursive mutex would.
type rwLock struct {
	word *uint32
}

func newRWLock(seg []byte, off int) *rwLock {
	return &rwLock{word: wordAt(seg, off)}
}

func (l *rwLock) rlock() {
	for {
		old := atomic.LoadUint32(l.word)
		if old&rwWriterBit != 0 {
			futexWait(l.word, old)

			continue
		}

		if atomic.CompareAndSwapUint32(l.word, old, old+1) {
			return
		}
	}
}

func (l *rwLock) runlock() {
	newVal := atomic.AddUint32(l.word, ^uint32(0)) // -1
	if newVal&^rwWriterBit == 0 {
		// Last reader gone: wake anything waiting to become the writer.
		futexWake(l.word, 1)
	}
}

func (l *rwLock) wlock() {
	for {
		old := atomic.LoadUint32(l.word)
		if old == 0 {
			if atomic.CompareAndSwapUint32(l.word, 0, rwWriterBit) {
				return
			}

			continue
		}

		futexWait(l.word, old)
	}
}

func (l *rwLock) wunlock() {
	atomic.StoreUint32(l.word, 0)
	futexWake(l.word, int(^uint32(0)>>1)) // wake all waiters (INT_MAX)
}

// procMutex is a plain process-shared mutex: the documented degradation for
// environments that configure BackendMutex. Readers and writers both take it
// exclusive, so concurrent readers serialize against each other - the only
// behavioral difference from rwLock, per §4.5.
type procMutex struct {
	word *uint32
}

func newProcMutex(seg []byte, off int) *procMutex {
	return &procMutex{word: wordAt(seg, off)}
}

func (m *procMutex) lock() {
	for {
		if atomic.CompareAndSwapUint32(m.word, 0, 1) {
			return
		}

		futexWait(m.word, 1)
	}
}

func (m *procMutex) unlock() {
	atomic.StoreUint32(m.word, 0)
	futexWake(m.word, 1)
}
