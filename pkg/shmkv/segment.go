//go:build linux

package shmkv

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Component E - segment bootstrap.
//
// Go has no shm_open wrapper in golang.org/x/sys/unix; on Linux, POSIX shared
// memory objects are tmpfs files under /dev/shm, and shm_open itself is
// implemented in glibc as exactly an open() under that prefix. Opening the
// path directly is the idiomatic substitute the example pack's own
// file-backed mmap code (open.go's createNewCache / mmapAndCreateCache)
// already models, just pointed at tmpfs instead of an arbitrary path.

// shmPath maps a POSIX shared-memory name (leading "/") onto its backing
// path under /dev/shm.
func shmPath(name string) string {
	return "/dev/shm/" + strings.TrimPrefix(name, "/")
}

// segment is a mapped, bootstrapped shared-memory region plus the identity
// of whether this process created it. Creator identity is local to each
// process and is never used for teardown (§5): the OS keeps the segment
// alive until an explicit cleanup call unlinks it, regardless of who
// created it or how many processes have since unmapped it.
type segment struct {
	data    []byte
	creator bool
}

// openSegment implements the eight-step bootstrap handshake of §4.7.
func openSegment(name string) (*segment, error) {
	path := shmPath(name)

	// Step 1: attempt to open READ|WRITE.
	fd, err := unix.Open(path, unix.O_RDWR, 0o666)
	if err == nil {
		return attachSegment(fd)
	}

	if err != unix.ENOENT {
		return nil, fmt.Errorf("%w: open %s: %w", ErrBootstrap, path, err)
	}

	// Step 2/3: create CREATE|EXCLUSIVE; on EEXIST another process won the
	// race, fall back to step 1.
	fd, err = unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0o666)
	if err == nil {
		return createSegment(fd)
	}

	if err == unix.EEXIST {
		fd, err = unix.Open(path, unix.O_RDWR, 0o666)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s after losing create race: %w", ErrBootstrap, path, err)
		}

		return attachSegment(fd)
	}

	return nil, fmt.Errorf("%w: create %s: %w", ErrBootstrap, path, err)
}

// createSegment runs the creator path: step 4 (size), step 5 (map), step 6
// (initialize and publish).
func createSegment(fd int) (*segment, error) {
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, segmentSize); err != nil {
		return nil, fmt.Errorf("%w: ftruncate: %w", ErrBootstrap, err)
	}

	data, err := unix.Mmap(fd, 0, segmentSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %w", ErrBootstrap, err)
	}

	initializeSegment(data)

	return &segment{data: data, creator: true}, nil
}

// attachSegment runs the non-creator path: step 5 (map), step 7 (wait for
// the creator's publication).
func attachSegment(fd int) (*segment, error) {
	defer unix.Close(fd)

	data, err := unix.Mmap(fd, 0, segmentSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %w", ErrBootstrap, err)
	}

	waitForInitialization(data)

	return &segment{data: data, creator: false}, nil
}

// initializeSegment performs the creator's one-time setup: zero counters,
// draw hash_seed, mark every slot Empty, construct both lock words, then
// publish initialized=true behind a release fence so attachers observe a
// fully-formed header or nothing at all.
func initializeSegment(data []byte) {
	writeHeaderCounts(data, 0, 0)
	writeHeaderHashSeed(data, rand.Uint32())

	for i := range Capacity {
		writeSlotState(data, i, stateEmpty)
		writeSlotHashPrimary(data, i, 0)
	}

	// table_rwlock and init_mutex both start unlocked (zero value).
	atomic.StoreUint32(wordAt(data, offHeaderRWLock), 0)
	atomic.StoreUint32(wordAt(data, offHeaderInitMutex), 0)

	// Release fence: every write above must be visible to any attacher that
	// observes initialized==true below.
	atomic.StoreUint32(wordAt(data, offHeaderInitialized), 1)
}

// waitForInitialization busy-waits on initialized==true with a 1ms sleep
// between polls, per §4.7 step 7. The atomic load pairs with the creator's
// atomic store as an acquire fence: once this returns, every write the
// creator made before publishing is visible here.
func waitForInitialization(data []byte) {
	word := wordAt(data, offHeaderInitialized)

	for atomic.LoadUint32(word) == 0 {
		time.Sleep(time.Millisecond)
	}
}

// unmap releases the mapping. It does not unlink the segment - see
// [Unlink].
func (s *segment) unmap() error {
	return unix.Munmap(s.data)
}

// Unlink removes the named shared-memory object. An absent segment is not
// an error (§4.7 step 8). This is the only operator-facing teardown: the
// core never unlinks on its own, because the segment is designed to outlive
// any individual process.
func Unlink(name string) error {
	err := unix.Unlink(shmPath(name))
	if err != nil && err != unix.ENOENT {
		return fmt.Errorf("%w: unlink %s: %w", ErrBootstrap, name, err)
	}

	return nil
}
