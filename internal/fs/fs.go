// Package fs provides a narrow filesystem abstraction for the pieces of
// shmkv-admin that write outside the shared-memory segment itself: a
// one-instance-at-a-time lock guard and an atomic snapshot writer. The
// segment is addressed directly via mmap (see pkg/shmkv), never through
// this package.
//
// The main types are:
//   - [FS]: interface for the lock guard and atomic write shmkv-admin uses
//   - [Real]: production implementation using the [os] package
//
// Example usage:
//
//	real := fs.NewReal()
//	lock, err := real.Lock("snapshot.lock")
//	if err != nil {
//	    return err
//	}
//	defer lock.Close()
//
//	return real.WriteFileAtomic("snapshot.json", data, 0o644)
package fs

import (
	"io"
	"os"
)

// Locker represents a held file lock.
// Call [Locker.Close] to release the lock.
//
// Example:
//
//	lock, err := fs.NewReal().Lock("data.db")
//	if err != nil {
//	    return err // lock contention or timeout
//	}
//	defer lock.Close() // always release
//
//	// ... exclusive access to data.db ...
type Locker interface {
	io.Closer
}

// FS defines the filesystem operations shmkv-admin needs.
// [Real] is the production implementation, wrapping the [os] package.
type FS interface {
	// WriteFileAtomic writes data to a file atomically.
	// Uses a temp file + rename to prevent partial writes on crash.
	// This is safer than [os.WriteFile] for critical data.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// Lock acquires an exclusive file lock.
	// Blocks until the lock is acquired or returns error on timeout.
	// Call [Locker.Close] to release the lock.
	//
	// Used for coordinating access between processes.
	Lock(path string) (Locker, error)
}
