package aesdir

import (
	"io"
)

// Directory is the capability set a storage engine needs from the place its
// files live. FSDirectory implements it on plain storage and
// EncryptedDirectory implements it on top of another Directory, so the two
// are interchangeable.
type Directory interface {
	// OpenRead returns the full contents of a file
	OpenRead(name string) ([]byte, error)

	// OpenWrite creates or truncates a file and returns a stream for it.
	// The data is only complete once Close returns.
	OpenWrite(name string) (io.WriteCloser, error)

	// Delete removes a file
	Delete(name string) error

	// Exists reports whether a file exists
	Exists(name string) (bool, error)

	// AtomicRead reads a file written with AtomicWrite
	AtomicRead(name string) ([]byte, error)

	// AtomicWrite replaces a file so readers see either the old or the new
	// contents, never a mix
	AtomicWrite(name string, data []byte) error

	// Watch registers a callback invoked when files change
	Watch(cb WatchCallback) (WatchHandle, error)

	// AcquireLock takes an advisory lock
	AcquireLock(lock Lock) (DirectoryLock, error)
}

// WatchCallback is called with the name of a changed file
type WatchCallback func(name string)

// WatchHandle keeps a watch registration alive until closed
type WatchHandle interface {
	Close() error
}

// Lock describes an advisory lock
type Lock struct {
	Name     string // Lock file name inside the directory
	Blocking bool   // Wait for the lock instead of failing immediately
}

// DirectoryLock is a held lock
type DirectoryLock interface {
	// Release gives the lock up. Releasing twice is a no-op.
	Release() error
}
