//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package aesdir

import (
	"os"
	"path/filepath"
)

// lockOSFile creates path exclusively; an existing file means the lock is
// held.
func lockOSFile(path string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLockBusy
		}
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}
	return func() error {
		return os.Remove(path)
	}, nil
}
