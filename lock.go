package aesdir

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// heldLocks tracks locks held by this process. Lock files alone do not
// exclude two handles of the same process on every filesystem.
var heldLocks = struct {
	sync.Mutex
	m map[string]struct{}
}{m: make(map[string]struct{})}

func claimLock(key string) bool {
	heldLocks.Lock()
	defer heldLocks.Unlock()
	if _, ok := heldLocks.m[key]; ok {
		return false
	}
	heldLocks.m[key] = struct{}{}
	return true
}

func unclaimLock(key string) {
	heldLocks.Lock()
	delete(heldLocks.m, key)
	heldLocks.Unlock()
}

// fileLock is a DirectoryLock backed by a lock file
type fileLock struct {
	key     string
	release func() error
	once    sync.Once
}

func (l *fileLock) Release() error {
	var err error
	l.once.Do(func() {
		err = l.release()
		unclaimLock(l.key)
	})
	return err
}

// AcquireLock takes the advisory lock named by lock. Blocking locks are
// retried with exponential backoff until Config.LockTimeout has passed.
func (d *FSDirectory) AcquireLock(lock Lock) (DirectoryLock, error) {
	if err := ValidateFilePath(lock.Name); err != nil {
		return nil, err
	}
	p, err := d.path(lock.Name)
	if err != nil {
		return nil, err
	}

	if !lock.Blocking {
		l, err := d.tryLock(p)
		if err != nil {
			return nil, d.wrapErr("lock", lock.Name, err)
		}
		return l, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = d.config.LockTimeout

	var held DirectoryLock
	op := func() error {
		l, err := d.tryLock(p)
		if err == nil {
			held = l
			return nil
		}
		if errors.Is(err, ErrLockBusy) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		d.log.WithField("lock", lock.Name).WithField("wait", wait).Debug("lock busy, retrying")
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, d.wrapErr("lock", lock.Name, err)
	}
	return held, nil
}

func (d *FSDirectory) tryLock(p string) (DirectoryLock, error) {
	key := d.lockKey(p)
	if !claimLock(key) {
		return nil, ErrLockBusy
	}
	release, err := d.lockFile(p)
	if err != nil {
		unclaimLock(key)
		return nil, err
	}
	return &fileLock{key: key, release: release}, nil
}

func (d *FSDirectory) lockKey(p string) string {
	if ofs, ok := d.fs.(*osFS); ok {
		return "os:" + ofs.realPath(p)
	}
	return fmt.Sprintf("%p:%s", d.fs, p)
}

// lockFile creates the on-disk side of a lock. Host directories use an OS
// file lock so other processes are excluded too.
func (d *FSDirectory) lockFile(p string) (func() error, error) {
	if ofs, ok := d.fs.(*osFS); ok {
		return lockOSFile(ofs.realPath(p))
	}

	f, err := d.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return func() error {
		if err := d.fs.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}, nil
}
