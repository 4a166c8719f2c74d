package aesdir

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/absfs/memfs"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return &Config{
		KeyDeriver:  NewPBKDF2Deriver(LegacyPBKDF2Iterations),
		Logger:      logger,
		LockTimeout: 200 * time.Millisecond,
	}
}

func newTestMemDir(t *testing.T) *FSDirectory {
	t.Helper()
	dir, err := NewMemDirectory(testConfig(t))
	require.NoError(t, err)
	return dir
}

func newTestOSDir(t *testing.T) (*FSDirectory, string) {
	t.Helper()
	root := t.TempDir()
	dir, err := OpenOSDirectory(root, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { dir.Close() })
	return dir, root
}

// forEachDir runs fn against an in-memory and a host directory
func forEachDir(t *testing.T, fn func(t *testing.T, dir *FSDirectory)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, newTestMemDir(t))
	})
	t.Run("os", func(t *testing.T) {
		dir, _ := newTestOSDir(t)
		fn(t, dir)
	})
}

func TestFSDirectory_ReadWrite(t *testing.T) {
	forEachDir(t, func(t *testing.T, dir *FSDirectory) {
		w, err := dir.OpenWrite("doc1")
		require.NoError(t, err)
		_, err = w.Write([]byte("hello"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		data, err := dir.OpenRead("doc1")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)

		ok, err := dir.Exists("doc1")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, dir.Delete("doc1"))
		ok, err = dir.Exists("doc1")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestFSDirectory_AtomicWrite(t *testing.T) {
	forEachDir(t, func(t *testing.T, dir *FSDirectory) {
		require.NoError(t, dir.AtomicWrite("meta.json", []byte("v1")))
		require.NoError(t, dir.AtomicWrite("meta.json", []byte("version two")))

		data, err := dir.AtomicRead("meta.json")
		require.NoError(t, err)
		assert.Equal(t, []byte("version two"), data)

		require.NoError(t, dir.AtomicWrite("segments/0001", []byte("nested")))
		data, err = dir.AtomicRead("segments/0001")
		require.NoError(t, err)
		assert.Equal(t, []byte("nested"), data)
	})
}

func TestFSDirectory_EmptyFile(t *testing.T) {
	forEachDir(t, func(t *testing.T, dir *FSDirectory) {
		require.NoError(t, dir.AtomicWrite("empty", nil))
		data, err := dir.OpenRead("empty")
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestFSDirectory_NotExist(t *testing.T) {
	forEachDir(t, func(t *testing.T, dir *FSDirectory) {
		_, err := dir.OpenRead("missing")
		require.Error(t, err)
		assert.True(t, IsIOError(err))
		assert.True(t, errors.Is(err, fs.ErrNotExist))

		_, err = dir.AtomicRead("missing")
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})
}

func TestFSDirectory_PathEscape(t *testing.T) {
	mfs, err := memfs.NewFS()
	require.NoError(t, err)
	dir, err := NewFSDirectory(mfs, "/index", testConfig(t))
	require.NoError(t, err)

	for _, name := range []string{"../outside", "a/../../outside", ".", "/", "../index"} {
		_, err := dir.OpenRead(name)
		assert.True(t, IsConfigurationError(err), "name %q: %v", name, err)
	}

	require.NoError(t, dir.AtomicWrite("/doc1", []byte("x")))
	ok, err := dir.Exists("doc1")
	require.NoError(t, err)
	assert.True(t, ok, "leading slash resolves inside the root")
}

func TestFSDirectory_NoTempFilesLeft(t *testing.T) {
	dir, root := newTestOSDir(t)
	require.NoError(t, dir.AtomicWrite("meta.json", []byte("data")))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"meta.json"}, names)
}

func TestOpenOSDirectory_Errors(t *testing.T) {
	_, err := OpenOSDirectory(filepath.Join(t.TempDir(), "missing"), testConfig(t))
	assert.True(t, IsIOError(err))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))
	_, err = OpenOSDirectory(file, testConfig(t))
	assert.True(t, IsConfigurationError(err))
}

func TestNewFSDirectory_NilFilesystem(t *testing.T) {
	_, err := NewFSDirectory(nil, "/", nil)
	assert.True(t, IsConfigurationError(err))
}

func TestFSDirectory_LockExclusive(t *testing.T) {
	forEachDir(t, func(t *testing.T, dir *FSDirectory) {
		lock, err := dir.AcquireLock(Lock{Name: "write.lock"})
		require.NoError(t, err)

		_, err = dir.AcquireLock(Lock{Name: "write.lock"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLockBusy))

		other, err := dir.AcquireLock(Lock{Name: "other.lock"})
		require.NoError(t, err)
		require.NoError(t, other.Release())

		require.NoError(t, lock.Release())
		require.NoError(t, lock.Release(), "second release is a no-op")

		again, err := dir.AcquireLock(Lock{Name: "write.lock"})
		require.NoError(t, err)
		require.NoError(t, again.Release())
	})
}

func TestFSDirectory_LockBlockingTimeout(t *testing.T) {
	dir := newTestMemDir(t)
	lock, err := dir.AcquireLock(Lock{Name: "write.lock"})
	require.NoError(t, err)
	defer lock.Release()

	start := time.Now()
	_, err = dir.AcquireLock(Lock{Name: "write.lock", Blocking: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockBusy))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestFSDirectory_LockBlockingWaits(t *testing.T) {
	dir := newTestMemDir(t)
	dir.config.LockTimeout = 5 * time.Second

	lock, err := dir.AcquireLock(Lock{Name: "write.lock"})
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		lock.Release()
	}()

	got, err := dir.AcquireLock(Lock{Name: "write.lock", Blocking: true})
	require.NoError(t, err)
	require.NoError(t, got.Release())
}

func TestFSDirectory_LockSharedAcrossHandles(t *testing.T) {
	root := t.TempDir()
	a, err := OpenOSDirectory(root, testConfig(t))
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenOSDirectory(root, testConfig(t))
	require.NoError(t, err)
	defer b.Close()

	lock, err := a.AcquireLock(Lock{Name: KeyFileLock})
	require.NoError(t, err)
	_, err = b.AcquireLock(Lock{Name: KeyFileLock})
	assert.True(t, errors.Is(err, ErrLockBusy))
	require.NoError(t, lock.Release())

	lock, err = b.AcquireLock(Lock{Name: KeyFileLock})
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestFSDirectory_LockEmptyName(t *testing.T) {
	dir := newTestMemDir(t)
	_, err := dir.AcquireLock(Lock{})
	assert.True(t, IsConfigurationError(err))
}

func TestFSDirectory_WatchMemory(t *testing.T) {
	dir := newTestMemDir(t)

	var (
		mu    sync.Mutex
		names []string
	)
	h, err := dir.Watch(func(name string) {
		mu.Lock()
		names = append(names, name)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, dir.AtomicWrite("meta.json", []byte("1")))
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	require.NoError(t, dir.AtomicWrite("meta.json", []byte("2")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"meta.json"}, names)
	assert.Equal(t, 0, dir.watches.len())
}

func TestFSDirectory_WatchOS(t *testing.T) {
	dir, root := newTestOSDir(t)

	seen := make(chan string, 64)
	h, err := dir.Watch(func(name string) {
		select {
		case seen <- name:
		default:
		}
	})
	require.NoError(t, err)
	defer h.Close()

	// a change made behind the directory's back
	require.NoError(t, os.WriteFile(filepath.Join(root, "external"), []byte("x"), 0600))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case name := <-seen:
			assert.False(t, isInternalName(name), "internal name %q reported", name)
			if name == "external" {
				return
			}
		case <-timeout:
			t.Fatal("no watch event for external change")
		}
	}
}

func TestFSDirectory_WatchNilCallback(t *testing.T) {
	dir := newTestMemDir(t)
	_, err := dir.Watch(nil)
	assert.True(t, IsConfigurationError(err))
}

func TestIsInternalName(t *testing.T) {
	assert.True(t, isInternalName(tmpPrefix+"abc"))
	assert.True(t, isInternalName("sub/"+tmpPrefix+"abc"))
	assert.True(t, isInternalName(KeyFileLock))
	assert.False(t, isInternalName(KeyFileName))
	assert.False(t, isInternalName("doc1"))
}
