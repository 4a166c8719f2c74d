package aesdir

import (
	"os"
	"path/filepath"

	"github.com/absfs/absfs"
	"golang.org/x/exp/mmap"
)

// FileSystem is the part of absfs.FileSystem an FSDirectory needs. Any
// absfs filesystem, such as memfs, satisfies it.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error)
	Stat(name string) (os.FileInfo, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	MkdirAll(name string, perm os.FileMode) error
}

// osFS is a FileSystem rooted at a directory of the host filesystem
type osFS struct {
	root string
}

func newOSFS(root string) *osFS {
	return &osFS{root: root}
}

// realPath maps a slash separated name below the root to a host path
func (fs *osFS) realPath(name string) string {
	return filepath.Join(fs.root, filepath.FromSlash(name))
}

func (fs *osFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	path := fs.realPath(name)
	if flag&os.O_CREATE != 0 {
		// Ensure parent directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, flag, perm)
}

func (fs *osFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(fs.realPath(name))
}

func (fs *osFS) Remove(name string) error {
	return os.Remove(fs.realPath(name))
}

func (fs *osFS) Rename(oldpath, newpath string) error {
	return os.Rename(fs.realPath(oldpath), fs.realPath(newpath))
}

func (fs *osFS) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(fs.realPath(name), perm)
}

// mapFile memory-maps a file read-only
func (fs *osFS) mapFile(name string) (*mmap.ReaderAt, error) {
	return mmap.Open(fs.realPath(name))
}

// mapper is implemented by filesystems that can memory-map files
type mapper interface {
	mapFile(name string) (*mmap.ReaderAt, error)
}

// syncDir flushes directory metadata so a rename survives a crash
func (fs *osFS) syncDir(name string) error {
	d, err := os.Open(filepath.Dir(fs.realPath(name)))
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
