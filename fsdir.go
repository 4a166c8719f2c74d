package aesdir

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/absfs/memfs"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FSDirectory implements Directory on top of an absfs filesystem, storing
// file contents as-is.
type FSDirectory struct {
	fs      FileSystem
	root    string
	config  *Config
	log     *logrus.Entry
	watches *watchRouter
	watcher *fsWatcher // host directories only
}

// NewFSDirectory creates a directory rooted at root inside fs. A nil config
// uses DefaultConfig.
func NewFSDirectory(fsys FileSystem, root string, config *Config) (*FSDirectory, error) {
	if fsys == nil {
		return nil, &ConfigurationError{Field: "filesystem", Message: "filesystem cannot be nil"}
	}
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	root = path.Clean("/" + root)
	if root != "/" {
		if err := fsys.MkdirAll(root, 0755); err != nil {
			return nil, NewIOError("mkdir", root, err)
		}
	}

	return &FSDirectory{
		fs:      fsys,
		root:    root,
		config:  config,
		log:     config.Logger.WithFields(logrus.Fields{"component": "fsdir", "dir": root}),
		watches: newWatchRouter(),
	}, nil
}

// NewMemDirectory creates an empty directory held in memory
func NewMemDirectory(config *Config) (*FSDirectory, error) {
	mfs, err := memfs.NewFS()
	if err != nil {
		return nil, fmt.Errorf("failed to create memory filesystem: %w", err)
	}
	return NewFSDirectory(mfs, "/", config)
}

// OpenOSDirectory opens an existing directory of the host filesystem. Reads
// are served from memory-mapped files and changes made by other processes
// are reported to watchers.
func OpenOSDirectory(dirPath string, config *Config) (*FSDirectory, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, NewIOError("open", dirPath, err)
	}
	if !info.IsDir() {
		return nil, NewConfigurationError("path", dirPath, "not a directory")
	}

	d, err := NewFSDirectory(newOSFS(dirPath), "/", config)
	if err != nil {
		return nil, err
	}
	d.log = d.log.WithField("dir", dirPath)

	w, err := newFSWatcher(dirPath, d.watches, d.log)
	if err != nil {
		return nil, NewIOError("watch", dirPath, err)
	}
	d.watcher = w
	return d, nil
}

// Close stops watching the host directory. Locks and watch handles are
// released by their own owners.
func (d *FSDirectory) Close() error {
	if d.watcher != nil {
		return d.watcher.Close()
	}
	return nil
}

// path resolves a name relative to the root and refuses names escaping it
func (d *FSDirectory) path(name string) (string, error) {
	p := path.Join(d.root, name)
	if p != d.root && !strings.HasPrefix(p, strings.TrimSuffix(d.root, "/")+"/") {
		return "", NewConfigurationError("path", name, "path escapes the directory root")
	}
	if p == d.root {
		return "", NewConfigurationError("path", name, "path names the directory root")
	}
	return p, nil
}

// wrapErr turns a filesystem error into an IOError that still matches
// fs.ErrNotExist when the file is missing.
func (d *FSDirectory) wrapErr(op, name string, err error) error {
	if err == nil {
		return nil
	}
	if IsConfigurationError(err) || IsIOError(err) {
		return err
	}
	if os.IsNotExist(err) && !errors.Is(err, fs.ErrNotExist) {
		err = fmt.Errorf("%w: %v", fs.ErrNotExist, err)
	}
	return NewIOError(op, name, err)
}

func (d *FSDirectory) ensureParent(p string) error {
	dir := path.Dir(p)
	if dir == d.root {
		return nil
	}
	return d.fs.MkdirAll(dir, 0755)
}

// OpenRead returns the full contents of a file
func (d *FSDirectory) OpenRead(name string) ([]byte, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}

	if m, ok := d.fs.(mapper); ok {
		data, err := readMapped(m, p)
		return data, d.wrapErr("read", name, err)
	}

	f, err := d.fs.OpenFile(p, os.O_RDONLY, 0)
	if err != nil {
		return nil, d.wrapErr("open", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, d.wrapErr("read", name, err)
	}
	return data, nil
}

func readMapped(m mapper, p string) ([]byte, error) {
	r, err := m.mapFile(p)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data := make([]byte, r.Len())
	if _, err := r.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return data, nil
}

// OpenWrite creates or truncates a file for writing
func (d *FSDirectory) OpenWrite(name string) (io.WriteCloser, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	if err := d.ensureParent(p); err != nil {
		return nil, d.wrapErr("mkdir", name, err)
	}

	f, err := d.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, d.wrapErr("open", name, err)
	}
	return f, nil
}

// Delete removes a file
func (d *FSDirectory) Delete(name string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	return d.wrapErr("delete", name, d.fs.Remove(p))
}

// Exists reports whether a file exists
func (d *FSDirectory) Exists(name string) (bool, error) {
	p, err := d.path(name)
	if err != nil {
		return false, err
	}
	_, err = d.fs.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) || errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, d.wrapErr("stat", name, err)
}

// AtomicRead reads a whole file
func (d *FSDirectory) AtomicRead(name string) ([]byte, error) {
	return d.OpenRead(name)
}

// AtomicWrite writes data to a temporary file and renames it over name
func (d *FSDirectory) AtomicWrite(name string, data []byte) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := d.ensureParent(p); err != nil {
		return d.wrapErr("mkdir", name, err)
	}

	tmp := path.Join(path.Dir(p), tmpPrefix+uuid.NewString())
	if err := d.writeFile(tmp, data); err != nil {
		d.fs.Remove(tmp)
		return d.wrapErr("write", name, err)
	}

	if err := d.rename(tmp, p); err != nil {
		d.fs.Remove(tmp)
		return d.wrapErr("rename", name, err)
	}

	if ofs, ok := d.fs.(*osFS); ok {
		if err := ofs.syncDir(p); err != nil {
			d.log.WithError(err).WithField("file", name).Debug("directory sync failed")
		}
	}

	// host directories learn about the change from fsnotify
	if d.watcher == nil {
		d.watches.notify(name)
	}
	return nil
}

func (d *FSDirectory) writeFile(p string, data []byte) error {
	f, err := d.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// rename moves tmp over p. Some filesystems refuse to rename onto an
// existing file; for those the target is removed first.
func (d *FSDirectory) rename(tmp, p string) error {
	err := d.fs.Rename(tmp, p)
	if err == nil {
		return nil
	}
	if _, statErr := d.fs.Stat(p); statErr != nil {
		return err
	}
	if rmErr := d.fs.Remove(p); rmErr != nil {
		return err
	}
	return d.fs.Rename(tmp, p)
}

// Watch registers a callback invoked with the name of every file replaced
// through AtomicWrite, and for host directories every file changed on disk.
func (d *FSDirectory) Watch(cb WatchCallback) (WatchHandle, error) {
	if cb == nil {
		return nil, &ConfigurationError{Field: "callback", Message: "watch callback cannot be nil"}
	}
	return d.watches.subscribe(cb), nil
}
