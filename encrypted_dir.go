package aesdir

import (
	"crypto/cipher"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// EncryptedDirectory wraps a Directory and encrypts every file written
// through it with the store key unlocked at Open.
type EncryptedDirectory struct {
	raw      Directory
	config   *Config
	log      *logrus.Entry
	mu       sync.RWMutex
	storeKey *secretKey // nil once closed
	owned    io.Closer  // raw directory opened by OpenPath
}

var (
	_ Directory = (*EncryptedDirectory)(nil)
	_ Directory = (*FSDirectory)(nil)
)

// Open unlocks raw with the passphrase. A directory without a key file is
// initialized with a new random store key. The passphrase slice is wiped
// before Open returns, whether it succeeds or not.
//
// An empty passphrase is rejected before raw is touched.
func Open(raw Directory, passphrase []byte, config *Config) (*EncryptedDirectory, error) {
	pass := NewPassphrase(passphrase)
	defer pass.Destroy()

	if pass.Empty() {
		return nil, &ConfigurationError{Field: "passphrase", Message: ErrEmptyPassphrase.Error(), Err: ErrEmptyPassphrase}
	}
	if raw == nil {
		return nil, &ConfigurationError{Field: "directory", Message: ErrNilDirectory.Error(), Err: ErrNilDirectory}
	}

	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := config.Logger.WithField("component", "encrypted_dir")

	key, err := openStoreKey(raw, pass, config, log)
	if err != nil {
		log.WithError(err).Debug("failed to unlock directory")
		return nil, err
	}

	return &EncryptedDirectory{
		raw:      raw,
		config:   config,
		log:      log,
		storeKey: newSecretKey(key),
	}, nil
}

// OpenPath opens an existing host directory and unlocks it. Closing the
// returned directory also closes the host directory.
func OpenPath(dirPath string, passphrase []byte, config *Config) (*EncryptedDirectory, error) {
	if len(passphrase) == 0 {
		return nil, &ConfigurationError{Field: "passphrase", Message: ErrEmptyPassphrase.Error(), Err: ErrEmptyPassphrase}
	}

	raw, err := OpenOSDirectory(dirPath, config)
	if err != nil {
		wipe(passphrase)
		return nil, err
	}
	d, err := Open(raw, passphrase, config)
	if err != nil {
		raw.Close()
		return nil, err
	}
	d.owned = raw
	d.log = d.log.WithField("dir", dirPath)
	return d, nil
}

// Raw returns the underlying directory
func (d *EncryptedDirectory) Raw() Directory {
	return d.raw
}

// block builds the content cipher. Callers hold d.mu.
func (d *EncryptedDirectory) block(name string) (cipher.Block, error) {
	if !d.storeKey.alive() {
		return nil, NewIOError("use", name, ErrClosed)
	}
	b, err := d.config.BlockCipher(d.storeKey.bytes())
	if err != nil {
		return nil, NewCryptoError("cipher", name, err)
	}
	return b, nil
}

// OpenRead reads and decrypts a whole file
func (d *EncryptedDirectory) OpenRead(name string) ([]byte, error) {
	if err := validateContentName(name); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	block, err := d.block(name)
	if err != nil {
		return nil, err
	}
	data, err := d.raw.OpenRead(name)
	if err != nil {
		return nil, err
	}
	return decryptBytes(block, data, name)
}

// OpenWrite returns a stream that encrypts onto name. The final block is
// written by Close.
func (d *EncryptedDirectory) OpenWrite(name string) (io.WriteCloser, error) {
	if err := validateContentName(name); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	block, err := d.block(name)
	if err != nil {
		return nil, err
	}
	w, err := d.raw.OpenWrite(name)
	if err != nil {
		return nil, err
	}
	ew, err := newEncryptWriter(w, block, d.config.Rand, name)
	if err != nil {
		w.Close()
		return nil, err
	}
	return ew, nil
}

// AtomicRead reads and decrypts a file written with AtomicWrite
func (d *EncryptedDirectory) AtomicRead(name string) ([]byte, error) {
	if err := validateContentName(name); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	block, err := d.block(name)
	if err != nil {
		return nil, err
	}
	data, err := d.raw.AtomicRead(name)
	if err != nil {
		return nil, err
	}
	return decryptBytes(block, data, name)
}

// AtomicWrite encrypts data and atomically replaces name with it
func (d *EncryptedDirectory) AtomicWrite(name string, data []byte) error {
	if err := validateContentName(name); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	block, err := d.block(name)
	if err != nil {
		return err
	}
	ciphertext, err := encryptBytes(block, d.config.Rand, data, name)
	if err != nil {
		return err
	}
	return d.raw.AtomicWrite(name, ciphertext)
}

// Delete removes a file. The key file cannot be deleted this way.
func (d *EncryptedDirectory) Delete(name string) error {
	if err := validateContentName(name); err != nil {
		return err
	}
	return d.raw.Delete(name)
}

// Exists reports whether a file exists
func (d *EncryptedDirectory) Exists(name string) (bool, error) {
	return d.raw.Exists(name)
}

// Watch registers cb with the underlying directory
func (d *EncryptedDirectory) Watch(cb WatchCallback) (WatchHandle, error) {
	return d.raw.Watch(cb)
}

// AcquireLock takes an advisory lock on the underlying directory
func (d *EncryptedDirectory) AcquireLock(lock Lock) (DirectoryLock, error) {
	return d.raw.AcquireLock(lock)
}

// Close destroys the store key. Later content operations fail with
// ErrClosed. Calling Close again is a no-op.
func (d *EncryptedDirectory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.storeKey.alive() {
		return nil
	}
	d.storeKey.destroy()
	d.storeKey = nil

	if d.owned != nil {
		return d.owned.Close()
	}
	return nil
}

// isReservedName reports names the facade keeps away from content access
func isReservedName(name string) bool {
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	return clean == KeyFileName || clean == KeyFileLock
}
