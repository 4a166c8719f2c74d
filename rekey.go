package aesdir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ChangePassphrase wraps the store key under a new passphrase with a fresh
// salt and IV and replaces the key file. File contents are not rewritten;
// they stay readable because the store key does not change. The new
// passphrase slice is wiped.
func (d *EncryptedDirectory) ChangePassphrase(newPassphrase []byte) error {
	pass := NewPassphrase(newPassphrase)
	defer pass.Destroy()

	if pass.Empty() {
		return &ConfigurationError{Field: "passphrase", Message: ErrEmptyPassphrase.Error(), Err: ErrEmptyPassphrase}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.storeKey.alive() {
		return NewIOError("rekey", KeyFileName, ErrClosed)
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(d.config.Rand, salt); err != nil {
		return NewCryptoError("rekey", KeyFileName, fmt.Errorf("failed to generate salt: %w", err))
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(d.config.Rand, iv); err != nil {
		return NewCryptoError("rekey", KeyFileName, fmt.Errorf("failed to generate iv: %w", err))
	}

	data, err := sealStoreKey(d.storeKey.bytes(), pass, salt, iv, d.config)
	if err != nil {
		return err
	}

	lock, err := d.raw.AcquireLock(Lock{Name: KeyFileLock, Blocking: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			d.log.WithError(err).Warn("failed to release key file lock")
		}
	}()

	if err := d.raw.AtomicWrite(KeyFileName, data); err != nil {
		return err
	}
	d.log.Info("changed passphrase")
	return nil
}

// VerifyFile checks that name decrypts with the store key. The plaintext is
// discarded.
func (d *EncryptedDirectory) VerifyFile(name string) error {
	data, err := d.OpenRead(name)
	wipe(data)
	return err
}

// VerifyFiles checks many files concurrently and returns the sorted names
// that failed to decrypt. The error is non-nil only when ctx ends or the
// directory is closed; per-file failures are logged and reported in the
// returned names.
func (d *EncryptedDirectory) VerifyFiles(ctx context.Context, names []string) ([]string, error) {
	var (
		mu     sync.Mutex
		failed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.VerifyWorkers)

	for _, name := range names {
		name := name
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := d.VerifyFile(name)
			if err == nil {
				return nil
			}
			if errors.Is(err, ErrClosed) {
				return err
			}
			d.log.WithError(err).WithField("file", name).Warn("file failed verification")
			mu.Lock()
			failed = append(failed, name)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	sort.Strings(failed)
	return failed, err
}
