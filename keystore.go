package aesdir

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/sirupsen/logrus"
)

// createNewStore generates a fresh store key, wraps it under the passphrase
// and persists the key file. The key file is written with AtomicWrite, so a
// failure leaves no partial file behind.
func createNewStore(dir Directory, pass *Passphrase, cfg *Config) ([]byte, error) {
	if pass.Empty() {
		return nil, &ConfigurationError{Field: "passphrase", Message: ErrEmptyPassphrase.Error(), Err: ErrEmptyPassphrase}
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(cfg.Rand, salt); err != nil {
		return nil, NewCryptoError("create", KeyFileName, fmt.Errorf("failed to generate salt: %w", err))
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(cfg.Rand, iv); err != nil {
		return nil, NewCryptoError("create", KeyFileName, fmt.Errorf("failed to generate iv: %w", err))
	}
	storeKey := make([]byte, KeySize)
	if _, err := io.ReadFull(cfg.Rand, storeKey); err != nil {
		return nil, NewCryptoError("create", KeyFileName, fmt.Errorf("failed to generate store key: %w", err))
	}

	data, err := sealStoreKey(storeKey, pass, salt, iv, cfg)
	if err != nil {
		wipe(storeKey)
		return nil, err
	}

	if err := dir.AtomicWrite(KeyFileName, data); err != nil {
		wipe(storeKey)
		return nil, err
	}
	return storeKey, nil
}

// sealStoreKey wraps the store key and encodes the resulting key file
func sealStoreKey(storeKey []byte, pass *Passphrase, salt, iv []byte, cfg *Config) ([]byte, error) {
	wrappingKey, err := cfg.KeyDeriver.DeriveKey(pass.Bytes(), salt)
	if err != nil {
		return nil, err
	}
	defer wipe(wrappingKey)

	wrapped, err := WrapKey(cfg.BlockCipher, storeKey, wrappingKey, iv)
	if err != nil {
		return nil, err
	}
	mac := ComputeMAC(pass.Bytes(), wrapped)

	return NewKeyFile(iv, salt, mac, wrapped).Bytes()
}

// loadStoreKey authenticates an encoded key file with the passphrase and
// returns the unwrapped store key. The MAC is checked before anything is
// decrypted.
func loadStoreKey(data []byte, pass *Passphrase, cfg *Config) ([]byte, error) {
	if pass.Empty() {
		return nil, &ConfigurationError{Field: "passphrase", Message: ErrEmptyPassphrase.Error(), Err: ErrEmptyPassphrase}
	}

	kf, err := ParseKeyFile(data)
	if err != nil {
		return nil, err
	}

	if !VerifyMAC(pass.Bytes(), kf.WrappedKey, kf.MAC) {
		return nil, NewAuthenticationError(KeyFileName, ErrMACMismatch)
	}

	wrappingKey, err := cfg.KeyDeriver.DeriveKey(pass.Bytes(), kf.Salt)
	if err != nil {
		return nil, err
	}
	defer wipe(wrappingKey)

	storeKey, err := UnwrapKey(cfg.BlockCipher, kf.WrappedKey, wrappingKey, kf.IV)
	if err != nil {
		var ce *CryptoError
		if errors.As(err, &ce) {
			ce.Path = KeyFileName
		}
		return nil, err
	}
	if len(storeKey) != KeySize {
		wipe(storeKey)
		return nil, NewCryptoError("unwrap", KeyFileName,
			fmt.Errorf("%w: store key is %d bytes, expected %d", ErrInvalidKey, len(storeKey), KeySize))
	}
	return storeKey, nil
}

// openStoreKey loads the store key of dir, creating the store first if it
// has no key file yet. Both paths run under the key file lock so two
// processes opening a fresh directory agree on one store key.
func openStoreKey(dir Directory, pass *Passphrase, cfg *Config, log *logrus.Entry) ([]byte, error) {
	lock, err := dir.AcquireLock(Lock{Name: KeyFileLock, Blocking: true})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.WithError(err).Warn("failed to release key file lock")
		}
	}()

	data, err := dir.AtomicRead(KeyFileName)
	switch {
	case err == nil:
		key, err := loadStoreKey(data, pass, cfg)
		if err != nil {
			return nil, err
		}
		log.Info("loaded existing store key")
		return key, nil
	case errors.Is(err, fs.ErrNotExist):
		key, err := createNewStore(dir, pass, cfg)
		if err != nil {
			return nil, err
		}
		log.Info("created new store key")
		return key, nil
	default:
		if IsIOError(err) {
			return nil, err
		}
		return nil, NewIOError("read", KeyFileName, err)
	}
}
