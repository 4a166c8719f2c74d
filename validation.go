package aesdir

import (
	"fmt"
)

// Input validation helpers

// ValidateBuffer checks if a buffer is valid (non-nil and has expected size)
func ValidateBuffer(buf []byte, name string, minSize int) error {
	if buf == nil {
		return &ConfigurationError{
			Field:   name,
			Message: "buffer cannot be nil",
		}
	}
	if minSize > 0 && len(buf) < minSize {
		return &ConfigurationError{
			Field:   name,
			Value:   len(buf),
			Message: fmt.Sprintf("buffer too small: got %d bytes, need at least %d bytes", len(buf), minSize),
		}
	}
	return nil
}

// ValidateKey checks if a key has the correct size
func ValidateKey(key []byte, expectedSize int) error {
	if key == nil {
		return &ConfigurationError{
			Field:   "key",
			Message: "key cannot be nil",
			Err:     ErrInvalidKey,
		}
	}

	if len(key) != expectedSize {
		return &ConfigurationError{
			Field:   "key",
			Value:   len(key),
			Message: fmt.Sprintf("invalid key size: got %d bytes, expected %d bytes", len(key), expectedSize),
			Err:     ErrInvalidKey,
		}
	}

	return nil
}

// ValidateIV checks if an initialization vector matches the block size
func ValidateIV(iv []byte) error {
	if len(iv) != IVSize {
		return &ConfigurationError{
			Field:   "iv",
			Value:   len(iv),
			Message: fmt.Sprintf("invalid iv size: got %d bytes, expected %d bytes", len(iv), IVSize),
		}
	}
	return nil
}

// ValidateFilePath checks if a file path is valid (not empty)
func ValidateFilePath(path string) error {
	if path == "" {
		return &ConfigurationError{
			Field:   "path",
			Message: "file path cannot be empty",
		}
	}
	return nil
}

// validateContentName rejects names that must not be reached through the
// encrypting facade.
func validateContentName(name string) error {
	if err := ValidateFilePath(name); err != nil {
		return err
	}
	if isReservedName(name) {
		return &ConfigurationError{
			Field:   "path",
			Value:   name,
			Message: ErrReservedName.Error(),
			Err:     ErrReservedName,
		}
	}
	return nil
}
