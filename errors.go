package aesdir

import (
	"errors"
	"fmt"
)

// Error types represent different categories of errors

// ConfigurationError represents a configuration or parameter validation error
type ConfigurationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// FormatError represents a malformed or unsupported key file
type FormatError struct {
	Path    string // File path
	Field   string // Key file field being read, if applicable
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *FormatError) Error() string {
	if e.Path != "" && e.Field != "" {
		return fmt.Sprintf("format error: %s (%s): %s", e.Path, e.Field, e.Message)
	} else if e.Path != "" {
		return fmt.Sprintf("format error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("format error: %s", e.Message)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// AuthenticationError reports a key file whose MAC did not verify. The
// message is the same for a wrong passphrase and for a tampered file.
type AuthenticationError struct {
	Path    string // File path
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *AuthenticationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("authentication error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("authentication error: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// CryptoError represents an encryption or decryption failure
type CryptoError struct {
	Operation string // "encrypt", "decrypt", "wrap" or "unwrap"
	Path      string // File path, if applicable
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *CryptoError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error: %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Operation, e.Message)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// IOError represents a failure of the underlying directory
type IOError struct {
	Operation string // "read", "write", "open", "delete", "lock", etc.
	Path      string // File path
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Sentinel errors
var (
	ErrEmptyPassphrase    = errors.New("passphrase cannot be empty")
	ErrNilDirectory       = errors.New("directory cannot be nil")
	ErrUnsupportedVersion = errors.New("unsupported key file version")
	ErrTruncated          = errors.New("truncated data")
	ErrMACMismatch        = errors.New("invalid MAC of the store key")
	ErrInvalidPadding     = errors.New("invalid padding")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext")
	ErrInvalidKey         = errors.New("invalid key")
	ErrClosed             = errors.New("directory is closed")
	ErrLockBusy           = errors.New("lock is held by another owner")
	ErrReservedName       = errors.New("name is reserved for the key file")
)

// Helper functions for creating structured errors

// NewConfigurationError creates a new configuration error
func NewConfigurationError(field string, value any, message string) error {
	return &ConfigurationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewFormatError creates a new format error
func NewFormatError(path, field string, err error) error {
	return &FormatError{
		Path:    path,
		Field:   field,
		Message: err.Error(),
		Err:     err,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(path string, err error) error {
	return &AuthenticationError{
		Path:    path,
		Message: err.Error(),
		Err:     err,
	}
}

// NewCryptoError creates a new crypto error
func NewCryptoError(operation, path string, err error) error {
	return &CryptoError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, path string, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// Error checking helpers

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsFormatError checks if an error is a format error
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsCryptoError checks if an error is a crypto error
func IsCryptoError(err error) bool {
	var ce *CryptoError
	return errors.As(err, &ce)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsAuthFailure reports whether err means the data could not be
// authenticated or decrypted. Callers cannot tell a wrong passphrase from
// tampering, so both error kinds count.
func IsAuthFailure(err error) bool {
	return IsAuthenticationError(err) || IsCryptoError(err)
}
