package aesdir

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestConfigurationError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ConfigurationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &ConfigurationError{
				Field:   "verify_workers",
				Value:   -1,
				Message: "verify workers cannot be negative",
			},
			wantMsg: "configuration error: verify_workers: verify workers cannot be negative",
		},
		{
			name:    "without field",
			err:     &ConfigurationError{Message: "config cannot be nil"},
			wantMsg: "configuration error: config cannot be nil",
		},
		{
			name: "with wrapped error",
			err: &ConfigurationError{
				Field:   "passphrase",
				Message: ErrEmptyPassphrase.Error(),
				Err:     ErrEmptyPassphrase,
			},
			wantMsg: "configuration error: passphrase: passphrase cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ConfigurationError.Error() = %q, want %q", got, tt.wantMsg)
			}
			if tt.err.Err != nil {
				if unwrapped := tt.err.Unwrap(); unwrapped != tt.err.Err {
					t.Errorf("ConfigurationError.Unwrap() = %v, want %v", unwrapped, tt.err.Err)
				}
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "with path and field",
			err:     NewFormatError(KeyFileName, "salt", ErrTruncated),
			wantMsg: "format error: seshat_index.key (salt): truncated data",
		},
		{
			name:    "with path only",
			err:     &FormatError{Path: KeyFileName, Message: "bad"},
			wantMsg: "format error: seshat_index.key: bad",
		},
		{
			name:    "minimal",
			err:     &FormatError{Message: "bad"},
			wantMsg: "format error: bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("FormatError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestCryptoError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "with path",
			err:     NewCryptoError("decrypt", "doc1", ErrInvalidPadding),
			wantMsg: "decrypt error: doc1: invalid padding",
		},
		{
			name:    "without path",
			err:     NewCryptoError("unwrap", "", ErrInvalidCiphertext),
			wantMsg: "unwrap error: invalid ciphertext",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("CryptoError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestIOError(t *testing.T) {
	baseErr := errors.New("permission denied")

	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "with path",
			err:     NewIOError("read", "doc1", baseErr),
			wantMsg: "io error: read doc1: permission denied",
		},
		{
			name:    "operation only",
			err:     &IOError{Operation: "sync", Message: "failed to sync"},
			wantMsg: "io error: sync: failed to sync",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("IOError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestAuthenticationErrorMessage(t *testing.T) {
	err := NewAuthenticationError(KeyFileName, ErrMACMismatch)
	want := "authentication error: seshat_index.key: invalid MAC of the store key"
	if got := err.Error(); got != want {
		t.Errorf("AuthenticationError.Error() = %q, want %q", got, want)
	}
}

func TestErrorCheckers(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		isConfig  bool
		isFormat  bool
		isAuth    bool
		isCrypto  bool
		isIO      bool
		isFailure bool
	}{
		{
			name:     "configuration",
			err:      NewConfigurationError("field", nil, "bad"),
			isConfig: true,
		},
		{
			name:     "format",
			err:      NewFormatError(KeyFileName, "version", ErrUnsupportedVersion),
			isFormat: true,
		},
		{
			name:      "authentication",
			err:       NewAuthenticationError(KeyFileName, ErrMACMismatch),
			isAuth:    true,
			isFailure: true,
		},
		{
			name:      "crypto",
			err:       NewCryptoError("decrypt", "doc1", ErrInvalidPadding),
			isCrypto:  true,
			isFailure: true,
		},
		{
			name: "io",
			err:  NewIOError("read", "doc1", fs.ErrNotExist),
			isIO: true,
		},
		{
			name:     "wrapped crypto",
			err:      fmt.Errorf("context: %w", NewCryptoError("unwrap", "", ErrInvalidPadding)),
			isCrypto: true, isFailure: true,
		},
		{
			name: "plain",
			err:  errors.New("plain"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfigurationError(tt.err); got != tt.isConfig {
				t.Errorf("IsConfigurationError() = %v, want %v", got, tt.isConfig)
			}
			if got := IsFormatError(tt.err); got != tt.isFormat {
				t.Errorf("IsFormatError() = %v, want %v", got, tt.isFormat)
			}
			if got := IsAuthenticationError(tt.err); got != tt.isAuth {
				t.Errorf("IsAuthenticationError() = %v, want %v", got, tt.isAuth)
			}
			if got := IsCryptoError(tt.err); got != tt.isCrypto {
				t.Errorf("IsCryptoError() = %v, want %v", got, tt.isCrypto)
			}
			if got := IsIOError(tt.err); got != tt.isIO {
				t.Errorf("IsIOError() = %v, want %v", got, tt.isIO)
			}
			if got := IsAuthFailure(tt.err); got != tt.isFailure {
				t.Errorf("IsAuthFailure() = %v, want %v", got, tt.isFailure)
			}
		})
	}
}

func TestSentinelsThroughWrappers(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"not exist", NewIOError("read", "doc1", fs.ErrNotExist), fs.ErrNotExist},
		{"version", NewFormatError(KeyFileName, "version", fmt.Errorf("%w: 2", ErrUnsupportedVersion)), ErrUnsupportedVersion},
		{"mac", NewAuthenticationError(KeyFileName, ErrMACMismatch), ErrMACMismatch},
		{"padding", NewCryptoError("decrypt", "", ErrInvalidPadding), ErrInvalidPadding},
		{"lock", NewIOError("lock", KeyFileLock, ErrLockBusy), ErrLockBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
			}
		})
	}
}
