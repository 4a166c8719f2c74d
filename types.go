package aesdir

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// KeyFileName is the name of the key file inside every encrypted directory
	KeyFileName = "seshat_index.key"

	// KeyFileLock is the lock taken while the key file is created or replaced
	KeyFileLock = ".seshat_index.key.lock"

	// KeyFileVersion is the only supported key file format version
	KeyFileVersion = uint8(1)

	// KeySize is the size of the wrapping key and the store key (AES-128)
	KeySize = 16

	// SaltSize is the size of the key derivation salt
	SaltSize = 16

	// IVSize is the size of a CBC initialization vector
	IVSize = aes.BlockSize

	// MACSize is the size of the HMAC-SHA256 tag over the wrapped key
	MACSize = 32

	// DefaultLockTimeout bounds how long a blocking lock is retried
	DefaultLockTimeout = 10 * time.Second

	// DefaultVerifyWorkers is the default parallelism of VerifyFiles
	DefaultVerifyWorkers = 4
)

// BlockCipherFunc creates a block cipher from a key. aes.NewCipher is the
// default; any 16-byte-block cipher can be substituted.
type BlockCipherFunc func(key []byte) (cipher.Block, error)

// Config contains configuration for an encrypted directory
type Config struct {
	// KeyDeriver turns the passphrase into the wrapping key
	KeyDeriver KeyDeriver

	// BlockCipher builds the cipher used for key wrapping and file contents
	BlockCipher BlockCipherFunc

	// Rand is the source for salts, IVs and the store key
	Rand io.Reader

	// Logger receives operational logs; secrets are never logged
	Logger *logrus.Logger

	// LockTimeout bounds retries of blocking locks
	LockTimeout time.Duration

	// VerifyWorkers is the number of files VerifyFiles checks concurrently
	VerifyWorkers int
}

// DefaultConfig returns a configuration with every field set to its default
func DefaultConfig() *Config {
	return (&Config{}).withDefaults()
}

// withDefaults returns a copy of the config with unset fields filled in
func (c *Config) withDefaults() *Config {
	out := &Config{}
	if c != nil {
		*out = *c
	}
	if out.KeyDeriver == nil {
		out.KeyDeriver = NewPBKDF2Deriver(DefaultPBKDF2Iterations)
	}
	if out.BlockCipher == nil {
		out.BlockCipher = aes.NewCipher
	}
	if out.Rand == nil {
		out.Rand = rand.Reader
	}
	if out.Logger == nil {
		out.Logger = newDefaultLogger()
	}
	if out.LockTimeout == 0 {
		out.LockTimeout = DefaultLockTimeout
	}
	if out.VerifyWorkers == 0 {
		out.VerifyWorkers = DefaultVerifyWorkers
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return NewConfigurationError("config", nil, "config cannot be nil")
	}
	if c.LockTimeout < 0 {
		return NewConfigurationError("lock_timeout", c.LockTimeout, "lock timeout cannot be negative")
	}
	if c.VerifyWorkers < 0 {
		return NewConfigurationError("verify_workers", c.VerifyWorkers, "verify workers cannot be negative")
	}
	if c.VerifyWorkers > 1024 {
		return NewConfigurationError("verify_workers", c.VerifyWorkers, "verify workers must not exceed 1024")
	}
	if p, ok := c.KeyDeriver.(*PBKDF2Deriver); ok && p.Iterations < 0 {
		return NewConfigurationError("iterations", p.Iterations, "iterations cannot be negative")
	}
	return nil
}

func newDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return logger
}
