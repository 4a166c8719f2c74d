package aesdir

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultPBKDF2Iterations is the iteration count used when none is configured.
const DefaultPBKDF2Iterations = 100000

// LegacyPBKDF2Iterations matches stores written by the legacy index
// encryption, which ran PBKDF2 with an iteration count equal to the key size.
const LegacyPBKDF2Iterations = KeySize

// KeyDeriver turns a passphrase and salt into a wrapping key.
// Implementations must be deterministic.
type KeyDeriver interface {
	// DeriveKey derives a KeySize wrapping key from the passphrase and salt
	DeriveKey(passphrase, salt []byte) ([]byte, error)
}

// PBKDF2Deriver derives wrapping keys with PBKDF2-HMAC-SHA256
type PBKDF2Deriver struct {
	Iterations int // Number of iterations (default DefaultPBKDF2Iterations)
}

// NewPBKDF2Deriver creates a PBKDF2 deriver, filling in the default iteration count
func NewPBKDF2Deriver(iterations int) *PBKDF2Deriver {
	if iterations == 0 {
		iterations = DefaultPBKDF2Iterations
	}
	return &PBKDF2Deriver{Iterations: iterations}
}

// DeriveKey derives the wrapping key from the passphrase and salt
func (p *PBKDF2Deriver) DeriveKey(passphrase, salt []byte) ([]byte, error) {
	iterations := p.Iterations
	if iterations == 0 {
		iterations = DefaultPBKDF2Iterations
	}
	if iterations < 0 {
		return nil, NewConfigurationError("iterations", iterations, "iterations cannot be negative")
	}
	return pbkdf2.Key(passphrase, salt, iterations, KeySize, sha256.New), nil
}

// String describes the deriver without revealing any secret
func (p *PBKDF2Deriver) String() string {
	return fmt.Sprintf("pbkdf2-sha256(iterations=%d)", p.Iterations)
}

// Argon2idParams contains parameters for Argon2id key derivation
type Argon2idParams struct {
	Memory      uint32 // Memory in KiB (e.g., 64*1024 for 64MB)
	Iterations  uint32 // Number of iterations (time parameter)
	Parallelism uint8  // Degree of parallelism
}

// Argon2idDeriver derives wrapping keys with Argon2id. The key file does not
// record the deriver, so a store created with it must always be reopened
// with the same parameters.
type Argon2idDeriver struct {
	params Argon2idParams
}

// NewArgon2idDeriver creates an Argon2id deriver with defaults for unset parameters
func NewArgon2idDeriver(params Argon2idParams) *Argon2idDeriver {
	if params.Memory == 0 {
		params.Memory = 64 * 1024 // 64 MB
	}
	if params.Iterations == 0 {
		params.Iterations = 3
	}
	if params.Parallelism == 0 {
		params.Parallelism = 4
	}
	return &Argon2idDeriver{params: params}
}

// DeriveKey derives the wrapping key from the passphrase and salt
func (a *Argon2idDeriver) DeriveKey(passphrase, salt []byte) ([]byte, error) {
	return argon2.IDKey(
		passphrase,
		salt,
		a.params.Iterations,
		a.params.Memory,
		a.params.Parallelism,
		KeySize,
	), nil
}

// String describes the deriver without revealing any secret
func (a *Argon2idDeriver) String() string {
	return fmt.Sprintf("argon2id(memory=%dKiB,iterations=%d,parallelism=%d)",
		a.params.Memory, a.params.Iterations, a.params.Parallelism)
}
