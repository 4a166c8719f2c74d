package aesdir

import (
	"github.com/awnumar/memguard"
)

// Passphrase holds a caller supplied passphrase in locked, guarded memory.
// It must be destroyed once it is no longer needed.
type Passphrase struct {
	buf *memguard.LockedBuffer
}

// NewPassphrase moves the passphrase bytes into guarded memory. The source
// slice is wiped.
func NewPassphrase(b []byte) *Passphrase {
	if len(b) == 0 {
		return &Passphrase{}
	}
	return &Passphrase{buf: memguard.NewBufferFromBytes(b)}
}

// Empty reports whether the passphrase has no bytes or was destroyed
func (p *Passphrase) Empty() bool {
	return p == nil || p.buf == nil || !p.buf.IsAlive() || p.buf.Size() == 0
}

// Bytes exposes the passphrase. The slice is only valid until Destroy.
func (p *Passphrase) Bytes() []byte {
	if p.Empty() {
		return nil
	}
	return p.buf.Bytes()
}

// Destroy wipes and releases the passphrase
func (p *Passphrase) Destroy() {
	if p != nil && p.buf != nil {
		p.buf.Destroy()
	}
}

// secretKey is a fixed-size key kept in guarded memory for the lifetime of
// its owner.
type secretKey struct {
	buf *memguard.LockedBuffer
}

// newSecretKey moves key into guarded memory and wipes the source slice
func newSecretKey(key []byte) *secretKey {
	return &secretKey{buf: memguard.NewBufferFromBytes(key)}
}

func (k *secretKey) alive() bool {
	return k != nil && k.buf != nil && k.buf.IsAlive()
}

func (k *secretKey) bytes() []byte {
	if !k.alive() {
		return nil
	}
	return k.buf.Bytes()
}

func (k *secretKey) destroy() {
	if k.alive() {
		k.buf.Destroy()
	}
}

// wipe zeroes a slice holding key material
func wipe(b []byte) {
	memguard.WipeBytes(b)
}
