// Package aesdir encrypts the files of an index storage directory at rest.
//
// # Overview
//
// An EncryptedDirectory wraps any Directory and encrypts every file written
// through it. File contents are encrypted with a random 128-bit store key.
// The store key itself is kept in the key file seshat_index.key, wrapped
// under a key derived from the caller's passphrase.
//
// # Key File
//
//	version(1) ‖ iv(16) ‖ salt(16) ‖ mac(32) ‖ wrappedKey
//
// The wrapping key is PBKDF2-HMAC-SHA256(passphrase, salt) truncated to 16
// bytes. The store key is wrapped with AES-128-CBC and PKCS#7 padding. The
// MAC is HMAC-SHA256 over the wrapped key, keyed by the passphrase, and is
// checked before the key is unwrapped. A wrong passphrase and a modified key
// file fail the same way.
//
// # File Format
//
// Each content file is a random 16-byte IV followed by the AES-128-CBC
// ciphertext of the plaintext with PKCS#7 padding.
//
// # Basic Usage
//
//	raw, err := aesdir.OpenOSDirectory("/var/lib/index", nil)
//	if err != nil {
//	    return err
//	}
//	dir, err := aesdir.Open(raw, []byte("passphrase"), nil)
//	if err != nil {
//	    return err
//	}
//	defer dir.Close()
//
//	if err := dir.AtomicWrite("segments", data); err != nil {
//	    return err
//	}
//
// The first Open of a directory without a key file creates one. Later opens
// must use the same passphrase and the same key deriver settings.
//
// # Security Considerations
//
// Protected Against:
//   - Reading file contents without the passphrase
//   - Replacing or modifying the key file undetected
//
// Not Protected Against:
//   - Modification of content files; CBC is not authenticated and a changed
//     file may decrypt to garbage instead of failing
//   - File names, sizes and access patterns, which stay visible
//   - Memory inspection while a directory is open
//
// The passphrase and store key are held in memguard locked buffers and are
// wiped when no longer needed.
package aesdir
