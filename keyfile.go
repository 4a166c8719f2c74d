package aesdir

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// KeyFile is the persisted record protecting the store key.
//
// Layout (no length prefixes, fields in this order):
//
//	version    1 byte
//	iv         16 bytes
//	salt       16 bytes
//	mac        32 bytes  HMAC-SHA256(passphrase, wrappedKey)
//	wrappedKey rest of the file
type KeyFile struct {
	Version    uint8  // Key file format version
	IV         []byte // IV used to wrap the store key
	Salt       []byte // Salt for wrapping key derivation
	MAC        []byte // Authentication tag over WrappedKey
	WrappedKey []byte // CBC encrypted, padded store key
}

// HeaderSize is the size of the fixed-width part of the key file
const HeaderSize = 1 + IVSize + SaltSize + MACSize

// NewKeyFile creates a key file record of the current version
func NewKeyFile(iv, salt, mac, wrappedKey []byte) *KeyFile {
	return &KeyFile{
		Version:    KeyFileVersion,
		IV:         iv,
		Salt:       salt,
		MAC:        mac,
		WrappedKey: wrappedKey,
	}
}

// Size returns the total size of the encoded key file in bytes
func (k *KeyFile) Size() int {
	return HeaderSize + len(k.WrappedKey)
}

// Bytes encodes the key file
func (k *KeyFile) Bytes() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, k.Size()))
	if _, err := k.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the key file to the given writer
func (k *KeyFile) WriteTo(w io.Writer) (int64, error) {
	if len(k.IV) != IVSize {
		return 0, fmt.Errorf("iv must be %d bytes, got %d", IVSize, len(k.IV))
	}
	if len(k.Salt) != SaltSize {
		return 0, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(k.Salt))
	}
	if len(k.MAC) != MACSize {
		return 0, fmt.Errorf("mac must be %d bytes, got %d", MACSize, len(k.MAC))
	}

	buf := make([]byte, 0, k.Size())
	buf = append(buf, k.Version)
	buf = append(buf, k.IV...)
	buf = append(buf, k.Salt...)
	buf = append(buf, k.MAC...)
	buf = append(buf, k.WrappedKey...)

	n, err := w.Write(buf)
	return int64(n), err
}

// ReadFrom reads the key file from the given reader. Short fixed-width
// fields and unknown versions are reported as a FormatError.
func (k *KeyFile) ReadFrom(r io.Reader) (int64, error) {
	var totalRead int64

	readField := func(field string, size int) ([]byte, error) {
		b := make([]byte, size)
		n, err := io.ReadFull(r, b)
		totalRead += int64(n)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = ErrTruncated
			}
			return nil, NewFormatError(KeyFileName, field, err)
		}
		return b, nil
	}

	version, err := readField("version", 1)
	if err != nil {
		return totalRead, err
	}
	k.Version = version[0]

	if k.Version != KeyFileVersion {
		return totalRead, NewFormatError(KeyFileName, "version",
			fmt.Errorf("%w: %d", ErrUnsupportedVersion, k.Version))
	}

	if k.IV, err = readField("iv", IVSize); err != nil {
		return totalRead, err
	}
	if k.Salt, err = readField("salt", SaltSize); err != nil {
		return totalRead, err
	}
	if k.MAC, err = readField("mac", MACSize); err != nil {
		return totalRead, err
	}

	k.WrappedKey, err = io.ReadAll(r)
	totalRead += int64(len(k.WrappedKey))
	if err != nil {
		return totalRead, NewFormatError(KeyFileName, "wrapped_key", err)
	}

	return totalRead, nil
}

// ParseKeyFile decodes an encoded key file
func ParseKeyFile(data []byte) (*KeyFile, error) {
	kf := &KeyFile{}
	if _, err := kf.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return kf, nil
}

// ReadKeyFile loads the key file of a directory without authenticating it.
// Only public fields are available; it needs no passphrase.
func ReadKeyFile(dir Directory) (*KeyFile, error) {
	if dir == nil {
		return nil, &ConfigurationError{Field: "directory", Message: ErrNilDirectory.Error(), Err: ErrNilDirectory}
	}
	data, err := dir.AtomicRead(KeyFileName)
	if err != nil {
		if IsIOError(err) {
			return nil, err
		}
		return nil, NewIOError("read", KeyFileName, err)
	}
	return ParseKeyFile(data)
}
