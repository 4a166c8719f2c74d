package aesdir

import (
	"bytes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
)

// Encrypted file layout:
//
//	iv          16 bytes, random per file
//	ciphertext  CBC with PKCS#7 padding, at least one block

// streamBufferSize is how much ciphertext the decrypting reader pulls from
// its source at a time
const streamBufferSize = 32 * 1024

// encryptWriter encrypts everything written to it onto an underlying stream
type encryptWriter struct {
	w       io.WriteCloser
	mode    cipher.BlockMode
	bs      int
	pending []byte // plaintext not yet forming a full block
	out     []byte
	name    string
	err     error // sticky write error
	closed  bool
}

// NewEncryptWriter returns a writer that encrypts onto w with a fresh random
// IV read from rnd. Close pads and writes the final block exactly once, then
// closes w.
func NewEncryptWriter(w io.WriteCloser, block cipher.Block, rnd io.Reader) (io.WriteCloser, error) {
	ew, err := newEncryptWriter(w, block, rnd, "")
	if err != nil {
		return nil, err
	}
	return ew, nil
}

func newEncryptWriter(w io.WriteCloser, block cipher.Block, rnd io.Reader, name string) (*encryptWriter, error) {
	bs := block.BlockSize()
	iv := make([]byte, bs)
	if _, err := io.ReadFull(rnd, iv); err != nil {
		return nil, NewCryptoError("encrypt", name, fmt.Errorf("failed to generate iv: %w", err))
	}
	if _, err := w.Write(iv); err != nil {
		return nil, NewIOError("write", name, err)
	}

	return &encryptWriter{
		w:       w,
		mode:    cipher.NewCBCEncrypter(block, iv),
		bs:      bs,
		pending: make([]byte, 0, bs),
		name:    name,
	}, nil
}

// Write encrypts all complete blocks of p right away and keeps the rest
func (e *encryptWriter) Write(p []byte) (int, error) {
	if e.closed {
		return 0, NewIOError("write", e.name, ErrClosed)
	}
	if e.err != nil {
		return 0, e.err
	}

	n := len(p)
	if len(e.pending) > 0 {
		fill := e.bs - len(e.pending)
		if fill > len(p) {
			fill = len(p)
		}
		e.pending = append(e.pending, p[:fill]...)
		p = p[fill:]
		if len(e.pending) < e.bs {
			return n, nil
		}
		if err := e.emit(e.pending); err != nil {
			return 0, err
		}
		e.pending = e.pending[:0]
	}

	full := len(p) - len(p)%e.bs
	if full > 0 {
		if err := e.emit(p[:full]); err != nil {
			return 0, err
		}
	}
	e.pending = append(e.pending, p[full:]...)
	return n, nil
}

// emit encrypts block aligned plaintext and writes it out
func (e *encryptWriter) emit(plain []byte) error {
	if cap(e.out) < len(plain) {
		e.out = make([]byte, len(plain))
	}
	out := e.out[:len(plain)]
	e.mode.CryptBlocks(out, plain)
	if _, err := e.w.Write(out); err != nil {
		e.err = NewIOError("write", e.name, err)
		return e.err
	}
	return nil
}

// Close finalizes the padding and closes the underlying stream. It is safe
// to call more than once; only the first call writes.
func (e *encryptWriter) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	var finalErr error
	if e.err == nil {
		finalErr = e.emit(pkcs7Pad(e.pending, e.bs))
	} else {
		finalErr = e.err
	}
	wipe(e.pending)
	wipe(e.out)

	if err := e.w.Close(); err != nil && finalErr == nil {
		finalErr = NewIOError("close", e.name, err)
	}
	return finalErr
}

// decryptReader streams plaintext out of an encrypted source. The last
// ciphertext block is held back until EOF so its padding can be removed.
type decryptReader struct {
	r     io.Reader
	block cipher.Block
	mode  cipher.BlockMode
	bs    int
	in    []byte // ciphertext not yet decrypted
	out   []byte // plaintext ready to be returned
	chunk []byte
	name  string
	done  bool
	err   error
}

// NewDecryptReader returns a reader that decrypts r. Truncated input or bad
// padding is reported as a CryptoError from Read.
func NewDecryptReader(r io.Reader, block cipher.Block) io.Reader {
	return newDecryptReader(r, block, "")
}

func newDecryptReader(r io.Reader, block cipher.Block, name string) *decryptReader {
	return &decryptReader{
		r:     r,
		block: block,
		bs:    block.BlockSize(),
		chunk: make([]byte, streamBufferSize),
		name:  name,
	}
}

func (d *decryptReader) Read(p []byte) (int, error) {
	for len(d.out) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		if d.done {
			return 0, io.EOF
		}
		d.fill()
	}

	n := copy(p, d.out)
	d.out = d.out[n:]
	return n, nil
}

// fill reads the next chunk of ciphertext and decrypts what it can
func (d *decryptReader) fill() {
	n, err := d.r.Read(d.chunk)
	d.in = append(d.in, d.chunk[:n]...)

	if err != nil && !errors.Is(err, io.EOF) {
		d.err = NewIOError("read", d.name, err)
		return
	}
	eof := errors.Is(err, io.EOF)

	if d.mode == nil {
		if len(d.in) < d.bs {
			if eof {
				d.fail(ErrTruncated)
			}
			return
		}
		d.mode = cipher.NewCBCDecrypter(d.block, d.in[:d.bs])
		d.in = d.in[d.bs:]
	}

	if eof {
		d.finish()
		return
	}

	// keep the last full block (and any partial one) for later
	ready := len(d.in) - len(d.in)%d.bs - d.bs
	if ready <= 0 {
		return
	}
	plain := make([]byte, ready)
	d.mode.CryptBlocks(plain, d.in[:ready])
	d.in = append(d.in[:0], d.in[ready:]...)
	d.out = plain
}

// finish decrypts the held back tail and strips the padding
func (d *decryptReader) finish() {
	d.done = true
	if len(d.in) == 0 {
		d.fail(ErrTruncated)
		return
	}
	if len(d.in)%d.bs != 0 {
		d.fail(ErrInvalidCiphertext)
		return
	}
	plain := make([]byte, len(d.in))
	d.mode.CryptBlocks(plain, d.in)
	d.in = nil

	unpadded, err := pkcs7Unpad(plain, d.bs)
	if err != nil {
		d.fail(err)
		return
	}
	d.out = unpadded
}

func (d *decryptReader) fail(err error) {
	d.err = NewCryptoError("decrypt", d.name, err)
}

// EncryptBytes encrypts a whole buffer into the encrypted file layout
func EncryptBytes(block cipher.Block, rnd io.Reader, plaintext []byte) ([]byte, error) {
	return encryptBytes(block, rnd, plaintext, "")
}

func encryptBytes(block cipher.Block, rnd io.Reader, plaintext []byte, name string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(block.BlockSize()*2 + len(plaintext))
	w, err := newEncryptWriter(nopWriteCloser{&buf}, block, rnd, name)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecryptBytes decrypts a whole buffer in the encrypted file layout
func DecryptBytes(block cipher.Block, ciphertext []byte) ([]byte, error) {
	return decryptBytes(block, ciphertext, "")
}

func decryptBytes(block cipher.Block, ciphertext []byte, name string) ([]byte, error) {
	bs := block.BlockSize()
	if len(ciphertext) < 2*bs {
		return nil, NewCryptoError("decrypt", name, ErrTruncated)
	}
	if len(ciphertext)%bs != 0 {
		return nil, NewCryptoError("decrypt", name, ErrInvalidCiphertext)
	}

	plain := make([]byte, len(ciphertext)-bs)
	cipher.NewCBCDecrypter(block, ciphertext[:bs]).CryptBlocks(plain, ciphertext[bs:])
	out, err := pkcs7Unpad(plain, bs)
	if err != nil {
		return nil, NewCryptoError("decrypt", name, err)
	}
	return out, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
