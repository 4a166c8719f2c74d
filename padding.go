package aesdir

import (
	"crypto/subtle"
)

// pkcs7Pad appends PKCS#7 padding to data; a full block is added when data
// is already block aligned.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// pkcs7Unpad strips PKCS#7 padding. The padding bytes are compared without
// data-dependent branches.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])

	good := subtle.ConstantTimeLessOrEq(1, n) & subtle.ConstantTimeLessOrEq(n, blockSize)
	last := data[len(data)-blockSize:]
	for i := 0; i < blockSize; i++ {
		// only bytes inside the padding need to equal n
		inPad := subtle.ConstantTimeLessOrEq(blockSize-i, n)
		eq := subtle.ConstantTimeByteEq(last[i], byte(n))
		good &= subtle.ConstantTimeSelect(inPad, eq, 1)
	}
	if good != 1 {
		return nil, ErrInvalidPadding
	}
	return data[:len(data)-n], nil
}
