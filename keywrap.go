package aesdir

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// WrapKey encrypts the store key under the wrapping key with CBC and PKCS#7
// padding. The output is deterministic for the same inputs, so every store
// must use its own IV.
func WrapKey(newCipher BlockCipherFunc, storeKey, wrappingKey, iv []byte) ([]byte, error) {
	if err := ValidateKey(wrappingKey, KeySize); err != nil {
		return nil, err
	}
	if err := ValidateIV(iv); err != nil {
		return nil, err
	}

	block, err := newCipher(wrappingKey)
	if err != nil {
		return nil, NewCryptoError("wrap", "", fmt.Errorf("failed to create block cipher: %w", err))
	}

	padded := pkcs7Pad(storeKey, block.BlockSize())
	defer wipe(padded)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// UnwrapKey reverses WrapKey. A bad length or bad padding, which is what a
// wrong wrapping key produces, yields a CryptoError.
func UnwrapKey(newCipher BlockCipherFunc, ciphertext, wrappingKey, iv []byte) ([]byte, error) {
	if err := ValidateKey(wrappingKey, KeySize); err != nil {
		return nil, err
	}
	if err := ValidateIV(iv); err != nil {
		return nil, err
	}

	block, err := newCipher(wrappingKey)
	if err != nil {
		return nil, NewCryptoError("unwrap", "", fmt.Errorf("failed to create block cipher: %w", err))
	}

	bs := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, NewCryptoError("unwrap", "", ErrInvalidCiphertext)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plain, err := pkcs7Unpad(padded, bs)
	if err != nil {
		wipe(padded)
		return nil, NewCryptoError("unwrap", "", err)
	}

	key := make([]byte, len(plain))
	copy(key, plain)
	wipe(padded)
	return key, nil
}

// ComputeMAC returns the HMAC-SHA256 of the wrapped key, keyed by the raw
// passphrase.
func ComputeMAC(passphrase, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, passphrase)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

// VerifyMAC checks the tag in constant time. It must succeed before the
// ciphertext is handed to UnwrapKey.
func VerifyMAC(passphrase, ciphertext, expected []byte) bool {
	return hmac.Equal(ComputeMAC(passphrase, ciphertext), expected)
}
