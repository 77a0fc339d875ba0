package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	nonceLen = 12 // 96-bit nonce for GCM
	tagLen   = 16
)

// ErrAuthentication is returned when a ciphertext fails to verify. A wrong
// key and a tampered payload are deliberately indistinguishable.
var ErrAuthentication = errors.New("authentication failed")

// Encrypt encrypts plaintext with AES-256-GCM using a random 12-byte nonce,
// freshly generated per call. Returns nonce, ciphertext, and tag separately
// so callers can persist them as distinct fields.
func Encrypt(key, plaintext []byte) (nonce, ciphertext, tag []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce = make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ciphertext = sealed[:len(sealed)-tagLen]
	tag = sealed[len(sealed)-tagLen:]
	return nonce, ciphertext, tag, nil
}

// Decrypt reverses Encrypt. Returns ErrAuthentication if the tag does not
// verify; no partially decrypted bytes are ever returned.
func Decrypt(key, nonce, ciphertext, tag []byte) ([]byte, error) {
	if len(nonce) != nonceLen || len(tag) != tagLen {
		return nil, ErrAuthentication
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagLen)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return aead, nil
}
