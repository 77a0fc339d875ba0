package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	keyLen  = 32 // 256-bit
	saltLen = 32
)

// Params are the scrypt cost parameters recorded next to every salt so that
// files written under older defaults stay decryptable when defaults change.
type Params struct {
	N    int `json:"n"`
	R    int `json:"r"`
	P    int `json:"p"`
	Bits int `json:"bits"`
}

// DefaultParams returns the cost parameters used for newly derived keys.
func DefaultParams() Params {
	return Params{N: 32768, R: 8, P: 1, Bits: 256}
}

// Valid reports whether the parameters describe a key this package can derive.
func (p Params) Valid() bool {
	return p.N > 1 && p.N&(p.N-1) == 0 && p.R > 0 && p.P > 0 && p.Bits == keyLen*8
}

// DeriveKey derives a 256-bit key from password + salt using scrypt.
// The same function serves the vault master key and password-protected
// exports, parameterized identically.
func DeriveKey(password, salt []byte, params Params) ([]byte, error) {
	if !params.Valid() {
		return nil, fmt.Errorf("invalid kdf parameters n=%d r=%d p=%d bits=%d",
			params.N, params.R, params.P, params.Bits)
	}
	key, err := scrypt.Key(password, salt, params.N, params.R, params.P, params.Bits/8)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// GenerateSalt returns 32 bytes of cryptographically secure random data.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Zeroize overwrites key-bearing memory with zeros. Every path that discards
// a derived key must call it.
func Zeroize(b []byte) {
	unlockMemory(b)
	for i := range b {
		b[i] = 0
	}
}
