// Package encryption implements the SDK's symmetric encryption primitives:
// HKDF-SHA256 key derivation and AES-256-GCM sealing with the nonce
// prepended to the ciphertext.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the derived key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// Overhead is the ciphertext expansion: nonce plus GCM tag.
	Overhead = NonceSize + 16
)

// DeriveKey derives a 32-byte key from parent using HKDF-SHA256. The info
// parts are joined with "/" to form the HKDF info string.
func DeriveKey(parent []byte, info ...string) ([]byte, error) {
	if len(parent) == 0 {
		return nil, fmt.Errorf("parent key is required for key derivation")
	}

	r := hkdf.New(sha256.New, parent, nil, []byte(strings.Join(info, "/")))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	return key, nil
}

// Encrypt seals data with AES-256-GCM under key, binding aad as additional
// authenticated data. The random nonce is prepended to the result.
func Encrypt(key, data, aad []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, data, aad), nil
}

// Decrypt opens data produced by Encrypt with the same key and aad.
func Decrypt(key, data, aad []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(data) < NonceSize {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(data))
	}

	plain, err := aead.Open(nil, data[:NonceSize], data[NonceSize:], aad)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plain, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("expected %d-byte key, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
