package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Encrypt authenticate-encrypts plaintext under key (the HKDF output from
// DeriveSharedKey), returning nonce||ciphertext. chacha20poly1305 is used
// as the "equivalent AEAD" spec.md §4.1 explicitly allows in place of the
// Fernet (AES-128-CBC + HMAC-SHA256) construction; both are already
// self-authenticating, so a tag mismatch below always manifests as
// ErrDecryptionFailure, matching the Fernet-backed reference.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt. Any authentication failure is reported as
// ErrDecryptionFailure (spec.md §7), never a raw cipher package error, so
// callers can match it with errors.Is.
func Decrypt(key, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new aead: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrDecryptionFailure
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailure
	}
	return plaintext, nil
}
