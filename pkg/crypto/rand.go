package crypto

import (
	"crypto/rand"
	"fmt"
)

// SeedSize is the length, in bytes, of a participant's private mask seed b.
const SeedSize = 32

// RandBytes draws n bytes of OS entropy, per spec.md §4.1's rand_bytes(n).
func RandBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("crypto: rand_bytes: %w", err)
	}
	return buf, nil
}
