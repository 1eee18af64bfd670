package wire

import (
	"errors"
	"fmt"

	"github.com/flwr-org/secagg/pkg/crypto"
	"github.com/flwr-org/secagg/pkg/secagg"
)

// SealSharePacket encrypts plaintext under key and wraps it in a
// SharePacket envelope addressed from source to destination (spec.md §4.4
// H2 step 7).
func SealSharePacket(key []byte, source, destination secagg.ID, plaintext SharePlaintext) (SharePacket, error) {
	encoded, err := Marshal(plaintext)
	if err != nil {
		return SharePacket{}, err
	}
	ciphertext, err := crypto.Encrypt(key, encoded)
	if err != nil {
		return SharePacket{}, fmt.Errorf("wire: seal share packet: %w", err)
	}
	return SharePacket{Source: source, Destination: destination, Ciphertext: ciphertext}, nil
}

// OpenSharePacket decrypts a SharePacket addressed to self and verifies
// that the plaintext envelope agrees with the outer one, per spec.md §4.4
// H3 step 2 and the ErrPacketMisrouted check of spec.md §7.
func OpenSharePacket(key []byte, self secagg.ID, packet SharePacket) (SharePlaintext, error) {
	if packet.Destination != self {
		return SharePlaintext{}, secagg.ErrPacketMisrouted
	}
	plain, err := crypto.Decrypt(key, packet.Ciphertext)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailure) {
			return SharePlaintext{}, secagg.ErrDecryptionFailure
		}
		return SharePlaintext{}, fmt.Errorf("wire: open share packet: %w", err)
	}
	var out SharePlaintext
	if err := Unmarshal(plain, &out); err != nil {
		return SharePlaintext{}, fmt.Errorf("wire: open share packet: %w", err)
	}
	if out.Source != packet.Source || out.Destination != packet.Destination {
		return SharePlaintext{}, secagg.ErrPacketMisrouted
	}
	return out, nil
}
