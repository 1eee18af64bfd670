package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// keyBundle is the unambiguous serialization of [pk1_bytes, pk2_bytes]
// that gets signed and verified, per spec.md §4.1. CBOR's length-prefixed
// array/byte-string encoding rules out the ambiguity a delimiter-joined
// byte string would introduce.
type keyBundle struct {
	_   struct{} `cbor:",toarray"`
	PK1 []byte
	PK2 []byte
}

// SignKeyBundle signs the CBOR encoding of (pk1Bytes, pk2Bytes) with priv.
func SignKeyBundle(priv *ecdsa.PrivateKey, pk1Bytes, pk2Bytes []byte) ([]byte, error) {
	msg, err := cbor.Marshal(keyBundle{PK1: pk1Bytes, PK2: pk2Bytes})
	if err != nil {
		return nil, fmt.Errorf("crypto: encode key bundle: %w", err)
	}
	digest := sha256.Sum256(msg)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: sign key bundle: %w", err)
	}
	return sig, nil
}

// VerifyKeyBundle verifies a signature produced by SignKeyBundle.
func VerifyKeyBundle(pub *ecdsa.PublicKey, pk1Bytes, pk2Bytes, sig []byte) bool {
	msg, err := cbor.Marshal(keyBundle{PK1: pk1Bytes, PK2: pk2Bytes})
	if err != nil {
		return false
	}
	digest := sha256.Sum256(msg)
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}
