// Package wire defines the typed message envelopes exchanged between the
// coordinator and participant engines in each of the five protocol
// rounds (spec.md §3, §6). Every message is CBOR-encoded so integers,
// byte strings, and nested lists are length-prefixed and unambiguous
// without any delimiter-joined strings, per spec.md §6.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/flwr-org/secagg/pkg/secagg"
	"github.com/flwr-org/secagg/pkg/shamir"
)

// KeyBundle is the H1/AskKeys response: a participant's two ECDH public
// keys plus its ECDSA signing public key and the signature binding them
// together (spec.md §4.4 H1).
type KeyBundle struct {
	PK1       []byte // ECDH public key for pairwise masks, SPKI DER
	PK2       []byte // ECDH public key for the share channel, SPKI DER
	SigPub    []byte // ECDSA signing public key, SPKI DER
	Signature []byte // signature over (PK1, PK2)
}

// SharePlaintext is the unambiguous structured payload encrypted inside a
// SharePacket's ciphertext (spec.md §3's share-packet plaintext).
type SharePlaintext struct {
	Source      secagg.ID
	Destination secagg.ID
	BShare      shamir.Share
	SK1Share    shamir.Share
}

// SharePacket is the transport envelope for one participant's share of b
// and sk1 sent to one peer (spec.md §3, §4.4 H2).
type SharePacket struct {
	Source      secagg.ID
	Destination secagg.ID
	Ciphertext  []byte
}

// FitIns is the per-round training input handed to AskVectors: the raw
// float vector and its weight factor (spec.md §4.4 H3 step 3). It stands
// in for whatever the external FL strategy actually supplies — the core
// only needs its shape and weight, per spec.md §1's scope boundary.
type FitIns struct {
	Vector       [][]float64
	WeightsFactor int64
}

// AskVectorsRequest is the H3/AskVectors request: the forwarding packets
// addressed to this participant plus its fit instructions.
type AskVectorsRequest struct {
	Packets []SharePacket
	FitIns  FitIns
}

// AskVectorsResponse is the H3/AskVectors response: the masked, quantized,
// weighted ragged vector, each tensor reduced mod M.
type AskVectorsResponse struct {
	Masked secagg.RaggedInt
}

// UnmaskVectorsRequest is the H4/UnmaskVectors request: the
// neighborhood-restricted available and dropout sets (spec.md §4.4 H4,
// §4.5 Stage 4).
type UnmaskVectorsRequest struct {
	Available []secagg.ID
	Dropout   []secagg.ID
}

// UnmaskVectorsResponse carries the disclosed shares: b-shares for
// available peers, sk1-shares for dropped ones. The two key sets are
// disjoint by construction (spec.md §4.4 H4's crucial invariant).
type UnmaskVectorsResponse struct {
	Shares map[secagg.ID]shamir.Share
}

// Marshal/Unmarshal are thin CBOR wrappers kept in one place so every
// message type is encoded identically and error-wrapped consistently.

// Marshal encodes v as CBOR.
func Marshal(v interface{}) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal decodes CBOR into v.
func Unmarshal(data []byte, v interface{}) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal: %w", err)
	}
	return nil
}
