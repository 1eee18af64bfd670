package secagg

import "errors"

// Sentinel error kinds shared by pkg/participant and pkg/coordinator
// (spec.md §7). Callers should use errors.Is against these, since engines
// wrap them with fmt.Errorf("...: %w", ...) for context.
var (
	// ErrConfigInvalid means the configuration failed the invariants of
	// spec.md §3.
	ErrConfigInvalid = errors.New("secagg: invalid configuration")

	// ErrThresholdUnmet means a stage's surviving cohort fell below
	// min_num (or threshold at Stage 4).
	ErrThresholdUnmet = errors.New("secagg: threshold unmet")

	// ErrDuplicatePublicKey means ShareKeys saw a repeated pk1/pk2 byte
	// string across the public-key dictionary.
	ErrDuplicatePublicKey = errors.New("secagg: duplicate public key")

	// ErrSignatureInvalid means a peer's signature over (pk1, pk2) did
	// not verify.
	ErrSignatureInvalid = errors.New("secagg: invalid signature")

	// ErrSelfKeyMismatch means the entry under the participant's own id
	// did not match the keys it generated in AskKeys.
	ErrSelfKeyMismatch = errors.New("secagg: self key mismatch")

	// ErrPacketMisrouted means a share packet's destination did not
	// match the recipient, or its plaintext envelope disagreed with the
	// outer envelope.
	ErrPacketMisrouted = errors.New("secagg: packet misrouted")

	// ErrDecryptionFailure means AEAD authentication failed.
	ErrDecryptionFailure = errors.New("secagg: decryption failure")

	// ErrReconstructionFailed means fewer than threshold shares were
	// available to recover an owner's secret in Stage 4.
	ErrReconstructionFailed = errors.New("secagg: reconstruction failed")

	// ErrTimeout means a participant request exceeded its stage deadline.
	ErrTimeout = errors.New("secagg: stage timeout")

	// ErrRPCFailure is a transport-level error from the Transport
	// implementation the caller supplied.
	ErrRPCFailure = errors.New("secagg: rpc failure")

	// ErrOutOfOrder means a participant handler was invoked before the
	// stage preceding it had completed.
	ErrOutOfOrder = errors.New("secagg: handler invoked out of order")
)
