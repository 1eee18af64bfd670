package crypto

import "errors"

// ErrDecryptionFailure is returned when an AEAD open fails authentication.
// pkg/participant maps this onto secagg.ErrDecryptionFailure at the
// protocol layer; pkg/crypto stays independent of pkg/secagg so it can be
// imported by any caller without pulling in protocol state.
var ErrDecryptionFailure = errors.New("crypto: decryption failure")
