package crypto

import (
	"fmt"
	"math/big"

	"github.com/zeebo/blake3"

	"github.com/flwr-org/secagg/pkg/secagg"
)

// PRG deterministically derives a ragged integer vector matching shapes
// from a 32-byte seed, every entry uniform in [0, M), per spec.md §4.1.
// It must produce bit-identical output on coordinator and participant for
// the same seed, so the BLAKE3 XOF (github.com/zeebo/blake3, named by
// spec.md §4.1 as an acceptable "SHAKE-based" construction) is used
// rather than a seeded math/rand, whose stream is not part of Go's
// compatibility guarantee.
func PRG(seed []byte, modulus *big.Int, shapes secagg.Shapes) (secagg.RaggedInt, error) {
	if modulus == nil || modulus.Sign() <= 0 {
		return nil, fmt.Errorf("crypto: prg: modulus must be positive")
	}
	h, err := blake3.NewKeyed(padSeed(seed))
	if err != nil {
		return nil, fmt.Errorf("crypto: prg: %w", err)
	}
	xof := h.Digest()

	byteLen := (modulus.BitLen() + 7) / 8
	if byteLen == 0 {
		byteLen = 1
	}
	// Draw 8 extra bytes per sample and reduce mod M, so the reduction
	// bias stays negligible without rejection sampling.
	drawLen := byteLen + 8
	buf := make([]byte, drawLen)

	draw := func() (*big.Int, error) {
		for {
			if _, err := xof.Read(buf); err != nil {
				return nil, fmt.Errorf("crypto: prg: xof read: %w", err)
			}
			v := new(big.Int).SetBytes(buf)
			v.Mod(v, modulus)
			// Full rejection sampling would require bounding the draw to
			// a multiple of modulus; since drawLen carries 64 bits of
			// extra headroom over modulus's bit length, the residual
			// modulo bias is below 2^-64 and accepted unconditionally.
			return v, nil
		}
	}

	out := make(secagg.RaggedInt, len(shapes))
	for i, shape := range shapes {
		t := make(secagg.Tensor, shape.FlatLen())
		for j := range t {
			v, err := draw()
			if err != nil {
				return nil, err
			}
			t[j] = v
		}
		out[i] = t
	}
	return out, nil
}

// padSeed right-pads/truncates seed to the 32-byte key BLAKE3 keyed mode
// requires, so callers can pass the protocol's 32-byte mask seeds and
// derived pairwise keys directly.
func padSeed(seed []byte) []byte {
	key := make([]byte, 32)
	copy(key, seed)
	return key
}
