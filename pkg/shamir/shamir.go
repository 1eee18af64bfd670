// Package shamir implements Shamir secret sharing over GF(2^128) on
// 16-byte chunks, per spec.md §4.1 and §9: secrets of arbitrary length are
// PKCS#7-padded to a 16-byte boundary, chunked, and each chunk shared with
// its own random polynomial so that knowledge of one chunk's shares leaks
// nothing about another's. The per-chunk polynomial structure is grounded
// on the cyphar/paperback shamir package's chunk-at-a-time design, adapted
// from its big-prime field to genuine GF(2^128) arithmetic since spec.md
// §4.1 requires the latter.
package shamir

import (
	"crypto/rand"
	"fmt"
)

// ChunkSize is the field-element width: 16 bytes, i.e. GF(2^128).
const ChunkSize = 16

// ChunkShare is one (index, value) pair for a single 16-byte chunk of the
// secret.
type ChunkShare struct {
	Index uint8
	Value [ChunkSize]byte
}

// Share is the list of per-chunk (index, value) pairs delivered to one
// recipient — spec.md §9's "each 'share' delivered to a peer is structured
// (list[(idx, bytes16)])". The single Index applies to every chunk in the
// Share; the chunk values are kept per-chunk rather than flattened so
// Combine can operate chunk-by-chunk without re-deriving chunk boundaries.
type Share struct {
	Index  uint8
	Chunks [][ChunkSize]byte
}

// Split creates num Shares of secret, any threshold of which reconstruct
// it exactly; fewer reveal nothing (spec.md §4.1, §8).
func Split(secret []byte, threshold, num int) ([]Share, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("shamir: threshold must be >= 1")
	}
	if num < threshold {
		return nil, fmt.Errorf("shamir: num must be >= threshold")
	}
	if num > 255 {
		return nil, fmt.Errorf("shamir: num must be <= 255")
	}

	padded := pkcs7Pad(secret, ChunkSize)
	numChunks := len(padded) / ChunkSize

	// One independent random polynomial per chunk.
	polys := make([][]elem, numChunks)
	for c := 0; c < numChunks; c++ {
		var chunk [ChunkSize]byte
		copy(chunk[:], padded[c*ChunkSize:(c+1)*ChunkSize])
		poly, err := randomPolynomial(threshold-1, bytesToElem(chunk))
		if err != nil {
			return nil, err
		}
		polys[c] = poly
	}

	shares := make([]Share, num)
	for i := 0; i < num; i++ {
		index := uint8(i + 1) // indices are nonzero field elements 1..num
		x := elemFromUint64(uint64(index))
		chunks := make([][ChunkSize]byte, numChunks)
		for c, poly := range polys {
			chunks[c] = elemToBytes(evaluate(poly, x))
		}
		shares[i] = Share{Index: index, Chunks: chunks}
	}
	return shares, nil
}

// Combine recovers the original secret from threshold or more Shares
// produced by Split (spec.md §4.1, §8). Each of the k chunks is
// interpolated independently at x=0, then the results are concatenated
// and unpadded.
func Combine(shares []Share, threshold int) ([]byte, error) {
	if len(shares) < threshold {
		return nil, fmt.Errorf("shamir: need at least %d shares, got %d", threshold, len(shares))
	}
	shares = dedupeByIndex(shares)
	if len(shares) < threshold {
		return nil, fmt.Errorf("shamir: need at least %d distinct shares, got %d", threshold, len(shares))
	}
	shares = shares[:threshold]

	numChunks := len(shares[0].Chunks)
	for _, s := range shares {
		if len(s.Chunks) != numChunks {
			return nil, fmt.Errorf("shamir: shares disagree on chunk count")
		}
	}

	out := make([]byte, 0, numChunks*ChunkSize)
	for c := 0; c < numChunks; c++ {
		xs := make([]elem, len(shares))
		ys := make([]elem, len(shares))
		for i, s := range shares {
			xs[i] = elemFromUint64(uint64(s.Index))
			ys[i] = bytesToElem(s.Chunks[c])
		}
		secretElem := lagrangeAtZero(xs, ys)
		chunkBytes := elemToBytes(secretElem)
		out = append(out, chunkBytes[:]...)
	}

	return pkcs7Unpad(out)
}

func dedupeByIndex(shares []Share) []Share {
	seen := make(map[uint8]bool, len(shares))
	out := make([]Share, 0, len(shares))
	for _, s := range shares {
		if seen[s.Index] {
			continue
		}
		seen[s.Index] = true
		out = append(out, s)
	}
	return out
}

// randomPolynomial builds a degree-`degree` polynomial over GF(2^128) with
// the given constant term and uniformly random higher coefficients.
func randomPolynomial(degree int, constant elem) ([]elem, error) {
	poly := make([]elem, degree+1)
	poly[0] = constant
	for i := 1; i <= degree; i++ {
		var buf [ChunkSize]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, fmt.Errorf("shamir: random coefficient: %w", err)
		}
		poly[i] = bytesToElem(buf)
	}
	return poly, nil
}

// evaluate computes poly(x) via Horner's method.
func evaluate(poly []elem, x elem) elem {
	result := elemZero
	for i := len(poly) - 1; i >= 0; i-- {
		result = mul(result, x).xor(poly[i])
	}
	return result
}

// lagrangeAtZero interpolates the unique degree-(len(xs)-1) polynomial
// through (xs[i], ys[i]) and evaluates it at x=0, recovering the secret
// constant term.
func lagrangeAtZero(xs, ys []elem) elem {
	result := elemZero
	for i := range xs {
		term := ys[i]
		for j := range xs {
			if i == j {
				continue
			}
			// factor = x_j / (x_j - x_i) = x_j * inv(x_j xor x_i), since
			// subtraction is XOR in characteristic 2.
			denom := xs[j].xor(xs[i])
			factor := mul(xs[j], inv(denom))
			term = mul(term, factor)
		}
		result = result.xor(term)
	}
	return result
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%ChunkSize != 0 {
		return nil, fmt.Errorf("shamir: invalid padded length %d", len(data))
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > ChunkSize || padLen > len(data) {
		return nil, fmt.Errorf("shamir: invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("shamir: invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
