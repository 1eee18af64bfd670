package quantize

import (
	"fmt"
	"math/big"

	"github.com/flwr-org/secagg/pkg/secagg"
)

// sameShape verifies two ragged vectors share tensor count and per-tensor
// length — spec.md §4.3's "same shape is required on both operands".
func sameShape(a, b secagg.RaggedInt) error {
	if !a.Shapes().Equal(b.Shapes()) {
		return fmt.Errorf("quantize: shape mismatch")
	}
	return nil
}

// Add computes a+b elementwise (spec.md §4.3). The result is not reduced
// mod M; call Mod afterward when a canonical representative is needed.
func Add(a, b secagg.RaggedInt) (secagg.RaggedInt, error) {
	if err := sameShape(a, b); err != nil {
		return nil, err
	}
	return zipWith(a, b, func(x, y *big.Int) *big.Int {
		return new(big.Int).Add(x, y)
	}), nil
}

// Sub computes a-b elementwise.
func Sub(a, b secagg.RaggedInt) (secagg.RaggedInt, error) {
	if err := sameShape(a, b); err != nil {
		return nil, err
	}
	return zipWith(a, b, func(x, y *big.Int) *big.Int {
		return new(big.Int).Sub(x, y)
	}), nil
}

// ScalarMul multiplies every entry by k.
func ScalarMul(a secagg.RaggedInt, k *big.Int) secagg.RaggedInt {
	return mapTensor(a, func(x *big.Int) *big.Int {
		return new(big.Int).Mul(x, k)
	})
}

// ScalarDiv divides every entry by k using Euclidean integer division
// (big.Int.Div), per spec.md §4.3. It is not used for the final
// weights-factor division at reconstruction — see spec.md §9's open
// question, resolved in MeanVector by converting to float first.
func ScalarDiv(a secagg.RaggedInt, k *big.Int) secagg.RaggedInt {
	return mapTensor(a, func(x *big.Int) *big.Int {
		return new(big.Int).Div(x, k)
	})
}

// Mod reduces every entry to its nonnegative residue modulo m.
func Mod(a secagg.RaggedInt, m *big.Int) secagg.RaggedInt {
	return mapTensor(a, func(x *big.Int) *big.Int {
		r := new(big.Int).Mod(x, m)
		if r.Sign() < 0 {
			r.Add(r, m)
		}
		return r
	})
}

// PrependScalar returns a new RaggedInt with a singleton tensor holding v
// inserted at index 0, ahead of all of a's tensors — the weights-factor
// carrier of spec.md §4.4 H3 step 4.
func PrependScalar(a secagg.RaggedInt, v *big.Int) secagg.RaggedInt {
	out := make(secagg.RaggedInt, len(a)+1)
	out[0] = secagg.Tensor{v}
	copy(out[1:], a)
	return out
}

// SplitLeadingScalar is the inverse of PrependScalar: it returns the
// leading singleton's value and the remaining tensors.
func SplitLeadingScalar(a secagg.RaggedInt) (*big.Int, secagg.RaggedInt, error) {
	if len(a) == 0 || len(a[0]) != 1 {
		return nil, nil, fmt.Errorf("quantize: missing leading weights-factor scalar")
	}
	return a[0][0], a[1:], nil
}

func zipWith(a, b secagg.RaggedInt, f func(x, y *big.Int) *big.Int) secagg.RaggedInt {
	out := make(secagg.RaggedInt, len(a))
	for i := range a {
		t := make(secagg.Tensor, len(a[i]))
		for j := range a[i] {
			t[j] = f(a[i][j], b[i][j])
		}
		out[i] = t
	}
	return out
}

func mapTensor(a secagg.RaggedInt, f func(x *big.Int) *big.Int) secagg.RaggedInt {
	out := make(secagg.RaggedInt, len(a))
	for i := range a {
		t := make(secagg.Tensor, len(a[i]))
		for j := range a[i] {
			t[j] = f(a[i][j])
		}
		out[i] = t
	}
	return out
}
