package secagg

import "math/big"

// Tensor is one flattened integer tensor in the masked domain.
type Tensor []*big.Int

// RaggedInt is a ragged vector of integer tensors: the unit all masked-domain
// arithmetic (spec.md §4.3) and the PRG (spec.md §4.1) operate on.
type RaggedInt []Tensor

// Shapes returns the ragged shape of r. Each Shape is a single-element
// [len(tensor)] since the protocol only needs flattened lengths.
func (r RaggedInt) Shapes() Shapes {
	shapes := make(Shapes, len(r))
	for i, t := range r {
		shapes[i] = Shape{len(t)}
	}
	return shapes
}

// ZeroRaggedInt allocates a RaggedInt of zero big.Int values matching shapes.
func ZeroRaggedInt(shapes Shapes) RaggedInt {
	r := make(RaggedInt, len(shapes))
	for i, s := range shapes {
		t := make(Tensor, s.FlatLen())
		for j := range t {
			t[j] = big.NewInt(0)
		}
		r[i] = t
	}
	return r
}

// Shape describes the flattened length of one tensor in a ragged vector.
// The protocol never needs multi-dimensional shapes beyond the flattened
// length: quantization, masking, and summation all operate elementwise on
// flat slices.
type Shape []int

// Shapes is the ragged shape of a whole parameter vector: one Shape per
// tensor.
type Shapes []Shape

// FlatLen returns the number of scalar entries described by s.
func (s Shape) FlatLen() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes describe the same flattened length and
// dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two ragged shapes match tensor-for-tensor.
func (s Shapes) Equal(o Shapes) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !s[i].Equal(o[i]) {
			return false
		}
	}
	return true
}
