// Package quantize implements the float-to-integer quantization of
// spec.md §4.2 and the modular vector arithmetic of spec.md §4.3 that the
// masked domain is built on.
package quantize

import (
	"math"
	"math/big"

	"github.com/flwr-org/secagg/pkg/secagg"
)

// FloatTensor is one unquantized tensor, flattened.
type FloatTensor []float64

// FloatVector is a ragged vector of float tensors, mirroring secagg.RaggedInt.
type FloatVector []FloatTensor

// Params bundles the quantization window and target alphabet size.
type Params struct {
	ClippingRange float64 // C
	TargetRange   int64   // T
}

// quantizeScalar implements q(x) = min(T-1, floor((clip(x,-C,C)+C)*T/(2C))).
func quantizeScalar(x float64, p Params) (int64, bool) {
	clipped := false
	c := x
	if c < -p.ClippingRange {
		c = -p.ClippingRange
		clipped = true
	} else if c > p.ClippingRange {
		c = p.ClippingRange
		clipped = true
	}
	scaled := (c + p.ClippingRange) * float64(p.TargetRange) / (2 * p.ClippingRange)
	q := int64(math.Floor(scaled))
	if q > p.TargetRange-1 {
		q = p.TargetRange - 1
	}
	if q < 0 {
		q = 0
	}
	return q, clipped
}

// dequantizeScalar implements x̂ = q*(2C)/T - C.
func dequantizeScalar(q int64, p Params) float64 {
	return float64(q)*(2*p.ClippingRange)/float64(p.TargetRange) - p.ClippingRange
}

// QuantizeTensor maps a float tensor into {0,...,T-1}. clipped is true if
// any input entry lay outside [-C, C] — spec.md §4.2 treats this as a
// warning, never an error, so callers decide whether/how to log it.
func QuantizeTensor(x FloatTensor, p Params) (secagg.Tensor, bool) {
	out := make(secagg.Tensor, len(x))
	clipped := false
	for i, v := range x {
		q, c := quantizeScalar(v, p)
		if c {
			clipped = true
		}
		out[i] = big.NewInt(q)
	}
	return out, clipped
}

// DequantizeTensor reverses QuantizeTensor.
func DequantizeTensor(q secagg.Tensor, p Params) FloatTensor {
	out := make(FloatTensor, len(q))
	for i, v := range q {
		out[i] = dequantizeScalar(v.Int64(), p)
	}
	return out
}

// QuantizeVector quantizes every tensor in x.
func QuantizeVector(x FloatVector, p Params) (secagg.RaggedInt, bool) {
	out := make(secagg.RaggedInt, len(x))
	clipped := false
	for i, t := range x {
		q, c := QuantizeTensor(t, p)
		if c {
			clipped = true
		}
		out[i] = q
	}
	return out, clipped
}

// DequantizeVector reverses QuantizeVector.
func DequantizeVector(q secagg.RaggedInt, p Params) FloatVector {
	out := make(FloatVector, len(q))
	for i, t := range q {
		out[i] = DequantizeTensor(t, p)
	}
	return out
}

// dequantizeFloat is dequantizeScalar generalized to a non-integer
// quantized value, needed when q is itself an average of several
// participants' quantized contributions (spec.md §9's open question on
// weight-division exactness: reduce in the modular domain first, then
// convert to float and divide once, at the very end).
func dequantizeFloat(q float64, p Params) float64 {
	return q*(2*p.ClippingRange)/float64(p.TargetRange) - p.ClippingRange
}

// MeanVector divides every entry of sum by totalWeight (as floats, per
// spec.md §9) and reverse-quantizes the result — the final step of
// coordinator reconstruction, after mask removal and mod-M reduction.
func MeanVector(sum secagg.RaggedInt, totalWeight *big.Int, p Params) FloatVector {
	w, _ := new(big.Float).SetInt(totalWeight).Float64()
	out := make(FloatVector, len(sum))
	for i, t := range sum {
		tensor := make(FloatTensor, len(t))
		for j, v := range t {
			q, _ := new(big.Float).SetInt(v).Float64()
			tensor[j] = dequantizeFloat(q/w, p)
		}
		out[i] = tensor
	}
	return out
}
