package quantize

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flwr-org/secagg/pkg/secagg"
)

func toVector(t secagg.Tensor) secagg.RaggedInt {
	return secagg.RaggedInt{t}
}

func TestQuantizeRoundTrip(t *testing.T) {
	p := Params{ClippingRange: 3, TargetRange: 16777216}
	x := FloatTensor{-3, -1.5, 0, 1.5, 2.999}
	q, clipped := QuantizeTensor(x, p)
	require.False(t, clipped)

	got := DequantizeTensor(q, p)
	tol := 2 * p.ClippingRange / float64(p.TargetRange)
	for i := range x {
		require.InDelta(t, x[i], got[i], tol*2)
	}
}

func TestQuantizeClipsOutOfRange(t *testing.T) {
	p := Params{ClippingRange: 3, TargetRange: 16}
	_, clipped := QuantizeTensor(FloatTensor{5, -5}, p)
	require.True(t, clipped)
}

func TestVectorArithmetic(t *testing.T) {
	a := FloatTensor{1, 2, 3}
	b := FloatTensor{1, 1, 1}
	p := Params{ClippingRange: 3, TargetRange: 1000}
	qa, _ := QuantizeTensor(a, p)
	qb, _ := QuantizeTensor(b, p)

	ra := toVector(qa)
	rb := toVector(qb)

	sum, err := Add(ra, rb)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(qa[0], qb[0]), sum[0][0])

	diff, err := Sub(ra, rb)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Sub(qa[0], qb[0]), diff[0][0])

	scaled := ScalarMul(ra, big.NewInt(3))
	require.Equal(t, new(big.Int).Mul(qa[0], big.NewInt(3)), scaled[0][0])

	modded := Mod(ScalarMul(ra, big.NewInt(-1)), big.NewInt(7))
	require.True(t, modded[0][0].Sign() >= 0)
}
