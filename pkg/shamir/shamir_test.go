package shamir

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitCombineRoundTrip(t *testing.T) {
	cases := []struct {
		threshold, num, secretLen int
	}{
		{2, 3, 1},
		{2, 5, 32},
		{3, 7, 48},
		{5, 9, 100},
	}

	for _, tc := range cases {
		secret := make([]byte, tc.secretLen)
		_, err := rand.Read(secret)
		require.NoError(t, err)

		shares, err := Split(secret, tc.threshold, tc.num)
		require.NoError(t, err)
		require.Len(t, shares, tc.num)

		got, err := Combine(shares[:tc.threshold], tc.threshold)
		require.NoError(t, err)
		require.Equal(t, secret, got)

		// Any other threshold-sized subset also reconstructs the secret.
		got2, err := Combine(shares[tc.num-tc.threshold:], tc.threshold)
		require.NoError(t, err)
		require.Equal(t, secret, got2)
	}
}

func TestCombineTooFewShares(t *testing.T) {
	secret := []byte("hello world")
	shares, err := Split(secret, 3, 5)
	require.NoError(t, err)

	_, err = Combine(shares[:2], 3)
	require.Error(t, err)
}

func TestGF128MulInverse(t *testing.T) {
	a := elemFromUint64(12345)
	one := mul(a, inv(a))
	require.Equal(t, elemOne, one)
}
