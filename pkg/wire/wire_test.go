package wire

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flwr-org/secagg/pkg/secagg"
	"github.com/flwr-org/secagg/pkg/shamir"
)

func TestAskVectorsResponseRoundTrip(t *testing.T) {
	resp := AskVectorsResponse{
		Masked: secagg.RaggedInt{
			{big.NewInt(1), big.NewInt(2), big.NewInt(3)},
			{big.NewInt(-7)},
		},
	}
	data, err := Marshal(resp)
	require.NoError(t, err)

	var got AskVectorsResponse
	require.NoError(t, Unmarshal(data, &got))
	require.Equal(t, len(resp.Masked), len(got.Masked))
	for i := range resp.Masked {
		for j := range resp.Masked[i] {
			require.Equal(t, 0, resp.Masked[i][j].Cmp(got.Masked[i][j]))
		}
	}
}

func TestUnmaskVectorsResponseRoundTrip(t *testing.T) {
	resp := UnmaskVectorsResponse{
		Shares: map[secagg.ID]shamir.Share{
			0: {Index: 1, Chunks: [][16]byte{{1, 2, 3}}},
			2: {Index: 3, Chunks: [][16]byte{{4, 5, 6}}},
		},
	}
	data, err := Marshal(resp)
	require.NoError(t, err)

	var got UnmaskVectorsResponse
	require.NoError(t, Unmarshal(data, &got))
	require.Equal(t, resp, got)
}

func TestSealOpenSharePacket(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plain := SharePlaintext{
		Source:      1,
		Destination: 2,
		BShare:      shamir.Share{Index: 1, Chunks: [][16]byte{{9}}},
		SK1Share:    shamir.Share{Index: 1, Chunks: [][16]byte{{8}}},
	}
	packet, err := SealSharePacket(key, 1, 2, plain)
	require.NoError(t, err)

	got, err := OpenSharePacket(key, 2, packet)
	require.NoError(t, err)
	require.Equal(t, plain, got)

	_, err = OpenSharePacket(key, 3, packet)
	require.ErrorIs(t, err, secagg.ErrPacketMisrouted)
}
