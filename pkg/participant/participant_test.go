package participant

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flwr-org/secagg/pkg/crypto"
	"github.com/flwr-org/secagg/pkg/quantize"
	"github.com/flwr-org/secagg/pkg/secagg"
	"github.com/flwr-org/secagg/pkg/shamir"
	"github.com/flwr-org/secagg/pkg/wire"
)

func baseConfig() *secagg.Config {
	return &secagg.Config{
		SampleNum:        3,
		MinNum:           2,
		ShareNum:         3,
		Threshold:        2,
		ClippingRange:    3,
		TargetRange:      16,
		MaxWeightsFactor: 1000,
		ModRange:         big.NewInt(10_000_000),
		Timeout:          5 * time.Second,
	}
}

// driveHandshake runs H0-H2 for a 3-participant cohort and returns the
// engines keyed by id along with the share packets still to be delivered
// to each destination.
func driveHandshake(t *testing.T) (map[secagg.ID]*Engine, map[secagg.ID][]wire.SharePacket) {
	t.Helper()
	ids := []secagg.ID{0, 1, 2}
	engines := make(map[secagg.ID]*Engine, 3)
	bundles := make(map[secagg.ID]wire.KeyBundle, 3)

	for _, id := range ids {
		e := New(nil)
		cfg := baseConfig()
		cfg.SecAggID = id
		require.NoError(t, e.Setup(cfg))
		kb, err := e.AskKeys()
		require.NoError(t, err)
		engines[id] = e
		bundles[id] = kb
	}

	inbox := make(map[secagg.ID][]wire.SharePacket)
	for _, id := range ids {
		packets, err := engines[id].ShareKeys(bundles)
		require.NoError(t, err)
		for _, p := range packets {
			inbox[p.Destination] = append(inbox[p.Destination], p)
		}
	}
	return engines, inbox
}

func TestFullRoundNoDropout(t *testing.T) {
	engines, inbox := driveHandshake(t)
	ids := []secagg.ID{0, 1, 2}

	vectors := map[secagg.ID][][]float64{
		0: {{1, -2, 0.5}},
		1: {{0, 0, 0}},
		2: {{-1, 2, 1.5}},
	}

	masked := make(map[secagg.ID]secagg.RaggedInt, 3)
	for _, id := range ids {
		resp, err := engines[id].AskVectors(inbox[id], wire.FitIns{Vector: vectors[id], WeightsFactor: 1})
		require.NoError(t, err)
		masked[id] = resp
	}

	shapes := masked[0].Shapes()
	cfg := baseConfig()

	sumMasked := secagg.ZeroRaggedInt(shapes)
	for _, id := range ids {
		var err error
		sumMasked, err = quantize.Add(sumMasked, masked[id])
		require.NoError(t, err)
	}

	// No dropouts: every id discloses its b-share to every peer.
	revealed := make(map[secagg.ID]map[secagg.ID]shamir.Share, 3)
	for _, id := range ids {
		shares, err := engines[id].UnmaskVectors(ids, nil)
		require.NoError(t, err)
		revealed[id] = shares
	}

	sumPrivate := secagg.ZeroRaggedInt(shapes)
	for _, owner := range ids {
		var collected []shamir.Share
		for _, id := range ids {
			if s, ok := revealed[id][owner]; ok {
				collected = append(collected, s)
			}
			if len(collected) >= cfg.Threshold {
				break
			}
		}
		require.GreaterOrEqual(t, len(collected), cfg.Threshold)

		bBytes, err := shamir.Combine(collected, cfg.Threshold)
		require.NoError(t, err)

		mask, err := crypto.PRG(bBytes, cfg.ModRange, shapes)
		require.NoError(t, err)
		sumPrivate, err = quantize.Add(sumPrivate, mask)
		require.NoError(t, err)
	}

	gotWeighted, err := quantize.Sub(sumMasked, sumPrivate)
	require.NoError(t, err)
	gotWeighted = quantize.Mod(gotWeighted, cfg.ModRange)

	// Independently recompute the expected weighted-and-quantized sum.
	params := quantize.Params{ClippingRange: cfg.ClippingRange, TargetRange: cfg.TargetRange}
	wantWeighted := secagg.ZeroRaggedInt(shapes)
	for _, id := range ids {
		floatVec := make(quantize.FloatVector, len(vectors[id]))
		for i, t := range vectors[id] {
			floatVec[i] = quantize.FloatTensor(t)
		}
		q, _ := quantize.QuantizeVector(floatVec, params)
		q = quantize.PrependScalar(q, big.NewInt(1))
		var err error
		wantWeighted, err = quantize.Add(wantWeighted, q)
		require.NoError(t, err)
	}
	wantWeighted = quantize.Mod(wantWeighted, cfg.ModRange)

	require.Equal(t, len(wantWeighted), len(gotWeighted))
	for i := range wantWeighted {
		for j := range wantWeighted[i] {
			require.Equal(t, 0, wantWeighted[i][j].Cmp(gotWeighted[i][j]), "tensor %d entry %d mismatch", i, j)
		}
	}
}

func TestShareKeysRejectsBelowThreshold(t *testing.T) {
	e := New(nil)
	cfg := baseConfig()
	cfg.SecAggID = 0
	require.NoError(t, e.Setup(cfg))
	_, err := e.AskKeys()
	require.NoError(t, err)

	_, err = e.ShareKeys(map[secagg.ID]wire.KeyBundle{0: {}})
	require.ErrorIs(t, err, secagg.ErrThresholdUnmet)
}

func TestUnmaskVectorsRejectsOverlap(t *testing.T) {
	engines, inbox := driveHandshake(t)
	_, err := engines[0].AskVectors(inbox[0], wire.FitIns{Vector: [][]float64{{1}}, WeightsFactor: 1})
	require.NoError(t, err)

	_, err = engines[0].UnmaskVectors([]secagg.ID{1}, []secagg.ID{1})
	require.Error(t, err)
}

func TestHandlersRejectOutOfOrder(t *testing.T) {
	e := New(nil)
	_, err := e.AskKeys()
	require.ErrorIs(t, err, secagg.ErrOutOfOrder)
}
