package coordinator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flwr-org/secagg/pkg/coordinator"
	"github.com/flwr-org/secagg/pkg/participant"
	"github.com/flwr-org/secagg/pkg/secagg"
	"github.com/flwr-org/secagg/pkg/wire"
)

var _ coordinator.Transport = (*participant.InProcessTransport)(nil)

type fixedStrategy struct {
	in coordinator.ConfigInput
}

func (f fixedStrategy) GetSecAggParam() coordinator.ConfigInput { return f.in }

func idsUpTo(n int) []secagg.ID {
	ids := make([]secagg.ID, n)
	for i := range ids {
		ids[i] = secagg.ID(i)
	}
	return ids
}

func TestRoundNoDropoutCompleteGraph(t *testing.T) {
	n := 5
	transport := participant.NewInProcessTransport(idsUpTo(n), nil)
	strategy := fixedStrategy{in: coordinator.ConfigInput{
		MinNum:           2,
		ShareNum:         n,
		Threshold:        3,
		ClippingRange:    3,
		TargetRange:      1024,
		MaxWeightsFactor: 1000,
	}}

	fitIns := map[secagg.ID]wire.FitIns{
		0: {Vector: [][]float64{{1, 1}}, WeightsFactor: 1},
		1: {Vector: [][]float64{{2, 2}}, WeightsFactor: 1},
		2: {Vector: [][]float64{{3, 3}}, WeightsFactor: 1},
		3: {Vector: [][]float64{{0, 0}}, WeightsFactor: 1},
		4: {Vector: [][]float64{{-1, -1}}, WeightsFactor: 1},
	}

	round := &coordinator.Round{}
	result, err := round.Run(context.Background(), n, strategy, transport, fitIns)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.InDelta(t, 1.0, result[0][0], 0.05)
	require.InDelta(t, 1.0, result[0][1], 0.05)
}

func TestRoundAllZerosAggregateIsZero(t *testing.T) {
	n := 3
	transport := participant.NewInProcessTransport(idsUpTo(n), nil)
	strategy := fixedStrategy{in: coordinator.ConfigInput{
		MinNum:           2,
		ShareNum:         n,
		Threshold:        2,
		ClippingRange:    3,
		TargetRange:      16,
		MaxWeightsFactor: 1000,
	}}

	fitIns := map[secagg.ID]wire.FitIns{
		0: {Vector: [][]float64{{0, 0, 0}}, WeightsFactor: 1},
		1: {Vector: [][]float64{{0, 0, 0}}, WeightsFactor: 1},
		2: {Vector: [][]float64{{0, 0, 0}}, WeightsFactor: 1},
	}

	round := &coordinator.Round{}
	result, err := round.Run(context.Background(), n, strategy, transport, fitIns)
	require.NoError(t, err)
	for _, v := range result[0] {
		require.InDelta(t, 0, v, 0.2)
	}
}

func TestRoundAbortsBelowMinNum(t *testing.T) {
	n := 3
	strategy := fixedStrategy{in: coordinator.ConfigInput{
		MinNum:           3, // impossible to satisfy once id 2 is unreachable
		ShareNum:         n,
		Threshold:        2,
		ClippingRange:    3,
		TargetRange:      16,
		MaxWeightsFactor: 1000,
	}}

	// Omit id 2 from the transport's engine set entirely, so every stage
	// call addressed to it fails outright rather than just returning an
	// empty vector.
	partial := participant.NewInProcessTransport(idsUpTo(2), nil)

	round := &coordinator.Round{}
	_, err := round.Run(context.Background(), n, strategy, partial, map[secagg.ID]wire.FitIns{
		0: {Vector: [][]float64{{1}}, WeightsFactor: 1},
		1: {Vector: [][]float64{{1}}, WeightsFactor: 1},
	})
	require.ErrorIs(t, err, secagg.ErrThresholdUnmet)
}
