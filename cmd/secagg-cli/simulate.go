package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/flwr-org/secagg/pkg/coordinator"
	"github.com/flwr-org/secagg/pkg/participant"
	"github.com/flwr-org/secagg/pkg/secagg"
	"github.com/flwr-org/secagg/pkg/shamir"
	"github.com/flwr-org/secagg/pkg/wire"
)

// stageName identifies which Transport method a dropoutTransport should
// fail for the configured ids, matching the names in --drop-stage.
type stageName string

const (
	stageAskKeys       stageName = "ask_keys"
	stageShareKeys     stageName = "share_keys"
	stageAskVectors    stageName = "ask_vectors"
	stageUnmaskVectors stageName = "unmask_vectors"
)

// dropoutTransport wraps a real Transport and forces an error for a
// configured set of ids at one named stage, standing in for the network
// failures / crashed participants of spec.md §8's dropout scenarios.
type dropoutTransport struct {
	coordinator.Transport
	stage stageName
	drop  map[secagg.ID]struct{}
}

func (d *dropoutTransport) AskKeys(ctx context.Context, id secagg.ID) (wire.KeyBundle, error) {
	if d.stage == stageAskKeys {
		if _, ok := d.drop[id]; ok {
			return wire.KeyBundle{}, fmt.Errorf("simulate: forced dropout of id %d at ask_keys", id)
		}
	}
	return d.Transport.AskKeys(ctx, id)
}

func (d *dropoutTransport) ShareKeys(ctx context.Context, id secagg.ID, peers map[secagg.ID]wire.KeyBundle) ([]wire.SharePacket, error) {
	if d.stage == stageShareKeys {
		if _, ok := d.drop[id]; ok {
			return nil, fmt.Errorf("simulate: forced dropout of id %d at share_keys", id)
		}
	}
	return d.Transport.ShareKeys(ctx, id, peers)
}

func (d *dropoutTransport) AskVectors(ctx context.Context, id secagg.ID, packets []wire.SharePacket, fit wire.FitIns) (secagg.RaggedInt, error) {
	if d.stage == stageAskVectors {
		if _, ok := d.drop[id]; ok {
			return nil, fmt.Errorf("simulate: forced dropout of id %d at ask_vectors", id)
		}
	}
	return d.Transport.AskVectors(ctx, id, packets, fit)
}

func (d *dropoutTransport) UnmaskVectors(ctx context.Context, id secagg.ID, available, dropout []secagg.ID) (map[secagg.ID]shamir.Share, error) {
	if d.stage == stageUnmaskVectors {
		if _, ok := d.drop[id]; ok {
			return nil, fmt.Errorf("simulate: forced dropout of id %d at unmask_vectors", id)
		}
	}
	return d.Transport.UnmaskVectors(ctx, id, available, dropout)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ids := make([]secagg.ID, sampleNum)
	for i := range ids {
		ids[i] = secagg.ID(i)
	}

	logger := cliLogger()

	var transport coordinator.Transport = participant.NewInProcessTransport(ids, logger)
	if dropStage != "" {
		drop := make(map[secagg.ID]struct{}, len(dropIDs))
		for _, id := range dropIDs {
			drop[secagg.ID(id)] = struct{}{}
		}
		transport = &dropoutTransport{Transport: transport, stage: stageName(dropStage), drop: drop}
	}

	strategy := cliStrategy{
		shareNum:      shareNum,
		threshold:     threshold,
		minNum:        minNum,
		clippingRange: clippingRange,
		targetRange:   targetRange,
	}

	fitIns := make(map[secagg.ID]wire.FitIns, sampleNum)
	rng := rand.New(rand.NewSource(1))
	for _, id := range ids {
		vec := make([]float64, 4)
		for i := range vec {
			vec[i] = rng.Float64()*2 - 1
		}
		fitIns[id] = wire.FitIns{Vector: [][]float64{vec}, WeightsFactor: 1}
	}

	round := &coordinator.Round{Logger: logger}

	result, err := round.Run(context.Background(), sampleNum, strategy, transport, fitIns)
	if err != nil {
		return fmt.Errorf("simulate: round failed: %w", err)
	}

	fmt.Printf("aggregate: %v\n", result)
	return nil
}

// cliStrategy is the coordinator.Strategy the simulate/bench commands
// supply, translating the command's flags into spec.md §6's ConfigInput.
type cliStrategy struct {
	shareNum      int
	threshold     int
	minNum        int
	clippingRange float64
	targetRange   int64
}

func (s cliStrategy) GetSecAggParam() coordinator.ConfigInput {
	return coordinator.ConfigInput{
		MinNum:           s.minNum,
		ShareNum:         s.shareNum,
		Threshold:        s.threshold,
		ClippingRange:    s.clippingRange,
		TargetRange:      s.targetRange,
		MaxWeightsFactor: 1000,
	}
}
