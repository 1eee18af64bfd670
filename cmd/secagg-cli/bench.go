package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/flwr-org/secagg/pkg/coordinator"
	"github.com/flwr-org/secagg/pkg/participant"
	"github.com/flwr-org/secagg/pkg/secagg"
	"github.com/flwr-org/secagg/pkg/wire"
)

func runBench(cmd *cobra.Command, args []string) error {
	sizes := []int{3, 10, sampleNum}
	fmt.Printf("%-12s%-16s%-16s\n", "sample_num", "round_latency", "per_participant")

	for _, n := range sizes {
		if n < 3 {
			continue
		}
		ids := make([]secagg.ID, n)
		for i := range ids {
			ids[i] = secagg.ID(i)
		}
		logger := cliLogger()
		transport := participant.NewInProcessTransport(ids, logger)
		strategy := cliStrategy{shareNum: n, clippingRange: 3, targetRange: 1 << 16}

		rng := rand.New(rand.NewSource(int64(n)))
		fitIns := make(map[secagg.ID]wire.FitIns, n)
		for _, id := range ids {
			vec := make([]float64, 16)
			for i := range vec {
				vec[i] = rng.Float64()*2 - 1
			}
			fitIns[id] = wire.FitIns{Vector: [][]float64{vec}, WeightsFactor: 1}
		}

		round := &coordinator.Round{Logger: logger}
		start := time.Now()
		if _, err := round.Run(context.Background(), n, strategy, transport, fitIns); err != nil {
			return fmt.Errorf("bench: round failed at n=%d: %w", n, err)
		}
		elapsed := time.Since(start)
		fmt.Printf("%-12d%-16s%-16s\n", n, elapsed.String(), (elapsed / time.Duration(n)).String())
	}
	return nil
}
