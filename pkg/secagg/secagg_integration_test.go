package secagg_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flwr-org/secagg/pkg/coordinator"
	"github.com/flwr-org/secagg/pkg/participant"
	"github.com/flwr-org/secagg/pkg/secagg"
	"github.com/flwr-org/secagg/pkg/wire"
)

func idRange(n int) []secagg.ID {
	ids := make([]secagg.ID, n)
	for i := range ids {
		ids[i] = secagg.ID(i)
	}
	return ids
}

type fixedStrategy struct {
	in coordinator.ConfigInput
}

func (f fixedStrategy) GetSecAggParam() coordinator.ConfigInput { return f.in }

func vectorFitIns(vectors map[secagg.ID][]float64) map[secagg.ID]wire.FitIns {
	out := make(map[secagg.ID]wire.FitIns, len(vectors))
	for id, v := range vectors {
		out[id] = wire.FitIns{Vector: [][]float64{v}, WeightsFactor: 1}
	}
	return out
}

// failAtAskVectors drops the configured ids' own AskVectors call, modeling
// a participant crashing after ShareKeys but before submitting its
// masked vector (spec.md §8 scenarios 3 and 5).
type failAtAskVectors struct {
	coordinator.Transport
	drop map[secagg.ID]struct{}
}

func (f *failAtAskVectors) AskVectors(ctx context.Context, id secagg.ID, packets []wire.SharePacket, fit wire.FitIns) (secagg.RaggedInt, error) {
	if _, ok := f.drop[id]; ok {
		return nil, errDroppedParticipant
	}
	return f.Transport.AskVectors(ctx, id, packets, fit)
}

var errDroppedParticipant = &droppedParticipantError{}

type droppedParticipantError struct{}

func (*droppedParticipantError) Error() string { return "secagg_test: participant dropped for scenario" }

// tamperOnePacket flips a byte in the single packet addressed from
// source to destination, returned by one ShareKeys call, modeling a
// corrupted-in-transit packet (spec.md §8 scenario 6).
type tamperOnePacket struct {
	coordinator.Transport
	source, destination secagg.ID
	done                bool
}

func (t *tamperOnePacket) ShareKeys(ctx context.Context, id secagg.ID, peers map[secagg.ID]wire.KeyBundle) ([]wire.SharePacket, error) {
	packets, err := t.Transport.ShareKeys(ctx, id, peers)
	if err != nil || t.done || id != t.source {
		return packets, err
	}
	for i := range packets {
		if packets[i].Destination == t.destination && len(packets[i].Ciphertext) > 0 {
			tampered := append([]byte(nil), packets[i].Ciphertext...)
			tampered[len(tampered)-1] ^= 0xFF
			packets[i].Ciphertext = tampered
			t.done = true
			break
		}
	}
	return packets, err
}

var _ = Describe("Secure aggregation round", func() {
	It("aggregates an all-zeros input to zero (scenario 1)", func() {
		n := 3
		transport := participant.NewInProcessTransport(idRange(n), nil)
		strategy := fixedStrategy{coordinator.ConfigInput{
			MinNum: 2, ShareNum: n, Threshold: 2,
			ClippingRange: 3, TargetRange: 16, MaxWeightsFactor: 1000,
		}}
		fitIns := vectorFitIns(map[secagg.ID][]float64{
			0: {0}, 1: {0}, 2: {0},
		})

		round := &coordinator.Round{}
		result, err := round.Run(context.Background(), n, strategy, transport, fitIns)
		Expect(err).NotTo(HaveOccurred())
		Expect(result[0][0]).To(BeNumerically("~", 0, 0.2))
	})

	It("aggregates a weighted mean within one quantization step (scenario 2)", func() {
		n := 3
		transport := participant.NewInProcessTransport(idRange(n), nil)
		strategy := fixedStrategy{coordinator.ConfigInput{
			MinNum: 2, ShareNum: n, Threshold: 2,
			ClippingRange: 3, TargetRange: 16_777_216, MaxWeightsFactor: 1000,
		}}
		fitIns := vectorFitIns(map[secagg.ID][]float64{
			0: {1.0}, 1: {-1.0}, 2: {0.5},
		})

		round := &coordinator.Round{}
		result, err := round.Run(context.Background(), n, strategy, transport, fitIns)
		Expect(err).NotTo(HaveOccurred())
		Expect(result[0][0]).To(BeNumerically("~", 1.0/6.0, 1e-4))
	})

	It("tolerates one dropout between AskVectors and UnmaskVectors over the complete graph (scenario 3)", func() {
		n := 5
		base := participant.NewInProcessTransport(idRange(n), nil)
		transport := &failAtAskVectors{Transport: base, drop: map[secagg.ID]struct{}{4: {}}}
		strategy := fixedStrategy{coordinator.ConfigInput{
			MinNum: 3, ShareNum: n, Threshold: 3,
			ClippingRange: 3, TargetRange: 1 << 16, MaxWeightsFactor: 1000,
		}}
		fitIns := vectorFitIns(map[secagg.ID][]float64{
			0: {1}, 1: {2}, 2: {3}, 3: {4}, 4: {100}, // id 4's value never counts
		})

		round := &coordinator.Round{}
		result, err := round.Run(context.Background(), n, strategy, transport, fitIns)
		Expect(err).NotTo(HaveOccurred())
		Expect(result[0][0]).To(BeNumerically("~", 2.25, 0.05)) // mean of {1,2,3,3}: 4 is clipped to C=3
	})

	It("reconstructs a neighbourhood dropout's sk1 and cancels its pairwise masks (scenario 4)", func() {
		n := 5
		base := participant.NewInProcessTransport(idRange(n), nil)
		transport := &failAtAskVectors{Transport: base, drop: map[secagg.ID]struct{}{2: {}}}
		strategy := fixedStrategy{coordinator.ConfigInput{
			MinNum: 3, ShareNum: 3, Threshold: 2,
			ClippingRange: 3, TargetRange: 1 << 16, MaxWeightsFactor: 1000,
		}}
		fitIns := vectorFitIns(map[secagg.ID][]float64{
			0: {1}, 1: {1}, 2: {99}, 3: {1}, 4: {1},
		})

		round := &coordinator.Round{}
		result, err := round.Run(context.Background(), n, strategy, transport, fitIns)
		Expect(err).NotTo(HaveOccurred())
		Expect(result[0][0]).To(BeNumerically("~", 1.0, 0.05)) // mean of the 4 survivors
	})

	It("aborts when survivors fall below threshold (scenario 5)", func() {
		n := 3
		base := participant.NewInProcessTransport(idRange(n), nil)
		transport := &failAtAskVectors{Transport: base, drop: map[secagg.ID]struct{}{1: {}, 2: {}}}
		strategy := fixedStrategy{coordinator.ConfigInput{
			MinNum: 2, ShareNum: n, Threshold: 2,
			ClippingRange: 3, TargetRange: 16, MaxWeightsFactor: 1000,
		}}
		fitIns := vectorFitIns(map[secagg.ID][]float64{0: {1}, 1: {1}, 2: {1}})

		round := &coordinator.Round{}
		_, err := round.Run(context.Background(), n, strategy, transport, fitIns)
		Expect(err).To(MatchError(secagg.ErrThresholdUnmet))
	})

	It("drops the recipient of a tampered packet but still succeeds (scenario 6)", func() {
		n := 5
		base := participant.NewInProcessTransport(idRange(n), nil)
		transport := &tamperOnePacket{Transport: base, source: 0, destination: 1}
		strategy := fixedStrategy{coordinator.ConfigInput{
			MinNum: 3, ShareNum: n, Threshold: 3,
			ClippingRange: 3, TargetRange: 1 << 16, MaxWeightsFactor: 1000,
		}}
		fitIns := vectorFitIns(map[secagg.ID][]float64{
			0: {2}, 1: {100}, 2: {2}, 3: {2}, 4: {2}, // id 1's value never counts
		})

		round := &coordinator.Round{}
		result, err := round.Run(context.Background(), n, strategy, transport, fitIns)
		Expect(err).NotTo(HaveOccurred())
		Expect(result[0][0]).To(BeNumerically("~", 2.0, 0.05))
	})
})
