// Package coordinator drives the five-stage secure aggregation round
// (spec.md §4.5): it never sees an unmasked vector, only learns who
// survived each stage, and reconstructs the sum from disclosed shares.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/flwr-org/secagg/pkg/crypto"
	"github.com/flwr-org/secagg/pkg/quantize"
	"github.com/flwr-org/secagg/pkg/secagg"
	"github.com/flwr-org/secagg/pkg/shamir"
	"github.com/flwr-org/secagg/pkg/wire"
)

// Round drives one aggregation round end to end. MaxConcurrency bounds
// the per-stage fan-out (spec.md §5); zero uses defaultMaxConcurrency.
// Logger receives one structured event per stage transition (cohort
// size, dropped ids, elapsed time); a nil Logger discards them.
type Round struct {
	MaxConcurrency int
	Logger         *slog.Logger
}

func (r *Round) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// stageLog emits one structured event per stage transition: the
// surviving cohort, every failed id's error, and the stage's elapsed
// time.
func stageLog(log *slog.Logger, stage string, elapsed time.Duration, survivors []secagg.ID, failures map[secagg.ID]error) {
	failed := make([]string, 0, len(failures))
	for id, err := range failures {
		failed = append(failed, fmt.Sprintf("%d: %v", id, err))
	}
	log.Info("stage complete",
		"stage", stage,
		"cohort", len(survivors),
		"failed", failed,
		"elapsed", elapsed,
	)
}

// Run executes Setup through UnmaskVectors-and-reconstruction for
// sampleNum participants ids 0..sampleNum-1, and returns the aggregated
// (dequantized) parameter vector.
func (r *Round) Run(ctx context.Context, sampleNum int, strategy Strategy, transport Transport, fitIns map[secagg.ID]wire.FitIns) (quantize.FloatVector, error) {
	log := r.logger()
	cfg, err := CompleteConfig(sampleNum, strategy.GetSecAggParam(), func(f string, a ...interface{}) { log.Warn(fmt.Sprintf(f, a...)) })
	if err != nil {
		return nil, err
	}

	allIDs := make([]secagg.ID, sampleNum)
	for i := range allIDs {
		allIDs[i] = secagg.ID(i)
	}
	sem := newSemaphore(r.MaxConcurrency)
	// mu guards the per-stage result maps and slices, which dispatch's
	// goroutines fill concurrently.
	var mu sync.Mutex

	// Stage 0: Setup.
	start := time.Now()
	setupOK, setupFail := dispatch(ctx, allIDs, cfg.Timeout, sem, func(ctx context.Context, id secagg.ID) error {
		return transport.Setup(ctx, id, cfg)
	})
	stageLog(log, "setup", time.Since(start), setupOK, setupFail)
	if len(setupOK) < cfg.MinNum {
		return nil, fmt.Errorf("coordinator: setup: %w", secagg.ErrThresholdUnmet)
	}

	// Stage 1: AskKeys.
	start = time.Now()
	bundles := make(map[secagg.ID]wire.KeyBundle)
	keysOK, keysFail := dispatch(ctx, setupOK, cfg.Timeout, sem, func(ctx context.Context, id secagg.ID) error {
		kb, err := transport.AskKeys(ctx, id)
		if err != nil {
			return err
		}
		mu.Lock()
		bundles[id] = kb
		mu.Unlock()
		return nil
	})
	stageLog(log, "ask_keys", time.Since(start), keysOK, keysFail)
	if len(keysOK) < cfg.MinNum {
		return nil, fmt.Errorf("coordinator: ask_keys: %w", secagg.ErrThresholdUnmet)
	}
	keysOKSet := toSet(keysOK)

	// Stage 2: ShareKeys. Each id is shown only its cyclic neighborhood,
	// restricted to the current cohort (spec.md §4.5 Stage 2).
	start = time.Now()
	var allPackets []wire.SharePacket
	sharesOK, sharesFail := dispatch(ctx, keysOK, cfg.Timeout, sem, func(ctx context.Context, id secagg.ID) error {
		peers := restrictToNeighbors(cfg, id, bundles, keysOKSet)
		packets, err := transport.ShareKeys(ctx, id, peers)
		if err != nil {
			return err
		}
		mu.Lock()
		allPackets = append(allPackets, packets...)
		mu.Unlock()
		return nil
	})
	stageLog(log, "share_keys", time.Since(start), sharesOK, sharesFail)
	if len(sharesOK) < cfg.MinNum {
		return nil, fmt.Errorf("coordinator: share_keys: %w", secagg.ErrThresholdUnmet)
	}
	sharesOKSet := toSet(sharesOK)

	inbox := make(map[secagg.ID][]wire.SharePacket)
	for _, p := range allPackets {
		if _, ok := sharesOKSet[p.Source]; !ok {
			continue
		}
		inbox[p.Destination] = append(inbox[p.Destination], p)
	}

	// Stage 3: AskVectors.
	start = time.Now()
	masked := make(map[secagg.ID]secagg.RaggedInt)
	available, availableFail := dispatch(ctx, sharesOK, cfg.Timeout, sem, func(ctx context.Context, id secagg.ID) error {
		resp, err := transport.AskVectors(ctx, id, inbox[id], fitIns[id])
		if err != nil {
			return err
		}
		mu.Lock()
		masked[id] = resp
		mu.Unlock()
		return nil
	})
	stageLog(log, "ask_vectors", time.Since(start), available, availableFail)
	if len(available) < cfg.MinNum {
		return nil, fmt.Errorf("coordinator: ask_vectors: %w", secagg.ErrThresholdUnmet)
	}
	availableSet := toSet(available)

	dropout := make([]secagg.ID, 0)
	for _, id := range sharesOK {
		if _, ok := availableSet[id]; !ok {
			dropout = append(dropout, id)
		}
	}
	log.Info("dropouts determined", "stage", "ask_vectors", "dropout", dropout)

	// Stage 4: UnmaskVectors.
	start = time.Now()
	disclosed := make(map[secagg.ID]map[secagg.ID]shamir.Share)
	respondents, respondentsFail := dispatch(ctx, available, cfg.Timeout, sem, func(ctx context.Context, id secagg.ID) error {
		shares, err := transport.UnmaskVectors(ctx, id, available, dropout)
		if err != nil {
			return err
		}
		mu.Lock()
		disclosed[id] = shares
		mu.Unlock()
		return nil
	})
	stageLog(log, "unmask_vectors", time.Since(start), respondents, respondentsFail)
	if len(respondents) < cfg.Threshold {
		return nil, fmt.Errorf("coordinator: unmask_vectors: %w", secagg.ErrThresholdUnmet)
	}

	return reconstruct(cfg, bundles, masked, available, dropout, disclosed)
}

// reconstruct removes every private and pairwise mask from the summed
// masked vectors and reverse-quantizes the result (spec.md §4.5 Stage 4,
// §9's weight-division open question).
func reconstruct(cfg *secagg.Config, bundles map[secagg.ID]wire.KeyBundle, masked map[secagg.ID]secagg.RaggedInt, available, dropout []secagg.ID, disclosed map[secagg.ID]map[secagg.ID]shamir.Share) (quantize.FloatVector, error) {
	if len(available) == 0 {
		return nil, fmt.Errorf("coordinator: %w: no available participants", secagg.ErrReconstructionFailed)
	}
	shapes := masked[available[0]].Shapes()

	sum := secagg.ZeroRaggedInt(shapes)
	for _, id := range available {
		var err error
		sum, err = quantize.Add(sum, masked[id])
		if err != nil {
			return nil, err
		}
	}

	collectShares := func(owner secagg.ID) []shamir.Share {
		var out []shamir.Share
		for _, respondent := range available {
			if s, ok := disclosed[respondent][owner]; ok {
				out = append(out, s)
			}
			if len(out) >= cfg.Threshold {
				break
			}
		}
		return out
	}

	// Remove each survivor's private mask.
	for _, id := range available {
		shares := collectShares(id)
		if len(shares) < cfg.Threshold {
			return nil, fmt.Errorf("coordinator: %w: b-share for id %d", secagg.ErrReconstructionFailed, id)
		}
		bBytes, err := shamir.Combine(shares, cfg.Threshold)
		if err != nil {
			return nil, fmt.Errorf("coordinator: reconstruct b for id %d: %w", id, err)
		}
		mask, err := crypto.PRG(bBytes, cfg.ModRange, shapes)
		if err != nil {
			return nil, err
		}
		sum, err = quantize.Sub(sum, mask)
		if err != nil {
			return nil, err
		}
	}

	// Undo each dropped peer's pairwise masks against every surviving
	// neighbor: reconstruct sk1, re-derive each shared key, and apply
	// the inverse of the sign rule the dropped participant used.
	availableSet := toSet(available)
	for _, id := range dropout {
		shares := collectShares(id)
		if len(shares) < cfg.Threshold {
			return nil, fmt.Errorf("coordinator: %w: sk1-share for id %d", secagg.ErrReconstructionFailed, id)
		}
		sk1DER, err := shamir.Combine(shares, cfg.Threshold)
		if err != nil {
			return nil, fmt.Errorf("coordinator: reconstruct sk1 for id %d: %w", id, err)
		}
		sk1, err := crypto.ParseECDHPrivateKey(sk1DER)
		if err != nil {
			return nil, fmt.Errorf("coordinator: parse sk1 for id %d: %w", id, err)
		}

		for _, peerID := range cfg.Neighbors(id) {
			if _, ok := availableSet[peerID]; !ok || peerID == id {
				continue
			}
			peerBundle, ok := bundles[peerID]
			if !ok {
				continue
			}
			peerPub, err := crypto.ParseECDHPublicKey(peerBundle.PK1)
			if err != nil {
				return nil, err
			}
			pairKey, err := crypto.DeriveSharedKey(sk1, peerPub)
			if err != nil {
				return nil, err
			}
			pairMask, err := crypto.PRG(pairKey, cfg.ModRange, shapes)
			if err != nil {
				return nil, err
			}
			// peerID applied +pairMask if peerID > id, -pairMask
			// otherwise (participant.Engine.AskVectors's sign rule);
			// undo it here.
			if peerID > id {
				sum, err = quantize.Sub(sum, pairMask)
			} else {
				sum, err = quantize.Add(sum, pairMask)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	sum = quantize.Mod(sum, cfg.ModRange)
	totalWeight, remaining, err := quantize.SplitLeadingScalar(sum)
	if err != nil {
		return nil, err
	}
	if totalWeight.Sign() == 0 {
		return nil, fmt.Errorf("coordinator: %w: total weight is zero", secagg.ErrReconstructionFailed)
	}

	params := quantize.Params{ClippingRange: cfg.ClippingRange, TargetRange: cfg.TargetRange}
	return quantize.MeanVector(remaining, totalWeight, params), nil
}

func toSet(ids []secagg.ID) map[secagg.ID]struct{} {
	set := make(map[secagg.ID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// restrictToNeighbors builds the peer key dictionary id is shown at
// Stage 2: its cyclic neighborhood intersected with cohort (spec.md §4.5
// Stage 2's forwarding-table rule), including id's own bundle.
func restrictToNeighbors(cfg *secagg.Config, id secagg.ID, bundles map[secagg.ID]wire.KeyBundle, cohort map[secagg.ID]struct{}) map[secagg.ID]wire.KeyBundle {
	out := make(map[secagg.ID]wire.KeyBundle)
	for _, peer := range cfg.Neighbors(id) {
		if _, ok := cohort[peer]; !ok {
			continue
		}
		if kb, ok := bundles[peer]; ok {
			out[peer] = kb
		}
	}
	return out
}
