package coordinator

import (
	"fmt"
	"math/big"
	"time"

	"github.com/flwr-org/secagg/pkg/secagg"
)

// ConfigInput is the partially-filled configuration a Strategy returns
// (spec.md §6): any field left at its zero value is resolved by
// CompleteConfig's default table.
type ConfigInput struct {
	MinFrac          float64
	MinNum           int
	ShareNum         int
	Threshold        int
	ClippingRange    float64
	TargetRange      int64
	MaxWeightsFactor int64
	ModRange         *big.Int
	Timeout          int // seconds
}

// Strategy is the external interface spec.md §6 names: the caller's
// federated-learning orchestration supplies the per-round configuration
// and is otherwise untouched by this module.
type Strategy interface {
	GetSecAggParam() ConfigInput
}

// Warnf receives non-fatal default-table warnings (spec.md §6's
// "bumped by 1 with a warning"). Round.Run passes a closure over its
// *slog.Logger here; nil disables warnings.
type Warnf func(format string, args ...interface{})

// CompleteConfig applies the default table of spec.md §6 to in and
// validates the result, given the fixed sampleNum for this round.
func CompleteConfig(sampleNum int, in ConfigInput, warn Warnf) (*secagg.Config, error) {
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}

	cfg := &secagg.Config{
		SampleNum:        sampleNum,
		MinNum:           in.MinNum,
		ShareNum:         in.ShareNum,
		Threshold:        in.Threshold,
		ClippingRange:    in.ClippingRange,
		TargetRange:      in.TargetRange,
		MaxWeightsFactor: in.MaxWeightsFactor,
		ModRange:         in.ModRange,
		Timeout:          0,
	}

	switch {
	case in.MinNum == 0 && in.MinFrac == 0:
		cfg.MinNum = maxInt(2, int(0.9*float64(sampleNum)))
	case in.MinNum == 0:
		cfg.MinNum = int(in.MinFrac * float64(sampleNum))
	case in.MinFrac != 0:
		cfg.MinNum = maxInt(in.MinNum, int(in.MinFrac*float64(sampleNum)))
	}

	if cfg.ShareNum == 0 {
		cfg.ShareNum = sampleNum
	} else if cfg.ShareNum != sampleNum && cfg.ShareNum%2 == 0 {
		warn("coordinator: share_num %d is even and != sample_num; bumping to %d", cfg.ShareNum, cfg.ShareNum+1)
		cfg.ShareNum++
	}

	if cfg.Threshold == 0 {
		cfg.Threshold = maxInt(2, int(0.9*float64(cfg.ShareNum)))
	}

	if cfg.MaxWeightsFactor == 0 {
		cfg.MaxWeightsFactor = 1000
	}
	if cfg.ClippingRange == 0 {
		cfg.ClippingRange = 3
	}
	if cfg.TargetRange == 0 {
		cfg.TargetRange = 16_777_216
	}
	if cfg.ModRange == nil {
		cfg.ModRange = new(big.Int).Mul(big.NewInt(int64(sampleNum)), big.NewInt(cfg.TargetRange))
		cfg.ModRange.Mul(cfg.ModRange, big.NewInt(cfg.MaxWeightsFactor))
	}

	timeoutSeconds := in.Timeout
	if timeoutSeconds == 0 {
		timeoutSeconds = 30
	}
	cfg.Timeout = secondsToDuration(timeoutSeconds)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("coordinator: %w: %v", secagg.ErrConfigInvalid, err)
	}
	return cfg, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
