package participant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flwr-org/secagg/pkg/secagg"
	"github.com/flwr-org/secagg/pkg/shamir"
	"github.com/flwr-org/secagg/pkg/wire"
)

// InProcessTransport runs one real Engine per participant id in the
// current process, with no network involved.
// It satisfies coordinator.Transport structurally; the assertion lives
// in the coordinator package's tests, which need both types in scope at
// once.
type InProcessTransport struct {
	mu       sync.Mutex
	engines  map[secagg.ID]*Engine
}

// NewInProcessTransport creates a transport with one fresh Engine per id
// in ids. Each Engine logs through a child of logger tagged with its own
// id; a nil logger discards every handler's entry/exit events.
func NewInProcessTransport(ids []secagg.ID, logger *slog.Logger) *InProcessTransport {
	t := &InProcessTransport{engines: make(map[secagg.ID]*Engine, len(ids))}
	for _, id := range ids {
		var perID *slog.Logger
		if logger != nil {
			perID = logger.With("participant_id", id)
		}
		t.engines[id] = New(perID)
	}
	return t
}

func (t *InProcessTransport) engine(id secagg.ID) (*Engine, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.engines[id]
	if !ok {
		return nil, fmt.Errorf("participant: no engine registered for id %d", id)
	}
	return e, nil
}

// Setup dispatches to the id's Engine.Setup, ignoring ctx since the
// in-process call cannot block on I/O.
func (t *InProcessTransport) Setup(ctx context.Context, id secagg.ID, cfg *secagg.Config) error {
	e, err := t.engine(id)
	if err != nil {
		return err
	}
	perID := cfg.Clone()
	perID.SecAggID = id
	return e.Setup(perID)
}

func (t *InProcessTransport) AskKeys(ctx context.Context, id secagg.ID) (wire.KeyBundle, error) {
	e, err := t.engine(id)
	if err != nil {
		return wire.KeyBundle{}, err
	}
	return e.AskKeys()
}

func (t *InProcessTransport) ShareKeys(ctx context.Context, id secagg.ID, peers map[secagg.ID]wire.KeyBundle) ([]wire.SharePacket, error) {
	e, err := t.engine(id)
	if err != nil {
		return nil, err
	}
	return e.ShareKeys(peers)
}

func (t *InProcessTransport) AskVectors(ctx context.Context, id secagg.ID, packets []wire.SharePacket, fit wire.FitIns) (secagg.RaggedInt, error) {
	e, err := t.engine(id)
	if err != nil {
		return nil, err
	}
	return e.AskVectors(packets, fit)
}

func (t *InProcessTransport) UnmaskVectors(ctx context.Context, id secagg.ID, available, dropout []secagg.ID) (map[secagg.ID]shamir.Share, error) {
	e, err := t.engine(id)
	if err != nil {
		return nil, err
	}
	return e.UnmaskVectors(available, dropout)
}
