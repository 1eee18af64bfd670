package coordinator

import (
	"context"

	"github.com/flwr-org/secagg/pkg/secagg"
	"github.com/flwr-org/secagg/pkg/shamir"
	"github.com/flwr-org/secagg/pkg/wire"
)

// Transport represents the out-of-scope RPC layer between the coordinator
// and one participant (spec.md §1, §6): everything this interface does
// not cover — network framing, retries, authentication of the channel
// itself — is left to integrators. Round drives the protocol purely in
// terms of this interface, so any real transport (gRPC, HTTP, message
// bus) plugs in without touching pkg/coordinator or pkg/participant.
type Transport interface {
	Setup(ctx context.Context, id secagg.ID, cfg *secagg.Config) error
	AskKeys(ctx context.Context, id secagg.ID) (wire.KeyBundle, error)
	ShareKeys(ctx context.Context, id secagg.ID, peers map[secagg.ID]wire.KeyBundle) ([]wire.SharePacket, error)
	AskVectors(ctx context.Context, id secagg.ID, packets []wire.SharePacket, fit wire.FitIns) (secagg.RaggedInt, error)
	UnmaskVectors(ctx context.Context, id secagg.ID, available, dropout []secagg.ID) (map[secagg.ID]shamir.Share, error)
}
