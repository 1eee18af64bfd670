// Package participant implements the five-handler participant engine of
// spec.md §4.4: key generation, share distribution, masked-vector
// construction, and share disclosure. Handlers are strictly ordered; the
// engine rejects any handler invoked before its predecessor has
// completed.
package participant

import (
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sort"
	"sync"

	"github.com/flwr-org/secagg/pkg/crypto"
	"github.com/flwr-org/secagg/pkg/quantize"
	"github.com/flwr-org/secagg/pkg/secagg"
	"github.com/flwr-org/secagg/pkg/shamir"
	"github.com/flwr-org/secagg/pkg/wire"
)

// Engine is one participant's per-round state, created at Setup and
// discarded at round end (spec.md §3's ownership rule). The core assumes
// at most one in-flight request per participant (spec.md §5), so the
// mutex here only guards against accidental concurrent misuse, not
// pipelined requests.
type Engine struct {
	mu sync.Mutex

	log *slog.Logger

	stage secagg.Stage
	cfg   *secagg.Config

	ecdh1 *crypto.ECDHKeyPair // sk1/pk1, for pairwise masks
	ecdh2 *crypto.ECDHKeyPair // sk2/pk2, for the share channel
	sig   *crypto.ECDSAKeyPair

	b []byte // private mask seed, generated in ShareKeys

	peers       map[secagg.ID]wire.KeyBundle
	sharedKey2  map[secagg.ID][]byte
	bShareDict  map[secagg.ID]shamir.Share
	sk1ShareDict map[secagg.ID]shamir.Share

	shapes secagg.Shapes // set once AskVectors has seen its first input
}

// New creates an Engine with no round state; Setup must be called before
// any other handler. A nil logger discards every handler's entry/exit
// events.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{stage: secagg.StageInit, log: logger}
}

func (e *Engine) requireStage(want secagg.Stage) error {
	if e.stage != want {
		return fmt.Errorf("participant: %w: at stage %s, need %s", secagg.ErrOutOfOrder, e.stage, want)
	}
	return nil
}

// Setup is H0 (spec.md §4.4). It stores the configuration and initializes
// the per-peer maps.
func (e *Engine) Setup(cfg *secagg.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("handler enter", "handler", "Setup")
	defer func() { e.log.Debug("handler exit", "handler", "Setup") }()

	if err := e.requireStage(secagg.StageInit); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("participant: %w: %v", secagg.ErrConfigInvalid, err)
	}

	e.cfg = cfg.Clone()
	e.bShareDict = make(map[secagg.ID]shamir.Share)
	e.sk1ShareDict = make(map[secagg.ID]shamir.Share)
	e.sharedKey2 = make(map[secagg.ID][]byte)
	e.stage = secagg.StageSetup
	return nil
}

// AskKeys is H1 (spec.md §4.4). It generates both ECDH pairs and the
// signing pair, and signs the (pk1, pk2) bundle.
func (e *Engine) AskKeys() (wire.KeyBundle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("handler enter", "handler", "AskKeys")
	defer func() { e.log.Debug("handler exit", "handler", "AskKeys") }()

	if err := e.requireStage(secagg.StageSetup); err != nil {
		return wire.KeyBundle{}, err
	}

	var err error
	if e.ecdh1, err = crypto.GenerateECDHKeyPair(); err != nil {
		return wire.KeyBundle{}, err
	}
	if e.ecdh2, err = crypto.GenerateECDHKeyPair(); err != nil {
		return wire.KeyBundle{}, err
	}
	if e.sig, err = crypto.GenerateECDSAKeyPair(); err != nil {
		return wire.KeyBundle{}, err
	}

	pk1Bytes, err := crypto.MarshalECDHPublicKey(e.ecdh1.Public)
	if err != nil {
		return wire.KeyBundle{}, err
	}
	pk2Bytes, err := crypto.MarshalECDHPublicKey(e.ecdh2.Public)
	if err != nil {
		return wire.KeyBundle{}, err
	}
	sigPubBytes, err := crypto.MarshalECDSAPublicKey(e.sig.Public)
	if err != nil {
		return wire.KeyBundle{}, err
	}
	signature, err := crypto.SignKeyBundle(e.sig.Private, pk1Bytes, pk2Bytes)
	if err != nil {
		return wire.KeyBundle{}, err
	}

	e.stage = secagg.StageKeys
	return wire.KeyBundle{
		PK1:       pk1Bytes,
		PK2:       pk2Bytes,
		SigPub:    sigPubBytes,
		Signature: signature,
	}, nil
}

// ShareKeys is H2 (spec.md §4.4). It validates the coordinator-supplied
// key dictionary, generates and Shamir-splits the mask seed b and sk1,
// and returns one encrypted packet per peer.
func (e *Engine) ShareKeys(peers map[secagg.ID]wire.KeyBundle) ([]wire.SharePacket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("handler enter", "handler", "ShareKeys", "peers", len(peers))
	defer func() { e.log.Debug("handler exit", "handler", "ShareKeys") }()

	if err := e.requireStage(secagg.StageKeys); err != nil {
		return nil, err
	}

	if len(peers) < e.cfg.Threshold {
		return nil, fmt.Errorf("participant: %w: have %d peers, need %d", secagg.ErrThresholdUnmet, len(peers), e.cfg.Threshold)
	}

	if err := checkNoDuplicateKeys(peers); err != nil {
		return nil, err
	}

	self, ok := peers[e.cfg.SecAggID]
	if !ok {
		return nil, fmt.Errorf("participant: %w: own id missing from peer dict", secagg.ErrSelfKeyMismatch)
	}
	myPK1, err := crypto.MarshalECDHPublicKey(e.ecdh1.Public)
	if err != nil {
		return nil, err
	}
	myPK2, err := crypto.MarshalECDHPublicKey(e.ecdh2.Public)
	if err != nil {
		return nil, err
	}
	if string(self.PK1) != string(myPK1) || string(self.PK2) != string(myPK2) {
		return nil, fmt.Errorf("participant: %w", secagg.ErrSelfKeyMismatch)
	}

	for id, kb := range peers {
		sigPub, err := crypto.ParseECDSAPublicKey(kb.SigPub)
		if err != nil {
			return nil, fmt.Errorf("participant: parse signing key for %d: %w", id, err)
		}
		if !crypto.VerifyKeyBundle(sigPub, kb.PK1, kb.PK2, kb.Signature) {
			return nil, fmt.Errorf("participant: %w: peer %d", secagg.ErrSignatureInvalid, id)
		}
	}

	e.peers = peers

	e.b, err = crypto.RandBytes(crypto.SeedSize)
	if err != nil {
		return nil, err
	}

	bShares, err := shamir.Split(e.b, e.cfg.Threshold, e.cfg.ShareNum)
	if err != nil {
		return nil, fmt.Errorf("participant: split b: %w", err)
	}
	sk1DER, err := crypto.MarshalECDHPrivateKey(e.ecdh1.Private)
	if err != nil {
		return nil, err
	}
	sk1Shares, err := shamir.Split(sk1DER, e.cfg.Threshold, e.cfg.ShareNum)
	if err != nil {
		return nil, fmt.Errorf("participant: split sk1: %w", err)
	}

	ids := sortedIDs(peers)
	// shamir.Split produces ShareNum shares indexed 1..ShareNum; assign
	// them to peers in ascending-id order, per spec.md §4.4 H2 step 7.
	shareIdx := 0
	var packets []wire.SharePacket
	for _, id := range ids {
		bShare := bShares[shareIdx]
		sk1Share := sk1Shares[shareIdx]
		shareIdx++

		if id == e.cfg.SecAggID {
			e.bShareDict[id] = bShare
			e.sk1ShareDict[id] = sk1Share
			continue
		}

		peerPub, err := crypto.ParseECDHPublicKey(peers[id].PK2)
		if err != nil {
			return nil, fmt.Errorf("participant: parse pk2 for %d: %w", id, err)
		}
		key, err := crypto.DeriveSharedKey(e.ecdh2.Private, peerPub)
		if err != nil {
			return nil, fmt.Errorf("participant: derive shared key for %d: %w", id, err)
		}
		e.sharedKey2[id] = key

		packet, err := wire.SealSharePacket(key, e.cfg.SecAggID, id, wire.SharePlaintext{
			Source:      e.cfg.SecAggID,
			Destination: id,
			BShare:      bShare,
			SK1Share:    sk1Share,
		})
		if err != nil {
			return nil, err
		}
		packets = append(packets, packet)
	}

	e.stage = secagg.StageShares
	return packets, nil
}

// AskVectors is H3 (spec.md §4.4). It absorbs incoming share packets,
// quantizes and weights the caller's input vector, and masks it with the
// private seed and every live peer's pairwise mask.
func (e *Engine) AskVectors(packets []wire.SharePacket, fit wire.FitIns) (secagg.RaggedInt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("handler enter", "handler", "AskVectors", "packets", len(packets))
	defer func() { e.log.Debug("handler exit", "handler", "AskVectors") }()

	if err := e.requireStage(secagg.StageShares); err != nil {
		return nil, err
	}

	if len(packets)+1 < e.cfg.Threshold {
		return nil, fmt.Errorf("participant: %w: have %d packets, need %d", secagg.ErrThresholdUnmet, len(packets), e.cfg.Threshold-1)
	}

	available := make(map[secagg.ID]struct{})
	for _, p := range packets {
		plain, err := wire.OpenSharePacket(e.sharedKey2[p.Source], e.cfg.SecAggID, p)
		if err != nil {
			return nil, err
		}
		e.bShareDict[plain.Source] = plain.BShare
		e.sk1ShareDict[plain.Source] = plain.SK1Share
		available[plain.Source] = struct{}{}
	}

	floatVec := make(quantize.FloatVector, len(fit.Vector))
	for i, t := range fit.Vector {
		floatVec[i] = quantize.FloatTensor(t)
	}
	params := quantize.Params{ClippingRange: e.cfg.ClippingRange, TargetRange: e.cfg.TargetRange}
	quantized, clipped := quantize.QuantizeVector(floatVec, params)
	if clipped {
		e.log.Warn("input vector clipped to clipping range", "clipping_range", e.cfg.ClippingRange)
	}

	weightsFactor := fit.WeightsFactor
	if weightsFactor > e.cfg.MaxWeightsFactor {
		weightsFactor = e.cfg.MaxWeightsFactor
	}
	weighted := quantize.ScalarMul(quantized, big.NewInt(weightsFactor))
	weighted = quantize.PrependScalar(weighted, big.NewInt(weightsFactor))
	e.shapes = weighted.Shapes()

	privateMask, err := crypto.PRG(e.b, e.cfg.ModRange, e.shapes)
	if err != nil {
		return nil, err
	}
	masked, err := quantize.Add(weighted, privateMask)
	if err != nil {
		return nil, err
	}

	for peerID := range available {
		peer, ok := e.peers[peerID]
		if !ok {
			continue
		}
		peerPub, err := crypto.ParseECDHPublicKey(peer.PK1)
		if err != nil {
			return nil, fmt.Errorf("participant: parse pk1 for %d: %w", peerID, err)
		}
		pairKey, err := crypto.DeriveSharedKey(e.ecdh1.Private, peerPub)
		if err != nil {
			return nil, err
		}
		pairMask, err := crypto.PRG(pairKey, e.cfg.ModRange, e.shapes)
		if err != nil {
			return nil, err
		}
		if e.cfg.SecAggID > peerID {
			masked, err = quantize.Add(masked, pairMask)
		} else {
			masked, err = quantize.Sub(masked, pairMask)
		}
		if err != nil {
			return nil, err
		}
	}

	masked = quantize.Mod(masked, e.cfg.ModRange)
	e.stage = secagg.StageVectors
	return masked, nil
}

// UnmaskVectors is H4 (spec.md §4.4). It discloses the b-share for every
// surviving peer and the sk1-share for every dropped one; the two sets
// are disjoint by the caller's own construction, but the engine still
// refuses to answer for a peer in both, since that would violate the
// security property the split is meant to uphold.
func (e *Engine) UnmaskVectors(available, dropout []secagg.ID) (map[secagg.ID]shamir.Share, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debug("handler enter", "handler", "UnmaskVectors", "available", len(available), "dropout", len(dropout))
	defer func() { e.log.Debug("handler exit", "handler", "UnmaskVectors") }()

	if err := e.requireStage(secagg.StageVectors); err != nil {
		return nil, err
	}
	if len(available) < e.cfg.Threshold {
		return nil, fmt.Errorf("participant: %w: %d available, need %d", secagg.ErrThresholdUnmet, len(available), e.cfg.Threshold)
	}

	dropSet := make(map[secagg.ID]struct{}, len(dropout))
	for _, id := range dropout {
		dropSet[id] = struct{}{}
	}

	out := make(map[secagg.ID]shamir.Share)
	for _, id := range available {
		if _, isDrop := dropSet[id]; isDrop {
			return nil, fmt.Errorf("participant: id %d listed as both available and dropped", id)
		}
		share, ok := e.bShareDict[id]
		if !ok {
			continue
		}
		out[id] = share
	}
	for id := range dropSet {
		share, ok := e.sk1ShareDict[id]
		if !ok {
			continue
		}
		out[id] = share
	}

	e.stage = secagg.StageDone
	return out, nil
}

func checkNoDuplicateKeys(peers map[secagg.ID]wire.KeyBundle) error {
	seen := make(map[string]struct{}, len(peers)*2)
	for _, kb := range peers {
		for _, k := range [][]byte{kb.PK1, kb.PK2} {
			key := string(k)
			if _, ok := seen[key]; ok {
				return fmt.Errorf("participant: %w", secagg.ErrDuplicatePublicKey)
			}
			seen[key] = struct{}{}
		}
	}
	return nil
}

func sortedIDs(peers map[secagg.ID]wire.KeyBundle) []secagg.ID {
	ids := make([]secagg.ID, 0, len(peers))
	for id := range peers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
