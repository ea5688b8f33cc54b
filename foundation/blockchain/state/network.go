package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
)

const baseURL = "http://%s/v1"

// ErrMalformedChain is returned when a peer's chain response is missing
// the length or the chain.
var ErrMalformedChain = errors.New("peer chain response is malformed")

// =============================================================================

// ChainResponse is the payload a node serves so peers can compare chains.
type ChainResponse struct {
	Length int              `json:"length"`
	Chain  []database.Block `json:"chain"`
}

// NewChainResponse constructs the chain payload for the specified chain.
func NewChainResponse(chain []database.Block) ChainResponse {
	return ChainResponse{
		Length: len(chain),
		Chain:  chain,
	}
}

// =============================================================================

// NetRequestPeerChain asks the peer for its chain and the length it reports.
func (s *State) NetRequestPeerChain(ctx context.Context, pr peer.Peer) (ChainResponse, error) {
	s.evHandler("state: NetRequestPeerChain: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerChain: completed: %s", pr)

	url := fmt.Sprintf("%s/chain", fmt.Sprintf(baseURL, pr.Host))

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return ChainResponse{}, err
	}

	if resp.StatusCode() != http.StatusOK {
		return ChainResponse{}, fmt.Errorf("%s: status %d: %s", pr.Host, resp.StatusCode(), resp.String())
	}

	// Pointers are used so missing fields can be told apart from zero values.
	var wire struct {
		Length *int              `json:"length"`
		Chain  *[]database.Block `json:"chain"`
	}
	if err := json.Unmarshal(resp.Body(), &wire); err != nil {
		return ChainResponse{}, fmt.Errorf("%w: %s", ErrMalformedChain, err)
	}

	if wire.Length == nil || wire.Chain == nil {
		return ChainResponse{}, ErrMalformedChain
	}

	if *wire.Length != len(*wire.Chain) {
		return ChainResponse{}, fmt.Errorf("%w: length[%d] blocks[%d]", ErrMalformedChain, *wire.Length, len(*wire.Chain))
	}

	s.evHandler("state: NetRequestPeerChain: peer-node[%s]: length[%d]", pr, *wire.Length)

	return ChainResponse{Length: *wire.Length, Chain: *wire.Chain}, nil
}

// NetSendBlockToPeers takes the new mined block and sends it to all known
// peers. A peer that can't be reached or rejects the block doesn't stop the
// block going to the rest.
func (s *State) NetSendBlockToPeers(ctx context.Context, block database.Block) error {
	s.evHandler("state: NetSendBlockToPeers: started")
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	var errs []error
	for _, pr := range s.RetrieveKnownPeers() {
		url := fmt.Sprintf("%s/block/add", fmt.Sprintf(baseURL, pr.Host))

		resp, err := s.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(block).
			Post(url)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pr.Host, err))
			continue
		}

		if resp.IsError() {
			errs = append(errs, fmt.Errorf("%s: status %d: %s", pr.Host, resp.StatusCode(), resp.String()))
			continue
		}

		s.evHandler("state: NetSendBlockToPeers: sent to peer[%s]", pr)
	}

	return errors.Join(errs...)
}
