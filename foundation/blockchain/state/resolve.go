package state

import (
	"context"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"golang.org/x/sync/errgroup"
)

// Resolve is the consensus algorithm. It asks every known peer for its
// chain and replaces the local chain with the longest valid chain that is
// strictly longer than ours. A peer that can't be reached or sends a
// malformed response is skipped. It reports true when the chain was
// replaced. An error is only returned when ctx is cancelled.
//
// A peer whose reported length doesn't match the blocks it sent is skipped.
// The chain itself is still fully validated before it's used.
func (s *State) Resolve(ctx context.Context) (bool, error) {
	s.evHandler("state: Resolve: started")
	defer s.evHandler("state: Resolve: completed")

	peers := s.RetrieveKnownPeers()

	// Each G writes only to its own index so no locking is needed
	// until the fan-out completes.
	results := make([]*ChainResponse, len(peers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchLimit)

	for i, pr := range peers {
		i, pr := i, pr
		g.Go(func() error {
			resp, err := s.NetRequestPeerChain(gctx, pr)
			if err != nil {
				s.evHandler("state: Resolve: NetRequestPeerChain: %s: SKIPPED: %s", pr.Host, err)
				return nil
			}

			results[i] = &resp
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	// Pick the candidate using the local length at the start of the pass.
	maxLength := s.db.Length()
	var newChain []database.Block

	for i, resp := range results {
		if resp == nil || len(resp.Chain) <= maxLength {
			continue
		}

		if err := database.ValidateChain(s.genesis.Difficulty, resp.Chain); err != nil {
			s.evHandler("state: Resolve: %s: INVALID CHAIN: length[%d]: %s", peers[i].Host, len(resp.Chain), err)
			continue
		}

		maxLength = len(resp.Chain)
		newChain = resp.Chain
	}

	if newChain == nil {
		s.evHandler("state: Resolve: local chain is authoritative: length[%d]", s.db.Length())
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The local chain could have grown while the peers were being asked.
	if maxLength <= s.db.Length() {
		s.evHandler("state: Resolve: local chain grew during resolution: length[%d]", s.db.Length())
		return false, nil
	}

	if err := s.db.Replace(newChain); err != nil {
		return false, err
	}

	// Any proof search against the replaced tip needs to stop.
	s.advanceTip()
	s.chainReplacements.Add(1)

	s.evHandler("state: Resolve: chain replaced: length[%d]: tip[%s]", len(newChain), newChain[len(newChain)-1].Hash())

	return true, nil
}
