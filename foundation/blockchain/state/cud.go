package state

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
)

// SubmitTransaction adds a new transaction to the mempool. It returns the
// chain length plus one, the block number handed back to the submitter.
func (s *State) SubmitTransaction(tx database.Tx) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.mempool.Append(tx)
	s.evHandler("state: SubmitTransaction: tx[%s]: pending[%d]", tx, n)

	return uint64(s.db.Length()) + 1
}

// AddKnownPeer normalizes the address and adds it to the set of known
// peers. It reports false when the peer was already known or is this node.
func (s *State) AddKnownPeer(address string) (peer.Peer, bool, error) {
	pr, err := peer.Parse(address)
	if err != nil {
		return peer.Peer{}, false, err
	}

	if pr.Match(s.host) {
		s.evHandler("state: AddKnownPeer: ignoring self %s", pr)
		return pr, false, nil
	}

	added := s.knownPeers.Add(pr)
	if added {
		s.evHandler("state: AddKnownPeer: adding peer-node %s", pr)
	}

	return pr, added, nil
}

// RemoveKnownPeer removes the peer from the set of known peers.
func (s *State) RemoveKnownPeer(pr peer.Peer) {
	s.knownPeers.Remove(pr)
}
