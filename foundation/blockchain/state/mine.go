package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// ErrStaleTip is returned when the tip of the chain changed while a proof
// was being searched for. The mempool is left untouched.
var ErrStaleTip = errors.New("chain tip changed during mining")

// =============================================================================

// MineNewBlock solves the POW puzzle against the latest block and then adds
// a new block holding every pending transaction to the chain. The search
// runs without holding the state lock and stops when ctx is cancelled or
// when another block becomes the tip of the chain.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: started")
	defer s.evHandler("state: MineNewBlock: MINING: completed")

	s.mu.Lock()
	parent := s.db.LatestBlock()
	tipCtx := s.tipCtx
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(tipCtx, cancel)
	defer stop()

	s.evHandler("state: MineNewBlock: MINING: perform POW: parent[%d]: proof[%d]", parent.Index, parent.Proof)

	t := time.Now()
	proof, err := database.FindProof(ctx, s.genesis.Difficulty, parent.Proof)
	if err != nil {
		if tipCtx.Err() != nil && s.shutCtx.Err() == nil {
			s.evHandler("state: MineNewBlock: MINING: CANCELLED: tip changed")
			return database.Block{}, ErrStaleTip
		}
		s.evHandler("state: MineNewBlock: MINING: CANCELLED: %s", err)
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: SOLVED: proof[%d]: duration[%v]", proof, time.Since(t))

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another block could have landed between the search ending and
	// acquiring the lock.
	if tipCtx.Err() != nil {
		s.evHandler("state: MineNewBlock: MINING: CANCELLED: tip changed")
		return database.Block{}, ErrStaleTip
	}

	// The block time can't go backwards even if a peer's clock is ahead.
	timestamp := time.Now().UnixNano()
	if timestamp < parent.Timestamp {
		timestamp = parent.Timestamp
	}

	block := database.NewBlock(parent, timestamp, s.mempool.Take(), proof)

	s.db.Write(block)
	s.advanceTip()
	s.blocksMined.Add(1)

	s.blockEvent(block)

	// Propose the new block to the network.
	s.signalShareBlock(block)

	return block.Copy(), nil
}

// ProcessProposedBlock takes a block received from a peer, validates it
// extends the current tip and if that passes, adds the block to the local
// blockchain. Only the single block is checked, not the peer's whole chain.
func (s *State) ProcessProposedBlock(block database.Block, proof uint64) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", block.PreviousHash, block.Hash(), len(block.Transactions))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", block.Hash())

	s.mu.Lock()
	defer s.mu.Unlock()

	tip := s.db.LatestBlock()
	if err := tip.ValidateNext(s.genesis.Difficulty, block, proof); err != nil {
		s.evHandler("state: ProcessProposedBlock: REJECTED: %s", err)
		return err
	}

	s.db.Write(block)

	// If a proof search is running against the old tip it needs to
	// stop immediately.
	s.advanceTip()
	s.blocksAccepted.Add(1)

	s.blockEvent(block)

	return nil
}

// AcceptExternalBlock is the boolean form of ProcessProposedBlock.
func (s *State) AcceptExternalBlock(block database.Block, proof uint64) bool {
	return s.ProcessProposedBlock(block, proof) == nil
}

// =============================================================================

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"block":%s}`, block.Hash(), string(blockJSON))
}
