// Package database handles all the lower level support for maintaining the
// blockchain in memory: the block and transaction types, the canonical
// hashing rules, the proof of work puzzle and chain validation.
package database

import (
	"errors"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// ErrNotFound is returned when a block number doesn't exist in the chain.
var ErrNotFound = errors.New("block not found")

// Database manages the chain of blocks held by a node. Nothing is written
// to disk, a restarted node starts again from genesis.
type Database struct {
	mu      sync.RWMutex
	genesis genesis.Genesis
	chain   []Block
}

// New constructs a database holding only the genesis block.
func New(gen genesis.Genesis) *Database {
	return &Database{
		genesis: gen,
		chain:   []Block{GenesisBlock(gen)},
	}
}

// Genesis returns the genesis information the database was constructed with.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// LatestBlock returns the block at the tip of the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.chain[len(db.chain)-1].Copy()
}

// Length returns the number of blocks in the chain, genesis included.
func (db *Database) Length() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.chain)
}

// Write adds a new block to the end of the chain. Validating the block is
// the responsibility of the caller.
func (db *Database) Write(block Block) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.chain = append(db.chain, block.Copy())
}

// Replace swaps the whole chain for the specified one.
func (db *Database) Replace(chain []Block) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.chain = copyChain(chain)

	return nil
}

// Reset re-initializes the database back to the genesis block.
func (db *Database) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.chain = []Block{GenesisBlock(db.genesis)}
}

// Copy returns a copy of the full chain.
func (db *Database) Copy() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return copyChain(db.chain)
}

// GetBlock returns the block at the specified position in the chain.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if num >= uint64(len(db.chain)) {
		return Block{}, ErrNotFound
	}

	return db.chain[num].Copy(), nil
}

// copyChain performs a deep copy of the chain.
func copyChain(chain []Block) []Block {
	cpy := make([]Block, len(chain))
	for i, block := range chain {
		cpy[i] = block.Copy()
	}
	return cpy
}
