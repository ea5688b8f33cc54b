package database

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// GenesisBlock constructs block 0 of the chain from the genesis information.
// It has no transactions and a synthetic previous hash derived from the
// genesis date, so nodes loading the same genesis agree on block 0.
func GenesisBlock(gen genesis.Genesis) Block {
	date := gen.Date.UTC()
	hash := sha256.Sum256([]byte(date.Format(time.RFC3339Nano)))

	return Block{
		Index:        0,
		Timestamp:    date.UnixNano(),
		Transactions: []Tx{},
		Proof:        0,
		PreviousHash: hex.EncodeToString(hash[:]),
	}
}
