package database

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBlockRejected is returned when a proposed block does not extend the
// current tip of the chain.
var ErrBlockRejected = errors.New("block does not extend the chain")

// =============================================================================

// Block represents a group of transactions batched together and linked to
// the previous block in the chain by hash.
type Block struct {
	Index        uint64 `json:"index"`         // Position in the chain, 0 is genesis.
	Timestamp    int64  `json:"timestamp"`     // Unix nanoseconds the block was created.
	Transactions []Tx   `json:"transactions"`  // Batch of transactions mined into this block.
	Proof        uint64 `json:"proof"`         // Value that solves the POW puzzle against the parent proof.
	PreviousHash string `json:"previous_hash"` // Hash of the previous block in the chain.
}

// NewBlock constructs the block that follows the parent block.
func NewBlock(parent Block, timestamp int64, trans []Tx, proof uint64) Block {
	return Block{
		Index:        parent.Index + 1,
		Timestamp:    timestamp,
		Transactions: copyTxs(trans),
		Proof:        proof,
		PreviousHash: parent.Hash(),
	}
}

// Hash returns the unique hash for the Block.
func (b Block) Hash() string {
	return Hash(b)
}

// Copy returns a block that shares no memory with the original.
func (b Block) Copy() Block {
	b.Transactions = copyTxs(b.Transactions)
	return b
}

// ValidateNext checks the proposed block is the block that follows this one.
// The proof being verified is provided separately from the block since that
// is what a peer announces.
func (b Block) ValidateNext(difficulty uint, next Block, proof uint64) error {
	if next.PreviousHash != b.Hash() {
		return fmt.Errorf("%w: parent hash doesn't match our tip, got %s, exp %s", ErrBlockRejected, next.PreviousHash, b.Hash())
	}

	if !ValidProof(difficulty, b.Proof, proof) {
		return fmt.Errorf("%w: proof %d does not solve the puzzle for parent proof %d", ErrBlockRejected, proof, b.Proof)
	}

	if next.Proof != proof {
		return fmt.Errorf("%w: block proof %d doesn't match announced proof %d", ErrBlockRejected, next.Proof, proof)
	}

	if next.Index != b.Index+1 {
		return fmt.Errorf("%w: this block is not the next number, got %d, exp %d", ErrBlockRejected, next.Index, b.Index+1)
	}

	return nil
}

// =============================================================================

// canonicalTx is the hash input form of a transaction. Fields are declared
// in alphabetical order of their json keys.
type canonicalTx struct {
	Amount    uint64 `json:"amount"`
	Recipient string `json:"recipient"`
	Sender    string `json:"sender"`
}

// canonicalBlock is the hash input form of a block. Fields are declared in
// alphabetical order of their json keys.
type canonicalBlock struct {
	Index        uint64        `json:"index"`
	PreviousHash string        `json:"previous_hash"`
	Proof        uint64        `json:"proof"`
	Timestamp    int64         `json:"timestamp"`
	Transactions []canonicalTx `json:"transactions"`
}

// CanonicalBytes returns the byte encoding of the block used as hash input.
// The encoding is compact JSON with keys sorted at every level, integers in
// base 10 and an empty transaction list encoded as []. Two nodes holding
// blocks with the same field values produce identical bytes.
func CanonicalBytes(b Block) []byte {
	cb := canonicalBlock{
		Index:        b.Index,
		PreviousHash: b.PreviousHash,
		Proof:        b.Proof,
		Timestamp:    b.Timestamp,
		Transactions: make([]canonicalTx, len(b.Transactions)),
	}
	for i, tx := range b.Transactions {
		cb.Transactions[i] = canonicalTx{
			Amount:    tx.Amount,
			Recipient: tx.Recipient,
			Sender:    tx.Sender,
		}
	}

	// Only strings, integers and slices are being marshaled so this
	// can't fail.
	data, err := json.Marshal(cb)
	if err != nil {
		panic(fmt.Sprintf("canonical encoding of block %d: %s", b.Index, err))
	}

	return data
}

// Hash returns the lowercase hex SHA-256 digest of the block's canonical
// encoding.
func Hash(b Block) string {
	hash := sha256.Sum256(CanonicalBytes(b))
	return hex.EncodeToString(hash[:])
}
