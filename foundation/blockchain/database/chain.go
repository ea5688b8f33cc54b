package database

import (
	"errors"
	"fmt"
)

// Set of errors describing why a chain failed validation.
var (
	ErrEmptyChain   = errors.New("chain has no genesis block")
	ErrChainLinkage = errors.New("previous hash doesn't match parent block")
	ErrInvalidProof = errors.New("proof doesn't solve the puzzle")
)

// ValidateChain walks the chain from the second block verifying every block
// links to its parent by hash and carries a proof that solves the puzzle
// against the parent's proof. The first violation found is returned.
func ValidateChain(difficulty uint, chain []Block) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}

	for i := 1; i < len(chain); i++ {
		prev, curr := chain[i-1], chain[i]

		if curr.PreviousHash != prev.Hash() {
			return fmt.Errorf("block[%d]: %w", i, ErrChainLinkage)
		}

		if !ValidProof(difficulty, prev.Proof, curr.Proof) {
			return fmt.Errorf("block[%d]: %w", i, ErrInvalidProof)
		}
	}

	return nil
}

// IsValidChain is the boolean form of ValidateChain.
func IsValidChain(difficulty uint, chain []Block) bool {
	return ValidateChain(difficulty, chain) == nil
}
