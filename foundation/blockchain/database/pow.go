package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// DefaultDifficulty is the number of leading hex 0's a proof hash needs
// when the genesis file doesn't say otherwise.
const DefaultDifficulty uint = 5

// cancelCheckInterval is how many attempts are made between checks of the
// context during a proof search.
const cancelCheckInterval = 1 << 10

// =============================================================================

// ValidProof reports whether proof solves the POW puzzle for the parent's
// proof. The hash of the decimal concatenation of both proofs needs to start
// with difficulty number of 0's.
func ValidProof(difficulty uint, lastProof uint64, proof uint64) bool {
	return isHashSolved(difficulty, ProofHash(lastProof, proof))
}

// ProofHash returns the hex SHA-256 digest of the decimal concatenation of
// both proofs.
func ProofHash(lastProof uint64, proof uint64) string {
	guess := strconv.AppendUint(nil, lastProof, 10)
	guess = strconv.AppendUint(guess, proof, 10)

	hash := sha256.Sum256(guess)
	return hex.EncodeToString(hash[:])
}

// FindProof does the work of mining. Starting at 0 it scans increasing
// values until the first proof that solves the puzzle is found. The search
// has no upper bound, cancel the context to stop it.
func FindProof(ctx context.Context, difficulty uint, lastProof uint64) (uint64, error) {
	var proof uint64
	for {
		if proof%cancelCheckInterval == 0 && ctx.Err() != nil {
			return 0, ctx.Err()
		}

		if ValidProof(difficulty, lastProof, proof) {
			return proof, nil
		}

		proof++
	}
}

// isHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func isHashSolved(difficulty uint, hash string) bool {
	if difficulty > uint(len(hash)) {
		return false
	}

	return hash[:difficulty] == strings.Repeat("0", int(difficulty))
}
