// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// defaultDate is the creation time used for the genesis block when no
// genesis file is provided. Nodes need the same genesis to share a chain.
var defaultDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// defaultDifficulty mirrors database.DefaultDifficulty. It's repeated here
// since the database package depends on this one.
const defaultDifficulty = 5

// =============================================================================

// Genesis represents the genesis file.
type Genesis struct {
	Date       time.Time `json:"date"`       // Creation time of the genesis block.
	Difficulty uint      `json:"difficulty"` // How difficult it needs to be to solve the work problem.
}

// Default returns the genesis used when no file is provided.
func Default() Genesis {
	return Genesis{
		Date:       defaultDate,
		Difficulty: defaultDifficulty,
	}
}

// Load opens and consumes the genesis file. Fields missing from the file
// take their default values.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis file %s: %w", path, err)
	}

	if genesis.Difficulty == 0 || genesis.Difficulty > 64 {
		return Genesis{}, fmt.Errorf("genesis difficulty must be between 1 and 64, got %d", genesis.Difficulty)
	}

	return genesis, nil
}
