// Package genesis maintains access to the genesis file and the chain
// parameters every node must agree on.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// Chain parameters. Changing any of these forks the network.
const (
	// RetargetBlocks is the number of blocks between difficulty retargets.
	RetargetBlocks = 10

	// TargetTime is the desired wall-clock seconds between blocks.
	TargetTime = 120

	// RetargetToleranceFactor caps how far a single retarget can scale
	// the expected work, in either direction.
	RetargetToleranceFactor = 4

	// StoreBlocksBehindCurrent is the upper bound on fork depth. A recovery
	// target further ahead than this of a recoverable predecessor aborts.
	StoreBlocksBehindCurrent = 50

	// KeepLastBlocks is how many full blocks a node keeps hot in memory.
	KeepLastBlocks = 50

	// GenesisTokens is the total token supply minted in the genesis block.
	GenesisTokens = 55_000_000

	// WinstonPerToken is the number of base units per token.
	WinstonPerToken = 1_000_000

	// CostPerByte is the base storage price per byte in winston.
	CostPerByte = 100_000

	// DiffCenter is the difficulty around which transaction pricing pivots.
	DiffCenter = 26

	// MinDiff is the floor a retarget can never drop below.
	MinDiff = 8

	// GenesisDiff is the difficulty carried by the genesis block.
	GenesisDiff = 8

	// BlockRewardDivisor controls the halving rate of the static mining
	// reward: the reward halves every BlockRewardDivisor blocks.
	BlockRewardDivisor = 105_120
)

// Transaction field size caps in bytes.
const (
	MaxIDSize     = 32
	MaxLastTxSize = 32
	MaxOwnerSize  = 512
	MaxTagsSize   = 2048
	MaxTargetSize = 66
	MaxAmountSize = 21
	MaxDataSize   = 6_000_000
	MaxSigSize    = 512
)

// =============================================================================

// Genesis represents the genesis file.
type Genesis struct {
	Date     time.Time         `json:"date"`
	ChainID  uint16            `json:"chain_id"`
	Balances map[string]uint64 `json:"balances"`
}

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}
