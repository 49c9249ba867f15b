package block

import (
	"github.com/weavechain/weaved/foundation/blockweave/genesis"
)

// IsRetargetHeight reports whether a block at the specified height must
// carry a freshly retargeted difficulty.
func IsRetargetHeight(height uint64) bool {
	return height > 0 && height%genesis.RetargetBlocks == 0
}

// CalculateDifficulty computes the difficulty for a retarget block from
// the time the last retarget window took. Each difficulty bit doubles
// the expected work, so the correction is the base two log of the ratio
// between the target window and the actual one, rounded toward zero.
// A single retarget never scales the work by more than the tolerance
// factor, and the result never drops below the minimum.
func CalculateDifficulty(prevDiff uint, timestamp int64, lastRetarget int64) uint {
	const target = int64(genesis.TargetTime * genesis.RetargetBlocks)

	actual := timestamp - lastRetarget
	if actual <= 0 {
		actual = 1
	}

	var shift int
	for s := 1; int64(1)<<uint(s) <= genesis.RetargetToleranceFactor; s++ {
		switch {
		case actual<<uint(s) <= target:
			shift = s
		case target<<uint(s) <= actual:
			shift = -s
		}
	}

	diff := int(prevDiff) + shift
	if diff < genesis.MinDiff {
		diff = genesis.MinDiff
	}

	return uint(diff)
}

// NextDifficulty returns the difficulty and last retarget timestamp a new
// block at the specified height and timestamp must carry on top of prev.
func NextDifficulty(prev Block, height uint64, timestamp int64) (diff uint, lastRetarget int64) {
	if !IsRetargetHeight(height) {
		return prev.Diff, prev.LastRetarget
	}

	return CalculateDifficulty(prev.Diff, timestamp, prev.LastRetarget), timestamp
}

// verifyRetarget checks that a block's difficulty and last retarget
// timestamp follow the retarget schedule relative to its predecessor.
func verifyRetarget(b Block, prev Block) bool {
	if !IsRetargetHeight(b.Height) {
		return b.Diff == prev.Diff && b.LastRetarget == prev.LastRetarget
	}

	if b.LastRetarget != b.Timestamp {
		return false
	}

	return b.Diff == CalculateDifficulty(prev.Diff, b.Timestamp, prev.LastRetarget)
}
