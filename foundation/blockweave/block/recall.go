package block

import (
	"math/big"
)

// RecallIndex derives the deterministic recall index from a block's indep
// hash and height. The hash is interpreted as an unsigned big-endian
// integer and reduced modulo the height, so the index is uniform over the
// existing weave and every node agrees on it.
func RecallIndex(indepHash []byte, height uint64) uint64 {
	if height == 0 {
		return 0
	}

	n := new(big.Int).SetBytes(indepHash)
	n.Mod(n, new(big.Int).SetUint64(height))

	return n.Uint64()
}

// RecallHash selects the recall block's indep hash for the block being
// built or validated on top of the chain. The chain lists indep hashes
// newest first, the tip at index 0. The index derives from the tip itself,
// so a block and its validators always agree on the choice.
func RecallHash(chain [][]byte) []byte {
	if len(chain) == 0 {
		return nil
	}

	// The chain carries one hash per existing block, so its length is
	// the height of the block under construction.
	height := uint64(len(chain))
	idx := RecallIndex(chain[0], height)

	// Index counts from genesis, the list counts from the tip.
	return chain[len(chain)-1-int(idx)]
}
