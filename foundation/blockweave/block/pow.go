package block

import (
	"math/bits"

	"github.com/weavechain/weaved/foundation/blockweave/signature"
)

// PowHash computes the proof of work hash for a nonce attempt. The
// previous block's pow hash chains the work, the data segment commits to
// the block contents and the recall block.
func PowHash(prevPowHash []byte, segment []byte, nonce []byte) []byte {
	return signature.Hash(prevPowHash, segment, nonce)
}

// PowSatisfied reports whether the hash carries at least diff leading
// zero bits.
func PowSatisfied(hash []byte, diff uint) bool {
	return leadingZeroBits(hash) >= diff
}

// PowVerify recomputes the pow hash for the specified nonce and reports
// whether it meets the difficulty.
func PowVerify(prevPowHash []byte, diff uint, segment []byte, nonce []byte) ([]byte, bool) {
	hash := PowHash(prevPowHash, segment, nonce)
	return hash, PowSatisfied(hash, diff)
}

// leadingZeroBits counts the zero bits before the first set bit.
func leadingZeroBits(hash []byte) uint {
	var count uint
	for _, b := range hash {
		if b == 0 {
			count += 8
			continue
		}
		count += uint(bits.LeadingZeros8(b))
		break
	}
	return count
}
