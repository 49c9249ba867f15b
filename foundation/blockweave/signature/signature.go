// Package signature provides the hashing and signing primitives used
// throughout the blockweave.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// HashSize is the size in bytes of every hash produced by this package.
// The weave uses a 256 bit hash for block ids, transaction ids and addresses.
const HashSize = 32

// SignatureLength is the size in bytes of a signature in [R|S|V] format.
const SignatureLength = crypto.SignatureLength

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// =============================================================================

// Hash returns the 256 bit hash over the concatenation of the specified
// byte segments.
func Hash(segments ...[]byte) []byte {
	h := sha256.New()
	for _, seg := range segments {
		h.Write(seg)
	}
	return h.Sum(nil)
}

// HashValue returns the 256 bit hash over the canonical JSON encoding of
// the specified value. Used for block independent hashes where the value
// is a fixed field ordering.
func HashValue(value any) []byte {
	data, err := json.Marshal(value)
	if err != nil {
		return make([]byte, HashSize)
	}

	hash := sha256.Sum256(data)
	return hash[:]
}

// Hex returns the 0x prefixed hex encoding for a hash.
func Hex(hash []byte) string {
	return hexutil.Encode(hash)
}

// FromHex decodes a 0x prefixed hex encoding back into hash bytes.
func FromHex(s string) ([]byte, error) {
	return hexutil.Decode(s)
}

// =============================================================================

// Sign uses the specified private key to sign the canonical byte segment.
// The returned signature is in the 65 byte [R|S|V] format.
func Sign(segment []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest(segment), privateKey)
	if err != nil {
		return nil, err
	}

	return sig, nil
}

// Verify reports whether the signature verifies the canonical byte segment
// against the owner public key. The owner is the uncompressed 65 byte
// public key of the signer.
func Verify(owner []byte, segment []byte, sig []byte) bool {
	if len(sig) < crypto.RecoveryIDOffset {
		return false
	}

	return crypto.VerifySignature(owner, digest(segment), sig[:crypto.RecoveryIDOffset])
}

// =============================================================================

// digest produces the 32 byte digest that is actually signed. The stamp
// keeps signatures unique to the weave network.
func digest(segment []byte) []byte {
	segHash := crypto.Keccak256(segment)
	stamp := []byte("\x19Weave Signed Message:\n32")

	return crypto.Keccak256(stamp, segHash)
}
