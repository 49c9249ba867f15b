// Package wallet maintains keypairs, address derivation and the wallet
// list that forms the replicated ledger of the weave.
package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/weavechain/weaved/foundation/blockweave/signature"
)

// AddressUnclaimed is the reward address carried by a block whose miner
// chose not to claim the reward.
const AddressUnclaimed Address = ""

// =============================================================================

// Address represents the fixed width hash of an owning public key,
// hex encoded with a 0x prefix.
type Address string

// ToAddress derives the address for the specified owner public key.
func ToAddress(owner []byte) Address {
	return Address(signature.Hex(signature.Hash(owner)))
}

// ToAddressString converts a hex-encoded string to an address and validates
// the hex-encoded string is formatted correctly.
func ToAddressString(hexStr string) (Address, error) {
	a := Address(hexStr)
	if !a.IsValid() {
		return "", errors.New("invalid address format")
	}

	return a, nil
}

// IsValid verifies whether the underlying data represents a valid
// hex-encoded address.
func (a Address) IsValid() bool {
	if len(a) != 2+2*signature.HashSize {
		return false
	}
	if a[0] != '0' || (a[1] != 'x' && a[1] != 'X') {
		return false
	}

	_, err := hex.DecodeString(string(a[2:]))
	return err == nil
}

// IsUnclaimed reports whether the address represents the unclaimed
// reward sentinel.
func (a Address) IsUnclaimed() bool {
	return a == AddressUnclaimed
}

// Bytes returns the canonical byte form of the address for inclusion in
// hashed data segments.
func (a Address) Bytes() []byte {
	if a.IsUnclaimed() {
		return []byte("unclaimed")
	}

	return []byte(a)
}

// =============================================================================

// Keys represents a keypair that can own wallets and sign transactions.
type Keys struct {
	PrivateKey *ecdsa.PrivateKey
}

// GenerateKeys constructs a fresh secp256k1 keypair.
func GenerateKeys() (Keys, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return Keys{}, err
	}

	return Keys{PrivateKey: privateKey}, nil
}

// LoadKeys reads a hex-encoded private key from the specified file.
func LoadKeys(path string) (Keys, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return Keys{}, err
	}

	return Keys{PrivateKey: privateKey}, nil
}

// Save writes the private key hex-encoded to the specified file.
func (k Keys) Save(path string) error {
	return crypto.SaveECDSA(path, k.PrivateKey)
}

// Owner returns the uncompressed public key bytes. This is the value
// carried in a transaction's owner field.
func (k Keys) Owner() []byte {
	return crypto.FromECDSAPub(&k.PrivateKey.PublicKey)
}

// Address returns the wallet address for this keypair.
func (k Keys) Address() Address {
	return ToAddress(k.Owner())
}

// =============================================================================

// Wallet represents a single entry in the wallet list.
type Wallet struct {
	Address Address `json:"address"`
	Balance uint64  `json:"balance"`
	LastTx  []byte  `json:"last_tx"`
}

// List represents a ledger snapshot: the set of wallets with strictly
// positive balances, sorted by address for canonical comparison.
type List []Wallet

// Find locates the wallet with the specified address.
func (l List) Find(addr Address) (Wallet, bool) {
	for _, w := range l {
		if w.Address == addr {
			return w, true
		}
	}

	return Wallet{}, false
}

// Clone returns an independent copy of the list so a worker can hold a
// snapshot while the node keeps mutating its own.
func (l List) Clone() List {
	clone := make(List, len(l))
	copy(clone, l)
	return clone
}

// Normalize filters zero balance wallets and sorts the remaining entries
// by address. Every reducer pass ends with a normalized list.
func (l List) Normalize() List {
	wallets := make(List, 0, len(l))
	for _, w := range l {
		if w.Balance > 0 {
			wallets = append(wallets, w)
		}
	}

	sort.Slice(wallets, func(i, j int) bool {
		return wallets[i].Address < wallets[j].Address
	})

	return wallets
}

// Equal reports whether two normalized wallet lists carry the same entries.
func (l List) Equal(other List) bool {
	if len(l) != len(other) {
		return false
	}

	for i := range l {
		if l[i].Address != other[i].Address || l[i].Balance != other[i].Balance {
			return false
		}
		if string(l[i].LastTx) != string(other[i].LastTx) {
			return false
		}
	}

	return true
}
