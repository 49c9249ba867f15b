// Package tx implements construction, canonical serialization, pricing and
// verification of weave transactions.
package tx

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/weavechain/weaved/foundation/blockweave/signature"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// Tag represents a single named byte pair attached to a transaction.
type Tag struct {
	Name  []byte `json:"name"`
	Value []byte `json:"value"`
}

// Tx is a transfer or data bearing transaction as it travels the wire and
// is recorded inside blocks.
type Tx struct {
	ID        []byte         `json:"id"`       // H(signature), assigned by Sign.
	LastTx    []byte         `json:"last_tx"`  // Replay protection token of the sender.
	Owner     []byte         `json:"owner"`    // Uncompressed public key of the sender, empty for system txs.
	Target    wallet.Address `json:"target"`   // Receiving address, empty for data-only txs.
	Quantity  uint64         `json:"quantity"` // Amount transferred in winston.
	Data      []byte         `json:"data"`     // Opaque payload stored in the weave.
	Reward    uint64         `json:"reward"`   // Mining fee in winston.
	Tags      []Tag          `json:"tags"`
	Signature []byte         `json:"signature"`
}

// New constructs an unsigned transaction. A transfer carries a target and
// quantity, a data transaction carries a payload and no target.
func New(target wallet.Address, quantity uint64, data []byte, reward uint64, lastTx []byte, tags []Tag) Tx {
	return Tx{
		LastTx:   lastTx,
		Target:   target,
		Quantity: quantity,
		Data:     data,
		Reward:   reward,
		Tags:     tags,
	}
}

// Sign signs the canonical signature segment with the specified keys and
// assigns the owner, signature and derived id.
func (t Tx) Sign(keys wallet.Keys) (Tx, error) {
	t.Owner = keys.Owner()

	sig, err := signature.Sign(t.SignatureSegment(), keys.PrivateKey)
	if err != nil {
		return Tx{}, err
	}

	t.Signature = sig
	t.ID = signature.Hash(sig)

	return t, nil
}

// SignatureSegment produces the canonical byte segment covered by the
// transaction signature:
// owner | target | data | ascii(quantity) | ascii(reward) | last_tx | tags.
func (t Tx) SignatureSegment() []byte {
	var buf bytes.Buffer

	buf.Write(t.Owner)
	buf.Write(t.Target.Bytes())
	buf.Write(t.Data)
	buf.WriteString(strconv.FormatUint(t.Quantity, 10))
	buf.WriteString(strconv.FormatUint(t.Reward, 10))
	buf.Write(t.LastTx)
	for _, tag := range t.Tags {
		buf.Write(tag.Name)
		buf.Write(tag.Value)
	}

	return buf.Bytes()
}

// FromAddress returns the sender address derived from the owner key.
func (t Tx) FromAddress() wallet.Address {
	return wallet.ToAddress(t.Owner)
}

// IsSystem reports whether this is a genesis/system transaction that
// bypasses replay protection.
func (t Tx) IsSystem() bool {
	return len(t.Owner) == 0
}

// DataSize returns the number of payload bytes this transaction adds to
// the weave.
func (t Tx) DataSize() uint64 {
	return uint64(len(t.Data))
}

// String implements the fmt.Stringer interface for logging.
func (t Tx) String() string {
	return fmt.Sprintf("%s:%d", shortHex(t.ID), t.Quantity)
}

// shortHex renders the first bytes of a hash for log lines.
func shortHex(h []byte) string {
	s := signature.Hex(h)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
