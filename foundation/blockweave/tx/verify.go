package tx

import (
	"bytes"
	"errors"
	"math"
	"strconv"

	"github.com/weavechain/weaved/foundation/blockweave/genesis"
	"github.com/weavechain/weaved/foundation/blockweave/signature"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// Reason codes recorded when a transaction is rejected. The strings are
// part of the node's observable behavior and must stay stable.
var (
	ErrSignatureNotValid  = errors.New("tx_signature_not_valid")
	ErrTooCheap           = errors.New("tx_too_cheap")
	ErrFieldsTooLarge     = errors.New("tx_fields_too_large")
	ErrTagIllegal         = errors.New("tag_field_illegally_specified")
	ErrLastTxNotValid     = errors.New("last_tx_not_valid")
	ErrIDNotValid         = errors.New("tx_id_not_valid")
	ErrVerificationFailed = errors.New("tx_verification_failed")
)

// Verify validates a single transaction against the current difficulty and
// ledger snapshot. The checks mirror the acceptance rules every node runs
// before admitting a transaction to its mempool or a block.
func Verify(t Tx, diff uint, wallets wallet.List) error {
	if err := verifySizes(t); err != nil {
		return err
	}

	for _, tag := range t.Tags {
		if len(tag.Name) == 0 {
			return ErrTagIllegal
		}
	}

	if t.Reward < MinCost(len(t.Data), diff) {
		return ErrTooCheap
	}

	if t.Target != "" && t.FromAddress() == t.Target {
		return ErrVerificationFailed
	}

	if !bytes.Equal(t.ID, signature.Hash(t.Signature)) {
		return ErrIDNotValid
	}

	if t.IsSystem() {
		return nil
	}

	if !signature.Verify(t.Owner, t.SignatureSegment(), t.Signature) {
		return ErrSignatureNotValid
	}

	if err := verifyLastTx(t, wallets); err != nil {
		return err
	}

	// Applying the transaction must leave the sender non-negative.
	sender, found := wallets.Find(t.FromAddress())
	if found && sender.Balance < t.Quantity+t.Reward {
		return ErrVerificationFailed
	}

	return nil
}

// verifySizes enforces the per-field byte caps.
func verifySizes(t Tx) error {
	switch {
	case len(t.ID) > genesis.MaxIDSize,
		len(t.LastTx) > genesis.MaxLastTxSize,
		len(t.Owner) > genesis.MaxOwnerSize,
		len(t.Target) > genesis.MaxTargetSize,
		len(t.Data) > genesis.MaxDataSize,
		len(t.Signature) > genesis.MaxSigSize,
		len(strconv.FormatUint(t.Quantity, 10)) > genesis.MaxAmountSize,
		len(strconv.FormatUint(t.Reward, 10)) > genesis.MaxAmountSize,
		tagsSize(t.Tags) > genesis.MaxTagsSize:
		return ErrFieldsTooLarge
	}

	return nil
}

// verifyLastTx checks the replay protection token. A missing sender wallet
// is only acceptable against the empty ledger.
func verifyLastTx(t Tx, wallets wallet.List) error {
	sender, found := wallets.Find(t.FromAddress())
	if !found {
		if len(wallets) == 0 {
			return nil
		}
		return ErrLastTxNotValid
	}

	if !bytes.Equal(sender.LastTx, t.LastTx) {
		return ErrLastTxNotValid
	}

	return nil
}

// tagsSize sums the byte weight of the tag sequence.
func tagsSize(tags []Tag) int {
	var size int
	for _, tag := range tags {
		size += len(tag.Name) + len(tag.Value)
	}
	return size
}

// =============================================================================

// MinCost computes the minimum acceptable reward in winston for storing
// dataSize bytes at the specified difficulty. Cheap storage at high
// difficulty, exponentially more expensive as the payload grows.
func MinCost(dataSize int, diff uint) uint64 {
	d := float64(diff)
	if diff < genesis.DiffCenter {
		d = genesis.DiffCenter
	}

	size := float64(dataSize + 3210)
	divisor := math.Max(d-(genesis.DiffCenter-2), 2)
	cost := 2 * size * genesis.CostPerByte / divisor * math.Pow(1.2, size/1048576)

	return uint64(cost)
}
