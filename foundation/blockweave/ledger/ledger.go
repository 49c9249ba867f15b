// Package ledger implements the wallet list reducer: the deterministic
// fold that turns an ordered transaction list into a new ledger snapshot.
package ledger

import (
	"bytes"
	"math"

	"github.com/weavechain/weaved/foundation/blockweave/genesis"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// EventHandler defines a function that is called when events occur while
// reducing the ledger.
type EventHandler func(v string, args ...any)

// ApplyTxs folds each transaction in order into the wallet list, yielding
// a new normalized list. Transactions that do not apply are skipped with a
// log line only, matching the behavior of every other node replaying the
// same block.
func ApplyTxs(wallets wallet.List, txs []tx.Tx, ev EventHandler) wallet.List {
	ev = safe(ev)

	next := wallets.Clone()
	for _, t := range txs {
		next = ApplyTx(next, t, ev)
	}

	return next.Normalize()
}

// ApplyTx applies a single transaction to the wallet list. A transfer
// debits the sender by quantity+reward and credits the target. A data-only
// transaction debits the reward and threads last_tx.
func ApplyTx(wallets wallet.List, t tx.Tx, ev EventHandler) wallet.List {
	ev = safe(ev)

	if t.IsSystem() {
		return creditTarget(wallets, t.Target, t.Quantity)
	}

	from := t.FromAddress()
	idx := indexOf(wallets, from)
	if idx < 0 {
		ev("ledger: ApplyTx: tx[%s]: sender %s not in wallet list, skipping", t, from)
		return wallets
	}

	if !bytes.Equal(wallets[idx].LastTx, t.LastTx) {
		ev("ledger: ApplyTx: tx[%s]: last_tx mismatch for %s, skipping", t, from)
		return wallets
	}

	cost := t.Quantity + t.Reward
	if t.Target == "" {
		cost = t.Reward
	}
	if wallets[idx].Balance < cost {
		ev("ledger: ApplyTx: tx[%s]: insufficient balance for %s, skipping", t, from)
		return wallets
	}

	next := wallets.Clone()
	next[idx].Balance -= cost
	next[idx].LastTx = t.ID

	if t.Target == "" {
		return next
	}

	return creditTarget(next, t.Target, t.Quantity)
}

// ApplyMiningReward credits the reward address with the static reward for
// the block height plus the sum of the transaction rewards. An unclaimed
// address leaves the list unchanged.
func ApplyMiningReward(wallets wallet.List, rewardAddr wallet.Address, txs []tx.Tx, height uint64) wallet.List {
	if rewardAddr.IsUnclaimed() {
		return wallets
	}

	reward := StaticReward(height)
	for _, t := range txs {
		reward += t.Reward
	}

	return creditTarget(wallets, rewardAddr, reward).Normalize()
}

// StaticReward computes the inflation component of the mining reward in
// winston for a block at the specified height. The reward halves every
// BlockRewardDivisor blocks.
func StaticReward(height uint64) uint64 {
	const supply = float64(genesis.GenesisTokens) * float64(genesis.WinstonPerToken)
	const divisor = float64(genesis.BlockRewardDivisor)

	reward := 0.2 * supply * math.Exp2(-float64(height)/divisor) * math.Ln2 / divisor

	return uint64(reward)
}

// =============================================================================

// VerifyTxs validates an ordered transaction list, applying each verified
// transaction to the running ledger before checking the next. Order
// matters: a later transaction may depend on the last_tx threaded by an
// earlier one.
func VerifyTxs(wallets wallet.List, txs []tx.Tx, diff uint, ev EventHandler) error {
	ev = safe(ev)

	running := wallets.Clone()
	for _, t := range txs {
		if err := tx.Verify(t, diff, running); err != nil {
			return err
		}
		running = ApplyTx(running, t, ev)
	}

	return nil
}

// =============================================================================

// safe guards against a nil event handler.
func safe(ev EventHandler) EventHandler {
	if ev != nil {
		return ev
	}
	return func(v string, args ...any) {}
}

// creditTarget adds quantity to the target wallet, creating the wallet
// with an empty last_tx on first credit.
func creditTarget(wallets wallet.List, target wallet.Address, quantity uint64) wallet.List {
	next := wallets.Clone()

	if idx := indexOf(next, target); idx >= 0 {
		next[idx].Balance += quantity
		return next
	}

	return append(next, wallet.Wallet{Address: target, Balance: quantity})
}

// indexOf locates a wallet by address.
func indexOf(wallets wallet.List, addr wallet.Address) int {
	for i := range wallets {
		if wallets[i].Address == addr {
			return i
		}
	}

	return -1
}
