package block

import (
	"bytes"
	"errors"

	"github.com/weavechain/weaved/foundation/blockweave/ledger"
)

// Rejection reasons recorded when a received block fails validation.
var (
	ErrHeightNotValid     = errors.New("block_height_not_valid")
	ErrLinkageNotValid    = errors.New("block_linkage_not_valid")
	ErrWalletListNotValid = errors.New("block_wallet_list_not_valid")
	ErrRecallNotValid     = errors.New("block_recall_not_valid")
	ErrTxsNotValid        = errors.New("block_txs_not_valid")
	ErrPowNotValid        = errors.New("block_pow_not_valid")
	ErrRetargetNotValid   = errors.New("block_retarget_not_valid")
	ErrIndepHashNotValid  = errors.New("block_indep_hash_not_valid")
	ErrSizeNotValid       = errors.New("block_size_not_valid")
)

// Validate runs the full acceptance check for a block received on top of
// prev with the specified recall block. Every check a mining node ran to
// produce the block is re-run here, so a block either extends every honest
// node's weave or none.
func Validate(b Block, prev Block, recall Block, ev EventHandler) error {
	ev = safe(ev)

	if b.Height != prev.Height+1 {
		ev("block: validate: blk[%s]: height %d does not follow %d", b, b.Height, prev.Height)
		return ErrHeightNotValid
	}

	if err := validateLinkage(b, prev); err != nil {
		ev("block: validate: blk[%s]: linkage to prev %s broken", b, prev)
		return err
	}

	if err := validateWalletList(b, prev, ev); err != nil {
		ev("block: validate: blk[%s]: wallet list does not replay", b)
		return err
	}

	if !bytes.Equal(recall.IndepHash, RecallHash(b.HashList)) {
		ev("block: validate: blk[%s]: recall block %s is not the selected one", b, recall)
		return ErrRecallNotValid
	}

	if err := ledger.VerifyTxs(prev.WalletList, b.Txs, b.Diff, ledger.EventHandler(ev)); err != nil {
		ev("block: validate: blk[%s]: tx verification: %s", b, err)
		return ErrTxsNotValid
	}

	segment := DataSegment(b.Txs, recall, b.RewardAddr)
	powHash, ok := PowVerify(prev.Hash, b.Diff, segment, b.Nonce)
	if !ok || !bytes.Equal(powHash, b.Hash) {
		ev("block: validate: blk[%s]: proof of work does not verify", b)
		return ErrPowNotValid
	}

	if !verifyRetarget(b, prev) {
		ev("block: validate: blk[%s]: difficulty off the retarget schedule", b)
		return ErrRetargetNotValid
	}

	if !bytes.Equal(b.IndepHash, b.ComputeIndepHash()) {
		ev("block: validate: blk[%s]: indep hash does not recompute", b)
		return ErrIndepHashNotValid
	}

	if b.BlockSize != txsDataSize(b.Txs) || b.WeaveSize != prev.WeaveSize+b.BlockSize {
		ev("block: validate: blk[%s]: weave size accounting broken", b)
		return ErrSizeNotValid
	}

	return nil
}

// validateLinkage checks the hash list extends the predecessor's by
// exactly its indep hash.
func validateLinkage(b Block, prev Block) error {
	if !bytes.Equal(b.PrevHash, prev.IndepHash) {
		return ErrLinkageNotValid
	}

	if len(b.HashList) != len(prev.HashList)+1 {
		return ErrLinkageNotValid
	}

	if !bytes.Equal(b.HashList[0], prev.IndepHash) {
		return ErrLinkageNotValid
	}

	for i, h := range prev.HashList {
		if !bytes.Equal(b.HashList[i+1], h) {
			return ErrLinkageNotValid
		}
	}

	return nil
}

// validateWalletList replays the block's transactions and mining reward
// over the predecessor's ledger and compares the result.
func validateWalletList(b Block, prev Block, ev EventHandler) error {
	wallets := ledger.ApplyTxs(prev.WalletList, b.Txs, ledger.EventHandler(ev))
	wallets = ledger.ApplyMiningReward(wallets, b.RewardAddr, b.Txs, b.Height)

	if !wallets.Equal(b.WalletList) {
		return ErrWalletListNotValid
	}

	return nil
}

// safe guards against a nil event handler.
func safe(ev EventHandler) EventHandler {
	if ev != nil {
		return ev
	}
	return func(v string, args ...any) {}
}
