package node

import (
	"bytes"
	"context"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/ledger"
	"github.com/weavechain/weaved/foundation/blockweave/miner"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
)

// handleNewBlock runs the block acceptance state machine for a block
// announced by a peer.
func (n *Node) handleNewBlock(ctx context.Context, msg msgNewBlock) {
	b := msg.Block

	if msg.From.Host != "" {
		n.bus.AddPeer(msg.From)
	}

	if !n.joined {
		n.evHandler("node: new block: blk[%s]: not joined, routing to join", b)
		if n.rec != nil {
			n.rec.UpdateTarget(b, msg.From)
			return
		}
		n.startJoin(ctx)
		n.rec.UpdateTarget(b, msg.From)
		return
	}

	if n.rec != nil {
		n.rec.UpdateTarget(b, msg.From)
		return
	}

	switch {
	case b.Height <= n.tipHeight():
		n.evHandler("node: new block: blk[%s]: height[%d] not above tip[%d], dropping", b, b.Height, n.tipHeight())

	case b.Height == n.tipHeight()+1:
		tipBlk, err := n.tip()
		if err != nil {
			n.evHandler("node: new block: ERROR: tip not in store: %s", err)
			return
		}

		if err := block.Validate(b, tipBlk, msg.Recall, block.EventHandler(n.evHandler)); err != nil {
			n.evHandler("node: new block: blk[%s]: invalid on our tip, recovering: %s", b, err)
			n.startRecovery(ctx, msg.From, b)
			return
		}

		n.integrate(ctx, b, msg.Recall, false)

	default:
		n.evHandler("node: new block: blk[%s]: height[%d] ahead of tip[%d], recovering", b, b.Height, n.tipHeight())
		n.startRecovery(ctx, msg.From, b)
	}
}

// integrate adopts a validated block: persist it and its recall block's
// transactions, advance the chain, drop included transactions from the
// mempool and, when automining, restart the miner.
func (n *Node) integrate(ctx context.Context, b block.Block, recall block.Block, mined bool) {
	if err := n.storer.WriteBlock(b); err != nil {
		n.evHandler("node: integrate: ERROR: write block: %s", err)
		return
	}
	if err := n.storer.WriteTxs(recall.Txs); err != nil {
		n.evHandler("node: integrate: ERROR: write recall txs: %s", err)
		return
	}

	n.stopMiner()

	n.hashList = append([][]byte{b.IndepHash}, n.hashList...)
	n.walletList = b.WalletList
	n.txs = mempoolWithout(n.txs, b.Txs)
	n.pruneMempool()

	n.evHandler("node: integrate: accepted blk[%s]: height[%d] txs[%d] mempool[%d]", b, b.Height, len(b.Txs), len(n.txs))

	if mined {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.bus.PublishBlock(ctx, b, recall)
		}()
	}

	if n.automine {
		n.startMiner()
	}
}

// handleAddTx admits a transaction to the mempool. Already known or
// already mined transactions are ignored without error.
func (n *Node) handleAddTx(ctx context.Context, msg msgAddTx) error {
	if !n.joined {
		return ErrNotJoined
	}

	t := msg.Tx

	if n.mempoolHas(t.ID) {
		n.evHandler("node: add tx: tx[%s]: already in mempool", t)
		return nil
	}

	onChain, err := n.onChain(t.ID)
	if err != nil {
		return err
	}
	if onChain {
		n.evHandler("node: add tx: tx[%s]: already on chain", t)
		return nil
	}

	tipBlk, err := n.tip()
	if err != nil {
		return err
	}

	running := ledger.ApplyTxs(n.walletList, n.txs, ledger.EventHandler(n.evHandler))
	if err := tx.Verify(t, tipBlk.Diff, running); err != nil {
		n.evHandler("node: add tx: tx[%s]: rejected: %s", t, err)
		return err
	}

	n.txs = append(n.txs, t)
	n.evHandler("node: add tx: tx[%s]: admitted: mempool[%d]", t, len(n.txs))

	n.notifyMiner()

	if msg.Gossip {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.bus.PublishTx(ctx, t)
		}()
	}

	return nil
}

// mempoolHas reports whether a transaction id is already pooled.
func (n *Node) mempoolHas(id []byte) bool {
	for _, t := range n.txs {
		if bytes.Equal(t.ID, id) {
			return true
		}
	}
	return false
}

// onChain reports whether a transaction id is included in a recent block.
// Only the hot span of the chain is checked.
func (n *Node) onChain(id []byte) (bool, error) {
	depth := len(n.hashList)
	if depth > n.storer.KeepLast() {
		depth = n.storer.KeepLast()
	}

	for _, h := range n.hashList[:depth] {
		b, err := n.storer.GetBlock(h)
		if err != nil {
			return false, err
		}
		for _, bt := range b.Txs {
			if bytes.Equal(bt.ID, id) {
				return true, nil
			}
		}
	}

	return false, nil
}

// mempoolWithout filters out the transactions included in a block.
func mempoolWithout(pool []tx.Tx, mined []tx.Tx) []tx.Tx {
	kept := pool[:0]

	for _, t := range pool {
		included := false
		for _, m := range mined {
			if bytes.Equal(t.ID, m.ID) {
				included = true
				break
			}
		}
		if !included {
			kept = append(kept, t)
		}
	}

	return kept
}

// notifyMiner swaps the running miner's data for the grown mempool.
func (n *Node) notifyMiner() {
	if n.mnr == nil {
		return
	}

	tipBlk, err := n.tip()
	if err != nil {
		return
	}

	recall, err := n.recallBlock()
	if err != nil {
		n.evHandler("node: notify miner: ERROR: %s", err)
		return
	}

	txs := n.minableTxs(tipBlk)
	n.mnr.ChangeData(miner.Data{
		Segment: block.DataSegment(txs, recall, n.rewardAddr),
		Txs:     txs,
	})
}
