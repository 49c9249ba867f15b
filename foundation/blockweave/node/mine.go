package node

import (
	"bytes"
	"context"
	"time"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/ledger"
	"github.com/weavechain/weaved/foundation/blockweave/miner"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
)

// startMiner spawns a fresh mining worker over the current mempool. A
// miner already running keeps going.
func (n *Node) startMiner() {
	if !n.joined || n.mnr != nil {
		return
	}

	tipBlk, err := n.tip()
	if err != nil {
		n.evHandler("node: start miner: ERROR: tip not in store: %s", err)
		return
	}

	recall, err := n.recallBlock()
	if err != nil {
		n.evHandler("node: start miner: ERROR: recall block: %s", err)
		return
	}

	diff, _ := block.NextDifficulty(tipBlk, tipBlk.Height+1, time.Now().Unix())
	txs := n.minableTxs(tipBlk)

	data := miner.Data{
		Segment: block.DataSegment(txs, recall, n.rewardAddr),
		Txs:     txs,
	}

	n.mnr = miner.New(tipBlk.Hash, diff, data, n.miningDelay, miner.EventHandler(n.evHandler))

	n.evHandler("node: start miner: height[%d] diff[%d] txs[%d]", tipBlk.Height+1, diff, len(txs))

	mnr := n.mnr
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		mnr.Run()
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case work := <-mnr.Complete():
			n.send(msgWorkComplete{work: work})
		case <-n.shut:
		}
	}()
}

// stopMiner cancels the running miner, if any.
func (n *Node) stopMiner() {
	if n.mnr == nil {
		return
	}

	n.mnr.Stop()
	n.mnr = nil
}

// handleWorkComplete assembles the candidate block from a mining proof,
// validates it exactly like a received block and integrates it.
func (n *Node) handleWorkComplete(ctx context.Context, work miner.Work) {
	n.mnr = nil

	if !n.joined {
		return
	}

	tipBlk, err := n.tip()
	if err != nil {
		n.evHandler("node: work complete: ERROR: tip not in store: %s", err)
		return
	}

	// A proof mined against a stale tip is worthless.
	if !bytes.Equal(work.PrevPowHash, tipBlk.Hash) {
		n.evHandler("node: work complete: proof is for a stale tip, discarding")
		n.restartMiner()
		return
	}

	now := time.Now().Unix()
	diff, lastRetarget := block.NextDifficulty(tipBlk, tipBlk.Height+1, now)

	// The difficulty may retarget between miner start and proof
	// delivery. The proof is then no longer valid for the block we
	// would build.
	if diff != work.Diff {
		n.evHandler("node: work complete: difficulty moved [%d]->[%d], discarding", work.Diff, diff)
		n.restartMiner()
		return
	}

	wallets := ledger.ApplyTxs(n.walletList, work.Txs, ledger.EventHandler(n.evHandler))
	wallets = ledger.ApplyMiningReward(wallets, n.rewardAddr, work.Txs, tipBlk.Height+1)

	b := block.Add(tipBlk, wallets, work.Txs, work.Nonce, work.Hash, diff, now, lastRetarget, n.rewardAddr)

	recall, err := n.recallBlock()
	if err != nil {
		n.evHandler("node: work complete: ERROR: recall block: %s", err)
		return
	}

	if err := block.Validate(b, tipBlk, recall, block.EventHandler(n.evHandler)); err != nil {
		n.evHandler("node: work complete: candidate blk[%s] failed validation, discarding: %s", b, err)
		n.restartMiner()
		return
	}

	n.integrate(ctx, b, recall, true)
}

// restartMiner stops and restarts mining when automining.
func (n *Node) restartMiner() {
	n.stopMiner()
	if n.automine {
		n.startMiner()
	}
}

// recallBlock resolves and loads the recall block for the next block on
// top of the current chain.
func (n *Node) recallBlock() (block.Block, error) {
	return n.storer.GetBlock(block.RecallHash(n.hashList))
}

// minableTxs selects the mempool transactions that verify in order
// against the current ledger.
func (n *Node) minableTxs(tipBlk block.Block) []tx.Tx {
	var txs []tx.Tx
	running := n.walletList.Clone()

	for _, t := range n.txs {
		if err := tx.Verify(t, tipBlk.Diff, running); err != nil {
			n.evHandler("node: minable txs: tx[%s]: skipping: %s", t, err)
			continue
		}
		running = ledger.ApplyTx(running, t, ledger.EventHandler(n.evHandler))
		txs = append(txs, t)
	}

	return txs
}
