package node_test

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/genesis"
	"github.com/weavechain/weaved/foundation/blockweave/gossip"
	"github.com/weavechain/weaved/foundation/blockweave/ledger"
	"github.com/weavechain/weaved/foundation/blockweave/node"
	"github.com/weavechain/weaved/foundation/blockweave/peer"
	"github.com/weavechain/weaved/foundation/blockweave/store"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const bigReward = 500_000_000

// =============================================================================

func Test_SoloMine(t *testing.T) {
	sender := genKeys(t)
	receiver := genKeys(t)
	minerKeys := genKeys(t)

	t.Log("Given the need to mine a submitted transaction into a block.")
	{
		gen := genesis.Genesis{
			ChainID:  1,
			Balances: map[string]uint64{string(sender.Address()): 10 * bigReward},
		}

		nde, cancel := startNode(t, gen, minerKeys.Address())
		defer cancel()

		snap := nde.Query()
		if !snap.Joined || snap.Height != 0 {
			t.Fatalf("\t%s\tShould start joined at height zero on its own network.", failed)
		}
		t.Logf("\t%s\tShould start joined at height zero on its own network.", success)

		cheap, err := tx.New(receiver.Address(), 100, nil, 1, nil, nil).Sign(sender)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %s", failed, err)
		}
		if err := nde.SubmitTx(cheap); err == nil {
			t.Fatalf("\t%s\tShould reject a transaction under the storage price.", failed)
		}
		t.Logf("\t%s\tShould reject a transaction under the storage price.", success)

		t1, err := tx.New(receiver.Address(), 100, nil, bigReward, nil, nil).Sign(sender)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %s", failed, err)
		}
		if err := nde.SubmitTx(t1); err != nil {
			t.Fatalf("\t%s\tShould admit a priced transaction: %s", failed, err)
		}
		t.Logf("\t%s\tShould admit a priced transaction.", success)

		if err := nde.SubmitTx(t1); err != nil {
			t.Fatalf("\t%s\tShould ignore a duplicate submission: %s", failed, err)
		}
		if snap := nde.Query(); len(snap.Mempool) != 1 {
			t.Fatalf("\t%s\tShould pool the transaction once: got %d", failed, len(snap.Mempool))
		}
		t.Logf("\t%s\tShould pool the transaction once.", success)

		nde.StartMining()
		snap = waitForHeight(t, nde, 1)
		t.Logf("\t%s\tShould mine the next block.", success)

		if len(snap.Mempool) != 0 {
			t.Fatalf("\t%s\tShould drain the mined transaction from the mempool.", failed)
		}
		t.Logf("\t%s\tShould drain the mined transaction from the mempool.", success)

		rcv, found := snap.WalletList.Find(receiver.Address())
		if !found || rcv.Balance != 100 {
			t.Fatalf("\t%s\tShould credit the receiver in the new ledger.", failed)
		}
		t.Logf("\t%s\tShould credit the receiver in the new ledger.", success)

		mnr, found := snap.WalletList.Find(minerKeys.Address())
		if !found || mnr.Balance != ledger.StaticReward(1)+bigReward {
			t.Fatalf("\t%s\tShould credit the miner with static and tx rewards.", failed)
		}
		t.Logf("\t%s\tShould credit the miner with static and tx rewards.", success)

		tip, err := nde.LatestBlock()
		if err != nil || tip.Height != 1 || len(tip.Txs) != 1 {
			t.Fatalf("\t%s\tShould serve the mined block as the tip.", failed)
		}
		t.Logf("\t%s\tShould serve the mined block as the tip.", success)
	}
}

func Test_ReceiveBlock(t *testing.T) {
	minerKeys := genKeys(t)

	t.Log("Given the need to accept a block announced by a peer.")
	{
		gen := genesis.Genesis{
			ChainID:  1,
			Balances: map[string]uint64{string(minerKeys.Address()): 1000},
		}

		nde, cancel := startNode(t, gen, minerKeys.Address())
		defer cancel()

		gblk := nde.GenesisBlock()
		b1 := mineEmpty(t, gblk, gblk)

		nde.ReceiveBlock(peer.New("localhost:9085"), gossip.NewBlock{
			PeerID:      "localhost:9085",
			Height:      b1.Height,
			Block:       b1,
			RecallBlock: gblk,
		})

		snap := waitForHeight(t, nde, 1)
		if string(snap.HashList[0]) != string(b1.IndepHash) {
			t.Fatalf("\t%s\tShould adopt the announced block as the tip.", failed)
		}
		t.Logf("\t%s\tShould adopt the announced block as the tip.", success)

		if _, err := nde.GetBlock(b1.IndepHash); err != nil {
			t.Fatalf("\t%s\tShould persist the announced block: %s", failed, err)
		}
		t.Logf("\t%s\tShould persist the announced block.", success)

		if len(snap.KnownPeers) != 1 {
			t.Fatalf("\t%s\tShould learn the announcing peer: got %d", failed, len(snap.KnownPeers))
		}
		t.Logf("\t%s\tShould learn the announcing peer.", success)
	}
}

// =============================================================================

func genKeys(t *testing.T) wallet.Keys {
	t.Helper()

	keys, err := wallet.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %s", failed, err)
	}

	return keys
}

// startNode runs a peerless node over a temporary store and returns it
// with its shutdown function.
func startNode(t *testing.T, gen genesis.Genesis, rewardAddr wallet.Address) (*node.Node, context.CancelFunc) {
	t.Helper()

	str, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create a store: %s", failed, err)
	}
	t.Cleanup(func() { str.Close() })

	nde, err := node.New(node.Config{
		Host:       "localhost:9080",
		Genesis:    gen,
		Storer:     str,
		RewardAddr: rewardAddr,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the node: %s", failed, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		nde.Run(ctx)
		close(done)
	}()

	return nde, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Errorf("\t%s\tShould shut the node down in time.", failed)
		}
	}
}

// waitForHeight polls the node until the chain reaches the height.
func waitForHeight(t *testing.T, nde *node.Node, height uint64) node.Snapshot {
	t.Helper()

	deadline := time.Now().Add(60 * time.Second)
	for {
		snap := nde.Query()
		if snap.Joined && snap.Height >= height {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("\t%s\tShould reach height %d in time: at %d", failed, height, snap.Height)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// mineEmpty mines a transactionless block on top of prev with an
// unclaimed reward, so the wallet list carries through unchanged.
func mineEmpty(t *testing.T, prev block.Block, recall block.Block) block.Block {
	t.Helper()

	timestamp := prev.Timestamp + genesis.TargetTime
	diff, lastRetarget := block.NextDifficulty(prev, prev.Height+1, timestamp)

	segment := block.DataSegment(nil, recall, wallet.AddressUnclaimed)

	nonce := make([]byte, 8)
	for i := uint64(0); ; i++ {
		binary.BigEndian.PutUint64(nonce, i)
		powHash, ok := block.PowVerify(prev.Hash, diff, segment, nonce)
		if ok {
			return block.Add(prev, prev.WalletList, nil, append([]byte{}, nonce...), powHash, diff, timestamp, lastRetarget, wallet.AddressUnclaimed)
		}
	}
}
