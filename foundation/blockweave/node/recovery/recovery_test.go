package recovery_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/genesis"
	"github.com/weavechain/weaved/foundation/blockweave/node/recovery"
	"github.com/weavechain/weaved/foundation/blockweave/peer"
	"github.com/weavechain/weaved/foundation/blockweave/signature"
	"github.com/weavechain/weaved/foundation/blockweave/store"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_Recover(t *testing.T) {
	t.Log("Given the need to catch up to a longer branch block by block.")
	{
		chain := mineChain(t, "balances", 3)
		target := chain.blocks[2]

		str := newStore(t)
		if err := str.WriteBlock(chain.genesis); err != nil {
			t.Fatalf("\t%s\tShould be able to store the genesis block: %s", failed, err)
		}

		w := recovery.New(onePeer(), target, [][]byte{chain.genesis.IndepHash}, chain.fetcher(), str, time.Millisecond, nil)
		res := run(t, w)

		if res.Err != nil {
			t.Fatalf("\t%s\tShould recover without error: %s", failed, res.Err)
		}
		t.Logf("\t%s\tShould recover without error.", success)

		if len(res.HashList) != 4 || string(res.HashList[0]) != string(target.IndepHash) {
			t.Fatalf("\t%s\tShould deliver the full hash list newest first.", failed)
		}
		t.Logf("\t%s\tShould deliver the full hash list newest first.", success)

		for _, b := range chain.blocks {
			if _, err := str.GetBlock(b.IndepHash); err != nil {
				t.Fatalf("\t%s\tShould persist every recovered block: %s", failed, err)
			}
		}
		t.Logf("\t%s\tShould persist every recovered block.", success)
	}
}

func Test_RecoverDisjoint(t *testing.T) {
	t.Log("Given the need to refuse a branch from a foreign genesis.")
	{
		ours := mineChain(t, "our balances", 1)
		theirs := mineChain(t, "their balances", 2)

		str := newStore(t)
		if err := str.WriteBlock(ours.genesis); err != nil {
			t.Fatalf("\t%s\tShould be able to store the genesis block: %s", failed, err)
		}

		w := recovery.New(onePeer(), theirs.blocks[1], [][]byte{ours.genesis.IndepHash}, theirs.fetcher(), str, time.Millisecond, nil)
		res := run(t, w)

		if !errors.Is(res.Err, recovery.ErrRecoveryToGenesis) {
			t.Fatalf("\t%s\tShould fail with a recovery to genesis: got %v", failed, res.Err)
		}
		t.Logf("\t%s\tShould fail with a recovery to genesis.", success)
	}
}

func Test_RecoverMalformed(t *testing.T) {
	t.Log("Given the need to abort on a block that does not validate.")
	{
		chain := mineChain(t, "balances", 2)

		// A corrupted nonce keeps the block self consistent but breaks
		// its proof of work.
		bad := chain.blocks[1]
		bad.Nonce = []byte("bogus")
		bad.IndepHash = bad.ComputeIndepHash()
		chain.all[signature.Hex(bad.IndepHash)] = bad

		str := newStore(t)
		if err := str.WriteBlock(chain.genesis); err != nil {
			t.Fatalf("\t%s\tShould be able to store the genesis block: %s", failed, err)
		}

		w := recovery.New(onePeer(), bad, [][]byte{chain.genesis.IndepHash}, chain.fetcher(), str, time.Millisecond, nil)
		res := run(t, w)

		if !errors.Is(res.Err, recovery.ErrBlockMalformed) {
			t.Fatalf("\t%s\tShould fail with a malformed block: got %v", failed, res.Err)
		}
		t.Logf("\t%s\tShould fail with a malformed block.", success)
	}
}

func Test_RecoverRetrievalFailed(t *testing.T) {
	t.Log("Given the need to abort when a peer cannot serve a block.")
	{
		chain := mineChain(t, "balances", 3)
		target := chain.blocks[2]

		// Losing a middle block starves the walk.
		delete(chain.all, signature.Hex(chain.blocks[1].IndepHash))

		str := newStore(t)
		if err := str.WriteBlock(chain.genesis); err != nil {
			t.Fatalf("\t%s\tShould be able to store the genesis block: %s", failed, err)
		}

		w := recovery.New(onePeer(), target, [][]byte{chain.genesis.IndepHash}, chain.fetcher(), str, time.Millisecond, nil)
		res := run(t, w)

		if !errors.Is(res.Err, recovery.ErrRetrievalFailed) {
			t.Fatalf("\t%s\tShould fail with a retrieval error: got %v", failed, res.Err)
		}
		t.Logf("\t%s\tShould fail with a retrieval error.", success)
	}
}

func Test_Join(t *testing.T) {
	t.Log("Given the need to join the network from the genesis block.")
	{
		chain := mineChain(t, "balances", 2)

		str := newStore(t)
		if err := str.WriteBlock(chain.genesis); err != nil {
			t.Fatalf("\t%s\tShould be able to store the genesis block: %s", failed, err)
		}

		w := recovery.NewJoin(onePeer(), chain.genesis, chain.fetcher(), str, time.Millisecond, nil)
		res := run(t, w)

		if res.Err != nil {
			t.Fatalf("\t%s\tShould join without error: %s", failed, res.Err)
		}
		t.Logf("\t%s\tShould join without error.", success)

		if len(res.HashList) != 3 || string(res.HashList[0]) != string(chain.blocks[1].IndepHash) {
			t.Fatalf("\t%s\tShould end at the tip the peer reported.", failed)
		}
		t.Logf("\t%s\tShould end at the tip the peer reported.", success)
	}
}

// =============================================================================

// testChain is a mined chain plus the lookup the fake peer serves from.
type testChain struct {
	genesis block.Block
	blocks  []block.Block
	all     map[string]block.Block
}

func (c *testChain) fetcher() *fakeFetcher {
	return &fakeFetcher{tip: c.blocks[len(c.blocks)-1], all: c.all}
}

// mineChain derives a genesis block from the seed and mines count empty
// blocks on top of it.
func mineChain(t *testing.T, seed string, count int) *testChain {
	t.Helper()

	keys, err := wallet.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %s", failed, err)
	}

	gen := genesis.Genesis{
		ChainID:  1,
		Balances: map[string]uint64{string(keys.Address()): uint64(len(seed)) * 1000},
	}

	gblk, err := block.Genesis(gen)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to derive the genesis block: %s", failed, err)
	}

	chain := testChain{
		genesis: gblk,
		all:     map[string]block.Block{signature.Hex(gblk.IndepHash): gblk},
	}

	prev := gblk
	for i := 0; i < count; i++ {
		b := mineNext(t, prev, chain.all)
		chain.blocks = append(chain.blocks, b)
		chain.all[signature.Hex(b.IndepHash)] = b
		prev = b
	}

	return &chain
}

// mineNext mines one empty block on top of prev. Without transactions and
// with an unclaimed reward address the wallet list carries through.
func mineNext(t *testing.T, prev block.Block, all map[string]block.Block) block.Block {
	t.Helper()

	hashList := make([][]byte, 0, len(prev.HashList)+1)
	hashList = append(hashList, prev.IndepHash)
	hashList = append(hashList, prev.HashList...)

	recall, exists := all[signature.Hex(block.RecallHash(hashList))]
	if !exists {
		t.Fatalf("\t%s\tShould be able to look up the recall block.", failed)
	}

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

func newStore(t *testing.T) *store.Store {
	t.Helper()

	str, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create a store: %s", failed, err)
	}
	t.Cleanup(func() { str.Close() })

	return str
}

func onePeer() []peer.Peer {
	return []peer.Peer{peer.New("localhost:9081")}
}

func run(t *testing.T, w *recovery.Worker) recovery.Result {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	go w.Run(ctx)

	select {
	case res := <-w.Result():
		return res
	case <-time.After(30 * time.Second):
		t.Fatalf("\t%s\tShould deliver a result in time.", failed)
		return recovery.Result{}
	}
}

// =============================================================================

// fakeFetcher serves blocks from an in memory chain in place of the HTTP
// peer client.
type fakeFetcher struct {
	tip block.Block
	all map[string]block.Block
}

func (f *fakeFetcher) GetCurrentBlock(ctx context.Context, pr peer.Peer) (block.Block, error) {
	return f.tip, nil
}

func (f *fakeFetcher) GetFullBlock(ctx context.Context, pr peer.Peer, indepHash []byte) (block.Block, error) {
	b, exists := f.all[signature.Hex(indepHash)]
	if !exists {
		return block.Block{}, errors.New("block not held")
	}
	return b, nil
}
