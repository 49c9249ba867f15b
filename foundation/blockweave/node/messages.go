package node

import (
	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/genesis"
	"github.com/weavechain/weaved/foundation/blockweave/gossip"
	"github.com/weavechain/weaved/foundation/blockweave/miner"
	"github.com/weavechain/weaved/foundation/blockweave/node/recovery"
	"github.com/weavechain/weaved/foundation/blockweave/peer"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// message is the closed set of inbox messages the node processes.
type message interface {
	isMessage()
}

type msgNewBlock struct {
	From   peer.Peer
	Block  block.Block
	Recall block.Block
}

type msgAddTx struct {
	Tx      tx.Tx
	Gossip  bool
	reply   chan error
}

type msgMine struct{}

type msgWorkComplete struct {
	work miner.Work
}

type msgRecovered struct {
	result recovery.Result
}

type msgQuery struct {
	reply chan Snapshot
}

func (msgNewBlock) isMessage()     {}
func (msgAddTx) isMessage()        {}
func (msgMine) isMessage()         {}
func (msgWorkComplete) isMessage() {}
func (msgRecovered) isMessage()    {}
func (msgQuery) isMessage()        {}

// =============================================================================

// Snapshot is the read-only view of the node state handed to observers.
type Snapshot struct {
	Joined     bool
	Host       string
	HashList   [][]byte
	Height     uint64
	WalletList wallet.List
	Mempool    []tx.Tx
	Diff       uint
	KnownPeers []peer.Peer
}

// snapshot builds the observer view from the actor state.
func (n *Node) snapshot() Snapshot {
	snap := Snapshot{
		Joined:     n.joined,
		Host:       n.host,
		KnownPeers: n.peers.Copy(n.host),
	}

	if !n.joined {
		return snap
	}

	snap.HashList = append([][]byte{}, n.hashList...)
	snap.Height = n.tipHeight()
	snap.WalletList = n.walletList.Clone()
	snap.Mempool = append([]tx.Tx{}, n.txs...)

	if tipBlk, err := n.tip(); err == nil {
		snap.Diff = tipBlk.Diff
	}

	return snap
}

// =============================================================================
// Exported API. These run on the caller's goroutine and communicate with
// the actor only through the inbox.

// Query returns a snapshot of the node state.
func (n *Node) Query() Snapshot {
	reply := make(chan Snapshot, 1)
	n.send(msgQuery{reply: reply})

	select {
	case snap := <-reply:
		return snap
	case <-n.shut:
		return Snapshot{}
	}
}

// SubmitTx verifies a locally submitted transaction, adds it to the
// mempool and gossips it to the peers.
func (n *Node) SubmitTx(t tx.Tx) error {
	reply := make(chan error, 1)
	n.send(msgAddTx{Tx: t, Gossip: true, reply: reply})

	select {
	case err := <-reply:
		return err
	case <-n.shut:
		return ErrNotJoined
	}
}

// ReceiveTx accepts a transaction gossiped by a peer.
func (n *Node) ReceiveTx(t tx.Tx) error {
	reply := make(chan error, 1)
	n.send(msgAddTx{Tx: t, reply: reply})

	select {
	case err := <-reply:
		return err
	case <-n.shut:
		return ErrNotJoined
	}
}

// ReceiveBlock accepts a block announcement from a peer.
func (n *Node) ReceiveBlock(from peer.Peer, msg gossip.NewBlock) {
	n.send(msgNewBlock{From: from, Block: msg.Block, Recall: msg.RecallBlock})
}

// StartMining asks the node to mine over the current mempool.
func (n *Node) StartMining() {
	n.send(msgMine{})
}

// AddPeer records a newly learned peer.
func (n *Node) AddPeer(p peer.Peer) bool {
	return n.bus.AddPeer(p)
}

// Genesis returns the chain parameters this node runs with.
func (n *Node) Genesis() genesis.Genesis {
	return n.gen
}

// GenesisBlock returns the derived height zero block.
func (n *Node) GenesisBlock() block.Block {
	return n.genesisBlock
}

// GetBlock serves a block from the store by indep hash.
func (n *Node) GetBlock(indepHash []byte) (block.Block, error) {
	return n.storer.GetBlock(indepHash)
}

// LatestBlock returns the current tip block.
func (n *Node) LatestBlock() (block.Block, error) {
	snap := n.Query()
	if !snap.Joined {
		return block.Block{}, ErrNotJoined
	}

	return n.storer.GetBlock(snap.HashList[0])
}
