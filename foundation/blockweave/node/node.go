// Package node implements the node server: the single actor that owns the
// weave state, accepts blocks and transactions from the network, runs the
// miner and spawns fork recovery when its chain falls behind.
package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/genesis"
	"github.com/weavechain/weaved/foundation/blockweave/gossip"
	"github.com/weavechain/weaved/foundation/blockweave/ledger"
	"github.com/weavechain/weaved/foundation/blockweave/miner"
	"github.com/weavechain/weaved/foundation/blockweave/node/recovery"
	"github.com/weavechain/weaved/foundation/blockweave/peer"
	"github.com/weavechain/weaved/foundation/blockweave/store"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// EventHandler defines a function that is called when events occur in the
// processing of the node.
type EventHandler func(v string, args ...any)

// ErrNotJoined is returned for state queries while the node has not
// joined the network yet.
var ErrNotJoined = errors.New("node has not joined")

// Operational timeouts. These do not affect consensus.
const (
	defaultNetTimeout    = 5 * time.Second
	defaultRejoinTimeout = 3 * time.Second
	defaultPollTime      = 60 * time.Second
)

// Config represents the configuration required to start a node.
type Config struct {
	Host        string
	Genesis     genesis.Genesis
	Storer      *store.Store
	RewardAddr  wallet.Address
	Automine    bool
	MiningDelay time.Duration
	KnownPeers  []peer.Peer
	EvHandler   EventHandler
}

// Node manages the weave state. The chain state (hash list, wallet list,
// mempool, miner and recovery handles) is mutated only on the single
// goroutine running the inbox loop, and exported methods reach it only by
// enqueuing messages. Genesis, GenesisBlock, GetBlock and AddPeer bypass
// the inbox: they read the genesis data or the store, or use the
// lock-guarded peer set, directly.
type Node struct {
	host          string
	gen           genesis.Genesis
	genesisBlock  block.Block
	storer        *store.Store
	rewardAddr    wallet.Address
	automine      bool
	miningDelay   time.Duration
	netTimeout    time.Duration
	rejoinTimeout time.Duration
	pollTime      time.Duration
	evHandler     EventHandler

	peers  *peer.Set
	client *Client
	bus    *gossip.Bus

	inbox chan message
	shut  chan struct{}
	wg    sync.WaitGroup

	// Owned by the inbox loop.
	joined     bool
	hashList   [][]byte
	walletList wallet.List
	txs        []tx.Tx
	mnr        *miner.Miner
	rec        *recovery.Worker
}

// New constructs a node ready to run. The genesis block is derived and
// persisted immediately so every worker can read it from the store.
func New(cfg Config) (*Node, error) {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	genesisBlock, err := block.Genesis(cfg.Genesis)
	if err != nil {
		return nil, err
	}
	if err := cfg.Storer.WriteBlock(genesisBlock); err != nil {
		return nil, err
	}

	peers := peer.NewSet()
	for _, p := range cfg.KnownPeers {
		peers.Add(p)
	}

	client := NewClient(defaultNetTimeout)

	n := Node{
		host:          cfg.Host,
		gen:           cfg.Genesis,
		genesisBlock:  genesisBlock,
		storer:        cfg.Storer,
		rewardAddr:    cfg.RewardAddr,
		automine:      cfg.Automine,
		miningDelay:   cfg.MiningDelay,
		netTimeout:    defaultNetTimeout,
		rejoinTimeout: defaultRejoinTimeout,
		pollTime:      defaultPollTime,
		evHandler:     ev,
		peers:         peers,
		client:        client,
		bus:           gossip.NewBus(cfg.Host, peers, client, gossip.EventHandler(ev)),
		inbox:         make(chan message, 128),
		shut:          make(chan struct{}),
	}

	// A node without peers starts its own network from genesis. A node
	// with peers joins theirs instead.
	if len(cfg.KnownPeers) == 0 {
		n.joined = true
		n.hashList = [][]byte{genesisBlock.IndepHash}
		n.walletList = genesisBlock.WalletList
	}

	return &n, nil
}

// Run executes the inbox loop and the network polling worker until the
// context is canceled. It blocks and is intended to run as its own
// goroutine.
func (n *Node) Run(ctx context.Context) {
	n.evHandler("node: run: G started: host[%s] joined[%v]", n.host, n.joined)
	defer n.evHandler("node: run: G completed")

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.networkOperations(ctx)
	}()

	if !n.joined {
		n.startJoin(ctx)
	}

	for {
		select {
		case msg := <-n.inbox:
			n.dispatch(ctx, msg)

		case <-ctx.Done():
			n.stopMiner()
			close(n.shut)
			n.wg.Wait()
			return
		}
	}
}

// dispatch routes one inbox message. Everything that touches node state
// runs here and nowhere else.
func (n *Node) dispatch(ctx context.Context, msg message) {
	switch m := msg.(type) {
	case msgNewBlock:
		n.handleNewBlock(ctx, m)
	case msgAddTx:
		m.reply <- n.handleAddTx(ctx, m)
	case msgMine:
		n.startMiner()
	case msgWorkComplete:
		n.handleWorkComplete(ctx, m.work)
	case msgRecovered:
		n.handleRecovered(m.result)
	case msgQuery:
		m.reply <- n.snapshot()
	}
}

// send enqueues a message unless the node is shutting down.
func (n *Node) send(msg message) {
	select {
	case n.inbox <- msg:
	case <-n.shut:
	}
}

// =============================================================================

// startJoin spawns the join worker that polls the peers for the current
// tip and recovers to it.
func (n *Node) startJoin(ctx context.Context) {
	if n.rec != nil {
		return
	}

	n.evHandler("node: join: starting: peers[%d]", len(n.peers.Copy(n.host)))

	w := recovery.NewJoin(n.peers.Copy(n.host), n.genesisBlock, n.client, n.storer, n.rejoinTimeout, recovery.EventHandler(n.evHandler))
	n.runRecovery(ctx, w)
}

// startRecovery spawns a fork recovery worker targeting the specified
// block.
func (n *Node) startRecovery(ctx context.Context, from peer.Peer, target block.Block) {
	if n.rec != nil {
		n.rec.UpdateTarget(target, from)
		return
	}

	n.evHandler("node: recovery: starting: target[%s] height[%d]", target, target.Height)

	peers := addPeer(n.peers.Copy(n.host), from)
	w := recovery.New(peers, target, n.hashList, n.client, n.storer, n.rejoinTimeout, recovery.EventHandler(n.evHandler))
	n.runRecovery(ctx, w)
}

// runRecovery starts the worker goroutine and the forwarder that turns
// its result into an inbox message.
func (n *Node) runRecovery(ctx context.Context, w *recovery.Worker) {
	n.rec = w

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		w.Run(ctx)
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case res := <-w.Result():
			n.send(msgRecovered{result: res})
		case <-n.shut:
		}
	}()
}

// handleRecovered adopts a recovered hash list if it is strictly longer
// than our own. Shorter or equal results are ignored.
func (n *Node) handleRecovered(res recovery.Result) {
	n.rec = nil

	if res.Err != nil {
		n.evHandler("node: recovered: ERROR: %s", res.Err)
		return
	}

	if n.joined && len(res.HashList) <= len(n.hashList) {
		n.evHandler("node: recovered: hash list of [%d] not longer than [%d], ignoring", len(res.HashList), len(n.hashList))
		return
	}

	tip, err := n.storer.GetBlock(res.HashList[0])
	if err != nil {
		n.evHandler("node: recovered: ERROR: tip not in store: %s", err)
		return
	}

	n.stopMiner()

	n.joined = true
	n.hashList = res.HashList
	n.walletList = tip.WalletList
	n.pruneMempool()

	n.evHandler("node: recovered: adopted chain: height[%d] tip[%s]", tip.Height, tip)

	if n.automine {
		n.startMiner()
	}
}

// =============================================================================

// tipHeight returns the height of the current tip block.
func (n *Node) tipHeight() uint64 {
	return uint64(len(n.hashList) - 1)
}

// tip reads the current tip block from the store.
func (n *Node) tip() (block.Block, error) {
	return n.storer.GetBlock(n.hashList[0])
}

// pruneMempool drops mempool transactions that no longer verify against
// the current ledger.
func (n *Node) pruneMempool() {
	kept := n.txs[:0]
	running := n.walletList.Clone()

	tipBlk, err := n.tip()
	if err != nil {
		return
	}

	for _, t := range n.txs {
		if err := tx.Verify(t, tipBlk.Diff, running); err != nil {
			n.evHandler("node: prune mempool: tx[%s]: %s", t, err)
			continue
		}
		running = ledger.ApplyTx(running, t, ledger.EventHandler(n.evHandler))
		kept = append(kept, t)
	}

	n.txs = kept
}

// addPeer appends a peer if not already present.
func addPeer(peers []peer.Peer, pr peer.Peer) []peer.Peer {
	for _, p := range peers {
		if p == pr {
			return peers
		}
	}
	return append(peers, pr)
}
