// Package gossip implements the best-effort fan-out of transactions and
// blocks to the known peers. The bus owns the peer set and abandons peers
// that stay unreachable.
package gossip

import (
	"context"
	"sync"
	"time"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/peer"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
)

// EventHandler defines a function that is called when events occur while
// gossiping.
type EventHandler func(v string, args ...any)

// sendRetries is how often a single publish retries an unreachable peer
// before the bus abandons it.
const sendRetries = 2

// retryDelay is the back-off between publish retries to the same peer.
const retryDelay = 500 * time.Millisecond

// NewBlock is the wire message announcing a freshly accepted block. The
// recall block travels with it so the receiver can validate without an
// extra round trip.
type NewBlock struct {
	PeerID      string      `json:"peer_id"`
	Height      uint64      `json:"height"`
	Block       block.Block `json:"block"`
	RecallBlock block.Block `json:"recall_block"`
}

// AddTx is the wire message carrying a transaction into peer mempools.
type AddTx struct {
	Tx tx.Tx `json:"tx"`
}

// =============================================================================

// Sender knows how to deliver wire messages to a single peer. The HTTP
// client in the node service implements this interface.
type Sender interface {
	SendNewTx(ctx context.Context, pr peer.Peer, msg AddTx) error
	SendNewBlock(ctx context.Context, pr peer.Peer, msg NewBlock) error
}

// Bus fans wire messages out to every known peer. Delivery is best
// effort: a failed peer is retried with back-off and dropped from the set
// if it stays unreachable.
type Bus struct {
	host   string
	peers  *peer.Set
	sender Sender
	ev     EventHandler
}

// NewBus constructs a bus for the specified host over the shared peer set.
func NewBus(host string, peers *peer.Set, sender Sender, ev EventHandler) *Bus {
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	return &Bus{
		host:   host,
		peers:  peers,
		sender: sender,
		ev:     ev,
	}
}

// Peers returns the current set of known peers, excluding this host.
func (b *Bus) Peers() []peer.Peer {
	return b.peers.Copy(b.host)
}

// AddPeer records a newly learned peer, reporting whether it was unknown.
func (b *Bus) AddPeer(p peer.Peer) bool {
	if p.Match(b.host) {
		return false
	}
	return b.peers.Add(p)
}

// PublishTx delivers a transaction to every known peer.
func (b *Bus) PublishTx(ctx context.Context, t tx.Tx) {
	msg := AddTx{Tx: t}

	b.fanOut(ctx, func(ctx context.Context, pr peer.Peer) error {
		return b.sender.SendNewTx(ctx, pr, msg)
	})
}

// PublishBlock announces an accepted block and its recall block to every
// known peer.
func (b *Bus) PublishBlock(ctx context.Context, blk block.Block, recall block.Block) {
	msg := NewBlock{
		PeerID:      b.host,
		Height:      blk.Height,
		Block:       blk,
		RecallBlock: recall,
	}

	b.fanOut(ctx, func(ctx context.Context, pr peer.Peer) error {
		return b.sender.SendNewBlock(ctx, pr, msg)
	})
}

// fanOut runs the send against every peer concurrently and waits for the
// slowest one. Calls are not serialized against each other: two publishes
// running at the same time may reach the same receiver in either order.
func (b *Bus) fanOut(ctx context.Context, send func(ctx context.Context, pr peer.Peer) error) {
	var wg sync.WaitGroup

	for _, pr := range b.peers.Copy(b.host) {
		wg.Add(1)
		go func(pr peer.Peer) {
			defer wg.Done()
			b.sendWithRetry(ctx, pr, send)
		}(pr)
	}

	wg.Wait()
}

// sendWithRetry attempts delivery to a single peer, backing off between
// attempts and abandoning the peer once the retry budget is spent.
func (b *Bus) sendWithRetry(ctx context.Context, pr peer.Peer, send func(ctx context.Context, pr peer.Peer) error) {
	var err error

	for attempt := 0; attempt <= sendRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * retryDelay):
			}
		}

		if err = send(ctx, pr); err == nil {
			return
		}
	}

	b.ev("gossip: send: peer %s unreachable, dropping: %s", pr.Host, err)
	b.peers.Remove(pr)
}
