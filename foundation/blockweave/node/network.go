package node

import (
	"context"
	"time"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/peer"
)

// networkOperations runs the periodic peer maintenance: discovering new
// peers and noticing tips ahead of our own. It runs off the actor
// goroutine and feeds results back through the inbox.
func (n *Node) networkOperations(ctx context.Context) {
	n.evHandler("node: networkOperations: G started")
	defer n.evHandler("node: networkOperations: G completed")

	ticker := time.NewTicker(n.pollTime)
	defer ticker.Stop()

	for {
		n.pollPeers(ctx)

		select {
		case <-ticker.C:
		case <-n.shut:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pollPeers asks every known peer for its status, merges the peers it
// knows and chases any tip above our own.
func (n *Node) pollPeers(ctx context.Context) {
	snap := n.Query()

	for _, pr := range snap.KnownPeers {
		status, err := n.client.Status(ctx, pr)
		if err != nil {
			n.evHandler("node: poll peers: peer %s: %s", pr.Host, err)
			continue
		}

		for _, known := range status.KnownPeers {
			if n.bus.AddPeer(known) {
				n.evHandler("node: poll peers: learned peer %s from %s", known.Host, pr.Host)
			}
		}

		if !snap.Joined || status.Height > snap.Height {
			n.chaseTip(ctx, pr)
		}
	}
}

// chaseTip fetches a peer's tip and its recall block and feeds them into
// the acceptance state machine as if gossiped.
func (n *Node) chaseTip(ctx context.Context, pr peer.Peer) {
	tip, err := n.client.GetCurrentBlock(ctx, pr)
	if err != nil {
		n.evHandler("node: chase tip: peer %s: %s", pr.Host, err)
		return
	}

	recall, err := n.client.GetFullBlock(ctx, pr, block.RecallHash(tip.HashList))
	if err != nil {
		n.evHandler("node: chase tip: peer %s: recall: %s", pr.Host, err)
		return
	}

	n.send(msgNewBlock{From: pr, Block: tip, Recall: recall})
}
