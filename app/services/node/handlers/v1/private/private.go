// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	v1 "github.com/weavechain/weaved/business/web/v1"
	"github.com/weavechain/weaved/foundation/blockweave/gossip"
	"github.com/weavechain/weaved/foundation/blockweave/node"
	"github.com/weavechain/weaved/foundation/blockweave/peer"
	"github.com/weavechain/weaved/foundation/blockweave/signature"
	"github.com/weavechain/weaved/foundation/blockweave/store"
	"github.com/weavechain/weaved/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log  *zap.SugaredLogger
	Node *node.Node
}

// Status returns this node's view of the weave for peer reconciliation.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	snap := h.Node.Query()

	status := peer.Status{
		Height:     snap.Height,
		KnownPeers: snap.KnownPeers,
	}
	if snap.Joined {
		status.LatestBlockHash = snap.HashList[0]
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Peers returns the set of peers this node knows about.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	snap := h.Node.Query()
	return web.Respond(ctx, w, snap.KnownPeers, http.StatusOK)
}

// CurrentBlock returns the current tip block.
func (h Handlers) CurrentBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	b, err := h.Node.LatestBlock()
	if err != nil {
		if errors.Is(err, node.ErrNotJoined) {
			return v1.NewRequestError(err, http.StatusServiceUnavailable)
		}
		return err
	}

	return web.Respond(ctx, w, b, http.StatusOK)
}

// BlockByHash returns the full block stored under the specified indep hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	indepHash, err := signature.FromHex(web.Param(r, "hash"))
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	b, err := h.Node.GetBlock(indepHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return v1.NewRequestError(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, b, http.StatusOK)
}

// SubmitNodeTransaction adds a transaction gossiped by a peer to the mempool.
func (h Handlers) SubmitNodeTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var msg gossip.AddTx
	if err := web.Decode(r, &msg); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("add node tran", "traceid", v.TraceID, "tx", msg.Tx)
	if err := h.Node.ReceiveTx(msg.Tx); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ProposeBlock accepts a block announcement from a peer. The node decides
// asynchronously whether to integrate it or start fork recovery.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var msg gossip.NewBlock
	if err := web.Decode(r, &msg); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("propose block", "traceid", v.TraceID, "peer", msg.PeerID, "height", msg.Height)
	h.Node.ReceiveBlock(peer.New(msg.PeerID), msg)

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "block accepted for evaluation",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
