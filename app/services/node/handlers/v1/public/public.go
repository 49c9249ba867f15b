// Package public maintains the group of handlers for public client access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	v1 "github.com/weavechain/weaved/business/web/v1"
	"github.com/weavechain/weaved/foundation/blockweave/node"
	"github.com/weavechain/weaved/foundation/blockweave/signature"
	"github.com/weavechain/weaved/foundation/blockweave/store"
	"github.com/weavechain/weaved/foundation/events"
	"github.com/weavechain/weaved/foundation/nameservice"
	"github.com/weavechain/weaved/foundation/validate"
	"github.com/weavechain/weaved/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log  *zap.SugaredLogger
	Node *node.Node
	NS   *nameservice.NameService
	WS   websocket.Upgrader
	Evts *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(ev); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.Node.Genesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Info returns the node's view of the weave.
func (h Handlers) Info(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	snap := h.Node.Query()

	ni := info{
		Host:    snap.Host,
		Joined:  snap.Joined,
		Height:  snap.Height,
		Diff:    snap.Diff,
		Mempool: len(snap.Mempool),
		Peers:   len(snap.KnownPeers),
	}
	if snap.Joined {
		ni.LatestBlockHash = signature.Hex(snap.HashList[0])
	}

	return web.Respond(ctx, w, ni, http.StatusOK)
}

// Wallets returns the current balances for all wallets or one address.
func (h Handlers) Wallets(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	snap := h.Node.Query()
	if !snap.Joined {
		return v1.NewRequestError(node.ErrNotJoined, http.StatusServiceUnavailable)
	}

	addrParam := web.Param(r, "address")

	wallets := make([]walletInfo, 0, len(snap.WalletList))
	for _, wal := range snap.WalletList {
		if addrParam != "" && addrParam != string(wal.Address) {
			continue
		}

		wallets = append(wallets, walletInfo{
			Address: wal.Address,
			Name:    h.NS.Lookup(wal.Address),
			Balance: wal.Balance,
			LastTx:  signature.Hex(wal.LastTx),
		})
	}

	wi := walletList{
		LatestBlockHash: signature.Hex(snap.HashList[0]),
		Uncommitted:     len(snap.Mempool),
		Wallets:         wallets,
	}

	return web.Respond(ctx, w, wi, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	snap := h.Node.Query()

	txs := make([]txInfo, len(snap.Mempool))
	for i, t := range snap.Mempool {
		from := t.FromAddress()
		txs[i] = txInfo{
			ID:       signature.Hex(t.ID),
			From:     from,
			FromName: h.NS.Lookup(from),
			To:       t.Target,
			ToName:   h.NS.Lookup(t.Target),
			Quantity: t.Quantity,
			Reward:   t.Reward,
			DataSize: t.DataSize(),
		}
	}

	return web.Respond(ctx, w, txs, http.StatusOK)
}

// SubmitWalletTransaction adds a new signed transaction to the mempool.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var st submitTx
	if err := web.Decode(r, &st); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := validate.Check(st); err != nil {
		return err
	}

	t := st.toTx()

	h.Log.Infow("add wallet tran", "traceid", v.TraceID, "tx", t, "to", t.Target, "quantity", t.Quantity, "reward", t.Reward)
	if err := h.Node.SubmitTx(t); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlockByHash returns the block stored under the specified indep hash.
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

// SignalMining signals the node to mine the current mempool.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Node.StartMining()

	resp := []string{"mining signalled"}
	return web.Respond(ctx, w, resp, http.StatusOK)
}
