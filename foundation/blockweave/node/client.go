package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/gossip"
	"github.com/weavechain/weaved/foundation/blockweave/peer"
	"github.com/weavechain/weaved/foundation/blockweave/signature"
)

// Client is the HTTP client for the node to node API. It implements the
// sender side of the gossip bus and the fetcher side of fork recovery.
type Client struct {
	http http.Client
}

// NewClient constructs a peer client with the specified request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: http.Client{Timeout: timeout},
	}
}

// Status asks a peer for its tip and known peers.
func (c *Client) Status(ctx context.Context, pr peer.Peer) (peer.Status, error) {
	var status peer.Status
	url := fmt.Sprintf("http://%s/v1/node/status", pr.Host)

	if err := c.get(ctx, url, &status); err != nil {
		return peer.Status{}, err
	}

	return status, nil
}

// GetPeers asks a peer for the peers it knows.
func (c *Client) GetPeers(ctx context.Context, pr peer.Peer) ([]peer.Peer, error) {
	var peers []peer.Peer
	url := fmt.Sprintf("http://%s/v1/node/peers", pr.Host)

	if err := c.get(ctx, url, &peers); err != nil {
		return nil, err
	}

	return peers, nil
}

// GetCurrentBlock asks a peer for its current tip block with full
// transactions.
func (c *Client) GetCurrentBlock(ctx context.Context, pr peer.Peer) (block.Block, error) {
	var b block.Block
	url := fmt.Sprintf("http://%s/v1/node/block/current", pr.Host)

	if err := c.get(ctx, url, &b); err != nil {
		return block.Block{}, err
	}

	return b, nil
}

// GetFullBlock asks a peer for the block stored under the specified indep
// hash, transactions included.
func (c *Client) GetFullBlock(ctx context.Context, pr peer.Peer, indepHash []byte) (block.Block, error) {
	var b block.Block
	url := fmt.Sprintf("http://%s/v1/node/block/%s", pr.Host, signature.Hex(indepHash))

	if err := c.get(ctx, url, &b); err != nil {
		return block.Block{}, err
	}

	return b, nil
}

// SendNewTx delivers a transaction to a peer's mempool.
func (c *Client) SendNewTx(ctx context.Context, pr peer.Peer, msg gossip.AddTx) error {
	url := fmt.Sprintf("http://%s/v1/node/tx/submit", pr.Host)
	return c.post(ctx, url, msg)
}

// SendNewBlock announces a block to a peer.
func (c *Client) SendNewBlock(ctx context.Context, pr peer.Peer, msg gossip.NewBlock) error {
	url := fmt.Sprintf("http://%s/v1/node/block/propose", pr.Host)
	return c.post(ctx, url, msg)
}

// =============================================================================

// get performs a GET and decodes the JSON response into v.
func (c *Client) get(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// post marshals v and performs a POST, ignoring the response body.
func (c *Client) post(ctx context.Context, url string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}

	return nil
}
