// Package recovery implements the fork recovery worker: the actor that
// pulls a divergent branch from peers block by block, re-validates each
// one and hands the longer hash list back to the node server. A node that
// has not joined the network yet runs the same worker in join mode.
package recovery

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/genesis"
	"github.com/weavechain/weaved/foundation/blockweave/peer"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
)

// EventHandler defines a function that is called when events occur in the
// processing of fork recovery.
type EventHandler func(v string, args ...any)

// Failure modes of a recovery worker. All are fatal to the worker; the
// node server retries later.
var (
	ErrRetrievalFailed   = errors.New("retrieval_failed")
	ErrBlockMalformed    = errors.New("block_malformed")
	ErrTooFarBehind      = errors.New("too_far_behind")
	ErrRecoveryToGenesis = errors.New("recovery_to_genesis")
)

// fetchRetries is the per-block retry budget for peer fetches.
const fetchRetries = 3

// Fetcher pulls blocks from remote peers. The node's HTTP peer client
// implements this interface.
type Fetcher interface {
	GetCurrentBlock(ctx context.Context, pr peer.Peer) (block.Block, error)
	GetFullBlock(ctx context.Context, pr peer.Peer, indepHash []byte) (block.Block, error)
}

// Storer persists and serves blocks during the recovery walk.
type Storer interface {
	WriteBlock(b block.Block) error
	WriteTxs(txs []tx.Tx) error
	GetBlock(indepHash []byte) (block.Block, error)
}

// Result is the reply sent to the parent when the worker finishes. The
// parent adopts the hash list only if strictly longer than its own.
type Result struct {
	HashList [][]byte
	Err      error
}

// TargetUpdate extends a running recovery to a newer tip on the same
// branch.
type TargetUpdate struct {
	Block block.Block
	Peer  peer.Peer
}

// =============================================================================

// Worker represents a single fork recovery. Each worker owns its state
// and talks to the parent only over channels.
type Worker struct {
	peers         []peer.Peer
	target        block.Block
	joining       bool
	ownHashList   [][]byte
	fetcher       Fetcher
	storer        Storer
	rejoinTimeout time.Duration
	evHandler     EventHandler

	updates chan TargetUpdate
	result  chan Result
}

// New constructs a recovery worker targeting the specified block on top
// of the node's own hash list. Run must be called to start the work.
func New(peers []peer.Peer, target block.Block, ownHashList [][]byte, fetcher Fetcher, storer Storer, rejoinTimeout time.Duration, ev EventHandler) *Worker {
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	return &Worker{
		peers:         peers,
		target:        target,
		ownHashList:   ownHashList,
		fetcher:       fetcher,
		storer:        storer,
		rejoinTimeout: rejoinTimeout,
		evHandler:     ev,
		updates:       make(chan TargetUpdate, 16),
		result:        make(chan Result, 1),
	}
}

// NewJoin constructs a worker that first polls the peers for the current
// tip and then recovers from genesis ancestry to it.
func NewJoin(peers []peer.Peer, genesisBlock block.Block, fetcher Fetcher, storer Storer, rejoinTimeout time.Duration, ev EventHandler) *Worker {
	w := New(peers, block.Block{}, [][]byte{genesisBlock.IndepHash}, fetcher, storer, rejoinTimeout, ev)
	w.joining = true
	return w
}

// Result returns the channel the final hash list is delivered on.
func (w *Worker) Result() <-chan Result {
	return w.result
}

// UpdateTarget offers a newer tip to a running worker. The worker adopts
// it only if it extends the current target's branch.
func (w *Worker) UpdateTarget(b block.Block, pr peer.Peer) {
	select {
	case w.updates <- TargetUpdate{Block: b, Peer: pr}:
	default:
		w.evHandler("recovery: update target: inbox full, dropping blk[%s]", b)
	}
}

// Run executes the recovery and delivers exactly one result. It is
// intended to run as its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	w.evHandler("recovery: run: G started: target[%s] peers[%d]", w.target, len(w.peers))
	defer w.evHandler("recovery: run: G completed")

	hashList, err := w.recover(ctx)
	if err != nil {
		w.evHandler("recovery: run: ERROR: %s", err)
		w.result <- Result{Err: err}
		return
	}

	w.result <- Result{HashList: hashList}
}

// recover drives the join poll, the divergence computation and the block
// application loop.
func (w *Worker) recover(ctx context.Context) ([][]byte, error) {
	if w.joining {
		target, err := w.pollForTip(ctx)
		if err != nil {
			return nil, err
		}
		w.target = target
	}

	blockList, schedule, err := w.divergence()
	if err != nil {
		return nil, err
	}

	w.evHandler("recovery: recover: applying [%d] blocks on top of [%d]", len(schedule), len(blockList))

	prev, err := w.storer.GetBlock(blockList[0])
	if err != nil {
		return nil, ErrRetrievalFailed
	}

	for len(schedule) > 0 {
		nextHash := schedule[0]

		next, recall, err := w.fetchPair(ctx, nextHash)
		if err != nil {
			return nil, err
		}

		if next.Height == 0 {
			return nil, ErrRecoveryToGenesis
		}
		if w.target.Height-next.Height > genesis.StoreBlocksBehindCurrent {
			return nil, ErrTooFarBehind
		}

		if err := w.storer.WriteTxs(recall.Txs); err != nil {
			return nil, err
		}

		if err := block.Validate(next, prev, recall, block.EventHandler(w.evHandler)); err != nil {
			w.evHandler("recovery: recover: blk[%s]: validation failed: %s", next, err)
			return nil, ErrBlockMalformed
		}

		if err := w.storer.WriteBlock(next); err != nil {
			return nil, err
		}
		if err := w.storer.WriteBlock(recall); err != nil {
			return nil, err
		}

		blockList = append([][]byte{next.IndepHash}, blockList...)
		prev = next
		schedule = schedule[1:]

		schedule = w.drainUpdates(schedule)
	}

	return blockList, nil
}

// pollForTip asks the peers for their current block with back-off until
// one answers.
func (w *Worker) pollForTip(ctx context.Context) (block.Block, error) {
	for {
		for _, pr := range w.peers {
			b, err := w.fetcher.GetCurrentBlock(ctx, pr)
			if err != nil {
				w.evHandler("recovery: poll: peer %s: %s", pr.Host, err)
				continue
			}
			w.evHandler("recovery: poll: peer %s reports tip %s at height %d", pr.Host, b, b.Height)
			return b, nil
		}

		select {
		case <-ctx.Done():
			return block.Block{}, ctx.Err()
		case <-time.After(w.rejoinTimeout):
		}
	}
}

// divergence splits the target's ancestry into the prefix shared with our
// own chain and the suffix of hashes to re-apply, oldest first, the
// target itself last.
func (w *Worker) divergence() (blockList [][]byte, schedule [][]byte, err error) {
	targetChain := reverse(w.target.HashList)
	ownChain := reverse(w.ownHashList)

	var shared int
	for shared < len(targetChain) && shared < len(ownChain) && bytes.Equal(targetChain[shared], ownChain[shared]) {
		shared++
	}

	if shared == 0 {
		return nil, nil, ErrRecoveryToGenesis
	}

	schedule = append(schedule, targetChain[shared:]...)
	schedule = append(schedule, w.target.IndepHash)

	return reverse(targetChain[:shared]), schedule, nil
}

// fetchPair pulls the next full block and its recall block, restarting on
// a bad response until the retry budget is spent.
func (w *Worker) fetchPair(ctx context.Context, nextHash []byte) (next block.Block, recall block.Block, err error) {
	for attempt := 0; attempt < fetchRetries; attempt++ {
		next, err = w.fetchBlock(ctx, nextHash)
		if err != nil {
			continue
		}

		recall, err = w.fetchBlock(ctx, block.RecallHash(next.HashList))
		if err != nil {
			continue
		}

		return next, recall, nil
	}

	return block.Block{}, block.Block{}, ErrRetrievalFailed
}

// fetchBlock serves a block from the local store when possible and from
// the peers otherwise.
func (w *Worker) fetchBlock(ctx context.Context, indepHash []byte) (block.Block, error) {
	if b, err := w.storer.GetBlock(indepHash); err == nil {
		return b, nil
	}

	var lastErr error
	for _, pr := range w.peers {
		b, err := w.fetcher.GetFullBlock(ctx, pr, indepHash)
		if err != nil {
			lastErr = err
			continue
		}
		if !bytes.Equal(b.IndepHash, indepHash) {
			lastErr = ErrBlockMalformed
			continue
		}
		return b, nil
	}

	if lastErr == nil {
		lastErr = ErrRetrievalFailed
	}
	return block.Block{}, lastErr
}

// drainUpdates folds any pending target updates into the schedule. An
// update is adopted only when the current target sits on its branch.
func (w *Worker) drainUpdates(schedule [][]byte) [][]byte {
	for {
		select {
		case u := <-w.updates:
			if bytes.Equal(u.Block.IndepHash, w.target.IndepHash) {
				w.peers = addPeer(w.peers, u.Peer)
				continue
			}
			if !w.onBranch(u.Block) {
				w.evHandler("recovery: update target: blk[%s] is a different branch, ignoring", u.Block)
				continue
			}

			w.evHandler("recovery: update target: extending to blk[%s] at height %d", u.Block, u.Block.Height)

			schedule = extendSchedule(schedule, w.target, u.Block)
			w.target = u.Block
			w.peers = addPeer(w.peers, u.Peer)

		default:
			return schedule
		}
	}
}

// onBranch reports whether the current target is the update or one of its
// ancestors.
func (w *Worker) onBranch(b block.Block) bool {
	if bytes.Equal(w.target.IndepHash, b.IndepHash) {
		return true
	}
	for _, h := range b.HashList {
		if bytes.Equal(w.target.IndepHash, h) {
			return true
		}
	}
	return false
}

// extendSchedule appends the hashes between the old and new target,
// oldest first, the new target last.
func extendSchedule(schedule [][]byte, oldTarget block.Block, newTarget block.Block) [][]byte {
	chain := reverse(newTarget.HashList)

	var from int
	for i, h := range chain {
		if bytes.Equal(h, oldTarget.IndepHash) {
			from = i + 1
			break
		}
	}

	schedule = append(schedule, chain[from:]...)
	return append(schedule, newTarget.IndepHash)
}

// addPeer appends a peer if not already known to the worker.
func addPeer(peers []peer.Peer, pr peer.Peer) []peer.Peer {
	for _, p := range peers {
		if p == pr {
			return peers
		}
	}
	return append(peers, pr)
}

// reverse returns a copy of the hash list in the opposite order.
func reverse(hashes [][]byte) [][]byte {
	out := make([][]byte, len(hashes))
	for i, h := range hashes {
		out[len(hashes)-1-i] = h
	}
	return out
}
