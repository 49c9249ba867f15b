// Package miner implements the proof of work worker. The miner samples
// nonces over a data segment until a hash meets the difficulty, accepting
// data swaps between attempts and stopping promptly on cancel.
package miner

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
)

// EventHandler defines a function that is called when events occur in the
// processing of the miner.
type EventHandler func(v string, args ...any)

// nonceSize is the number of random bytes sampled per attempt.
const nonceSize = 32

// Data is the unit swapped atomically by ChangeData: the segment being
// hashed and the transactions it commits to.
type Data struct {
	Segment []byte
	Txs     []tx.Tx
}

// Work is the successful mining proof delivered to the parent.
type Work struct {
	Txs         []tx.Tx
	PrevPowHash []byte
	Hash        []byte
	Diff        uint
	Nonce       []byte
}

// =============================================================================

// Miner represents a single mining worker. Each miner runs one goroutine
// and communicates with its parent only over channels.
type Miner struct {
	prevPowHash []byte
	diff        uint
	delay       time.Duration
	evHandler   EventHandler

	change   chan Data
	stop     chan struct{}
	complete chan Work
	stopOnce sync.Once
}

// New constructs a miner over the specified previous pow hash and
// difficulty. Run must be called to start the work.
func New(prevPowHash []byte, diff uint, data Data, delay time.Duration, ev EventHandler) *Miner {
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	m := Miner{
		prevPowHash: prevPowHash,
		diff:        diff,
		delay:       delay,
		evHandler:   ev,
		change:      make(chan Data, 1),
		stop:        make(chan struct{}),
		complete:    make(chan Work, 1),
	}
	m.change <- data

	return &m
}

// Run executes the mining loop until a proof is found or the miner is
// stopped. It is intended to run as its own goroutine.
func (m *Miner) Run() {
	m.evHandler("miner: run: G started: diff[%d]", m.diff)
	defer m.evHandler("miner: run: G completed")

	var data Data

	for attempts := uint64(0); ; attempts++ {

		// A pending data swap or stop wins over the next attempt.
		select {
		case data = <-m.change:
			m.evHandler("miner: run: data changed: txs[%d]", len(data.Txs))
		case <-m.stop:
			m.evHandler("miner: run: received stop signal")
			return
		default:
		}

		if m.delay > 0 {
			select {
			case <-time.After(m.delay):
			case <-m.stop:
				m.evHandler("miner: run: received stop signal")
				return
			}
		}

		nonce := make([]byte, nonceSize)
		if _, err := rand.Read(nonce); err != nil {
			m.evHandler("miner: run: ERROR: sample nonce: %s", err)
			continue
		}

		hash, ok := block.PowVerify(m.prevPowHash, m.diff, data.Segment, nonce)
		if !ok {
			continue
		}

		m.evHandler("miner: run: MINED: diff[%d] attempts[%d]", m.diff, attempts+1)

		m.complete <- Work{
			Txs:         data.Txs,
			PrevPowHash: m.prevPowHash,
			Hash:        hash,
			Diff:        m.diff,
			Nonce:       nonce,
		}

		return
	}
}

// ChangeData swaps the data segment and transaction set the miner works
// over. The swap is observed at the next attempt boundary.
func (m *Miner) ChangeData(data Data) {

	// Replace any swap the miner has not picked up yet.
	for {
		select {
		case m.change <- data:
			return
		case <-m.change:
		}
	}
}

// Stop cancels the mining operation. Stopping an already stopped miner
// is a no-op.
func (m *Miner) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

// Complete returns the channel the mining proof is delivered on. The
// channel is buffered so the miner goroutine never blocks on delivery.
func (m *Miner) Complete() <-chan Work {
	return m.complete
}
