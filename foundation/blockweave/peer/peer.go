// Package peer maintains the set of known peers and the status
// information exchanged with them.
package peer

import (
	"sync"
)

// Peer represents information about a node in the network.
type Peer struct {
	Host string
}

// New constructs a new peer value.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this peer.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// =============================================================================

// Status represents the tip information a peer reports about itself.
type Status struct {
	LatestBlockHash []byte `json:"latest_block_hash"`
	Height          uint64 `json:"height"`
	KnownPeers      []Peer `json:"known_peers"`
}

// =============================================================================

// Set represents the data representation to maintain a set of known peers.
type Set struct {
	mu  sync.RWMutex
	set map[Peer]struct{}
}

// NewSet constructs a new set to manage peer information.
func NewSet() *Set {
	return &Set{
		set: make(map[Peer]struct{}),
	}
}

// Add adds a new peer to the set, reporting whether it was unknown.
func (ps *Set) Add(p Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[p]; !exists {
		ps.set[p] = struct{}{}
		return true
	}

	return false
}

// Remove removes a peer from the set.
func (ps *Set) Remove(p Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, p)
}

// Copy returns a list of the known peers, excluding the specified host.
func (ps *Set) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.set))
	for p := range ps.set {
		if !p.Match(host) {
			peers = append(peers, p)
		}
	}

	return peers
}
