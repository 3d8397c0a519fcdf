package core

import (
	"sync"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// PeerRegistry is the thread-safe string-interning cache of canonical
// peers (spec.md §4.3, C3), grounded on engine/canonical_peer_map.cc:
// a single mutex-guarded map from peer-ID string to a pointer-stable
// record, constructed lazily on first lookup. Returned handles are
// stable for the life of the process.
type PeerRegistry struct {
	mu      sync.Mutex
	peers   map[types.PeerID]*types.CanonicalPeer
}

// NewPeerRegistry returns an empty registry.
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{peers: make(map[types.PeerID]*types.CanonicalPeer)}
}

// Get returns the unique canonical-peer record for peerID, constructing
// it on first use.
func (r *PeerRegistry) Get(peerID types.PeerID) *types.CanonicalPeer {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.peers[peerID]
	if !ok {
		peer = types.NewCanonicalPeer(peerID)
		r.peers[peerID] = peer
	}
	return peer
}

// All returns every canonical peer interned so far.
func (r *PeerRegistry) All() []*types.CanonicalPeer {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers := make([]*types.CanonicalPeer, 0, len(r.peers))
	for _, peer := range r.peers {
		peers = append(peers, peer)
	}
	return peers
}
