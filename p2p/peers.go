package p2p

import (
	"sort"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// MaxKnownPeers bounds memory growth from peer churn.
const MaxKnownPeers = 2048

// PeerRecord is what the node remembers about a discovered peer.
type PeerRecord struct {
	ID       peer.ID
	Addrs    []multiaddr.Multiaddr
	LastSeen time.Time
}

// PeerBook is the set of peers the node currently knows about.
type PeerBook struct {
	mu    sync.RWMutex
	peers map[peer.ID]*PeerRecord
	max   int
}

// NewPeerBook creates an empty book holding at most max peers.
func NewPeerBook(max int) *PeerBook {
	if max < 1 {
		max = MaxKnownPeers
	}
	return &PeerBook{
		peers: make(map[peer.ID]*PeerRecord),
		max:   max,
	}
}

// Add records pid, refreshing its addresses and last-seen time if already
// known. It returns true if the peer was not known before.
func (b *PeerBook) Add(pid peer.ID, addrs []multiaddr.Multiaddr) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if rec, ok := b.peers[pid]; ok {
		if len(addrs) > 0 {
			rec.Addrs = addrs
		}
		rec.LastSeen = now
		return false
	}

	if len(b.peers) >= b.max {
		b.evictOldestLocked()
	}
	b.peers[pid] = &PeerRecord{ID: pid, Addrs: addrs, LastSeen: now}
	return true
}

// evictOldestLocked drops the least recently seen peer.
func (b *PeerBook) evictOldestLocked() {
	var oldest peer.ID
	var oldestSeen time.Time
	for pid, rec := range b.peers {
		if oldest == "" || rec.LastSeen.Before(oldestSeen) {
			oldest = pid
			oldestSeen = rec.LastSeen
		}
	}
	if oldest != "" {
		delete(b.peers, oldest)
	}
}

// Remove forgets pid. It returns true if the peer was known.
func (b *PeerBook) Remove(pid peer.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.peers[pid]; !ok {
		return false
	}
	delete(b.peers, pid)
	return true
}

// Has reports whether pid is known.
func (b *PeerBook) Has(pid peer.ID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.peers[pid]
	return ok
}

// Len returns the number of known peers.
func (b *PeerBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peers)
}

// IDs returns the known peer IDs sorted by their string form.
func (b *PeerBook) IDs() []peer.ID {
	b.mu.RLock()
	ids := make([]peer.ID, 0, len(b.peers))
	for pid := range b.peers {
		ids = append(ids, pid)
	}
	b.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
