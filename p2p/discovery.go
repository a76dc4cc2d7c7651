package p2p

import (
	"github.com/libp2p/go-libp2p/core/peer"
)

// discoveryNotifee receives mDNS results and forwards them as PeerFound
// events. It runs on the mDNS goroutine and never touches node state itself.
type discoveryNotifee struct {
	node *Node
}

// HandlePeerFound implements mdns.Notifee
func (d *discoveryNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == d.node.host.ID() {
		return
	}
	d.node.emit(PeerEvent{Kind: PeerFound, Info: info})
}
