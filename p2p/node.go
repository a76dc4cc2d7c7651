package p2p

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"floodchain/protocol/params"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/multiformats/go-multiaddr"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
)

// NodeConfig configures the P2P node
type NodeConfig struct {
	// ListenAddrs are the multiaddrs to listen on
	// Default: ["/ip4/0.0.0.0/tcp/0"]
	ListenAddrs []string

	// BootstrapPeers are full multiaddrs (with /p2p/<id>) dialled at start
	BootstrapPeers []string

	// EnableMDNS turns on LAN peer discovery
	EnableMDNS bool

	// MaxPeers is the connection manager high water mark
	MaxPeers int

	// Identity selects persistent or ephemeral key material
	Identity IdentityConfig

	// Topics to join and subscribe to at start
	Topics []string

	// UserAgent is announced to peers
	UserAgent string
}

// DefaultNodeConfig returns sensible defaults
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		ListenAddrs: []string{"/ip4/0.0.0.0/tcp/0"},
		EnableMDNS:  true,
		MaxPeers:    64,
		Identity:    DefaultIdentityConfig(),
		Topics:      []string{params.TopicChains, params.TopicBlocks},
		UserAgent:   params.UserAgent,
	}
}

// Message is a payload received on a subscribed topic. From is the peer that
// authored the message, which may differ from the peer that relayed it.
type Message struct {
	Topic string
	From  peer.ID
	Data  []byte
}

// PeerEventKind distinguishes discovery from expiry.
type PeerEventKind int

const (
	PeerFound PeerEventKind = iota + 1
	PeerLost
)

func (k PeerEventKind) String() string {
	switch k {
	case PeerFound:
		return "found"
	case PeerLost:
		return "lost"
	default:
		return "unknown"
	}
}

// PeerEvent reports a discovered or expired peer.
type PeerEvent struct {
	Kind PeerEventKind
	Info peer.AddrInfo
}

// Node represents a P2P network node
type Node struct {
	mu sync.RWMutex

	host   host.Host
	ps     *pubsub.PubSub
	topics map[string]*pubsub.Topic
	subs   []*pubsub.Subscription
	disc   mdns.Service
	book   *PeerBook
	config NodeConfig

	messages chan Message
	events   chan PeerEvent

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNode creates a libp2p host and a floodsub router on top of it. Nothing is
// joined or dialled until Start.
func NewNode(cfg NodeConfig) (*Node, error) {
	ctx, cancel := context.WithCancel(context.Background())

	privKey, id, err := LoadIdentity(cfg.Identity)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	// Parse listen addresses
	listenAddrs := make([]multiaddr.Multiaddr, 0, len(cfg.ListenAddrs))
	for _, addr := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("invalid listen address %s: %w", addr, err)
		}
		listenAddrs = append(listenAddrs, ma)
	}

	maxPeers := cfg.MaxPeers
	if maxPeers < 2 {
		maxPeers = 2
	}
	connMgr, err := connmgr.NewConnManager(
		maxPeers/2, // low water
		maxPeers,   // high water
		connmgr.WithGracePeriod(time.Minute),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrs(listenAddrs...),
		libp2p.ConnectionManager(connMgr),
		libp2p.UserAgent(cfg.UserAgent),
		// Disable relay (we don't want to route others' traffic)
		libp2p.DisableRelay(),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	ps, err := pubsub.NewFloodSub(ctx, h, pubsub.WithMaxMessageSize(params.MaxMessageSize))
	if err != nil {
		cancel()
		if closeErr := h.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to create floodsub: %w (additionally failed to close host: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to create floodsub: %w", err)
	}

	log.Printf("Peer ID: %s", id)

	return &Node{
		host:     h,
		ps:       ps,
		topics:   make(map[string]*pubsub.Topic),
		book:     NewPeerBook(MaxKnownPeers),
		config:   cfg,
		messages: make(chan Message, 64),
		events:   make(chan PeerEvent, 64),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start joins the configured topics, starts discovery and dials bootstrap
// peers.
func (n *Node) Start() error {
	bootstrap, err := ParseBootstrapAddrs(n.config.BootstrapPeers)
	if err != nil {
		return err
	}

	for _, name := range n.config.Topics {
		if err := n.join(name); err != nil {
			return err
		}
	}

	n.host.Network().Notify(&network.NotifyBundle{
		ConnectedF:    n.handleConnected,
		DisconnectedF: n.handleDisconnected,
	})

	if n.config.EnableMDNS {
		n.disc = mdns.NewMdnsService(n.host, params.NetworkID, &discoveryNotifee{node: n})
		if err := n.disc.Start(); err != nil {
			return fmt.Errorf("failed to start mdns: %w", err)
		}
	}

	for _, info := range bootstrap {
		n.AddPeer(info)
	}

	return nil
}

// join joins a topic and starts forwarding its messages to Messages.
func (n *Node) join(name string) error {
	topic, err := n.ps.Join(name)
	if err != nil {
		return fmt.Errorf("failed to join topic %s: %w", name, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", name, err)
	}

	n.mu.Lock()
	n.topics[name] = topic
	n.subs = append(n.subs, sub)
	n.mu.Unlock()

	n.wg.Add(1)
	go n.readLoop(name, sub)
	return nil
}

func (n *Node) readLoop(name string, sub *pubsub.Subscription) {
	defer n.wg.Done()
	self := n.host.ID()

	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			// Context cancelled or subscription closed
			return
		}
		// Floodsub hands our own publications back to us.
		if msg.ReceivedFrom == self {
			continue
		}

		select {
		case n.messages <- Message{Topic: name, From: msg.GetFrom(), Data: msg.Data}:
		case <-n.ctx.Done():
			return
		}
	}
}

// handleConnected records inbound dialers so they are known without mDNS.
func (n *Node) handleConnected(_ network.Network, c network.Conn) {
	pid := c.RemotePeer()
	if n.book.Has(pid) {
		return
	}
	n.emit(PeerEvent{Kind: PeerFound, Info: peer.AddrInfo{ID: pid, Addrs: []multiaddr.Multiaddr{c.RemoteMultiaddr()}}})
}

func (n *Node) handleDisconnected(net network.Network, c network.Conn) {
	pid := c.RemotePeer()
	if net.Connectedness(pid) == network.Connected {
		return
	}
	n.emit(PeerEvent{Kind: PeerLost, Info: peer.AddrInfo{ID: pid}})
}

func (n *Node) emit(ev PeerEvent) {
	select {
	case n.events <- ev:
	case <-n.ctx.Done():
	}
}

// Stop gracefully shuts down the node
func (n *Node) Stop() error {
	n.cancel()

	if n.disc != nil {
		if err := n.disc.Close(); err != nil {
			log.Printf("failed to close mdns: %v", err)
		}
	}

	n.mu.Lock()
	for _, sub := range n.subs {
		sub.Cancel()
	}
	n.subs = nil
	for name, topic := range n.topics {
		if err := topic.Close(); err != nil {
			log.Printf("failed to close topic %s: %v", name, err)
		}
	}
	n.topics = make(map[string]*pubsub.Topic)
	n.mu.Unlock()

	n.wg.Wait()
	return n.host.Close()
}

// Publish floods data to every peer subscribed to topic.
func (n *Node) Publish(ctx context.Context, topic string, data []byte) error {
	n.mu.RLock()
	t, ok := n.topics[topic]
	n.mu.RUnlock()
	if !ok {
		return fmt.Errorf("not joined to topic %s", topic)
	}
	return t.Publish(ctx, data)
}

// Messages returns the channel inbound topic messages arrive on.
func (n *Node) Messages() <-chan Message {
	return n.messages
}

// PeerEvents returns the channel discovery and expiry events arrive on.
func (n *Node) PeerEvents() <-chan PeerEvent {
	return n.events
}

// AddPeer records a peer and dials it in the background if not connected.
func (n *Node) AddPeer(info peer.AddrInfo) {
	if info.ID == n.host.ID() {
		return
	}
	n.book.Add(info.ID, info.Addrs)

	if n.host.Network().Connectedness(info.ID) == network.Connected {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
		defer cancel()
		if err := n.host.Connect(ctx, info); err != nil {
			log.Printf("failed to connect to peer %s: %v", shortPeer(info.ID), err)
		}
	}()
}

// RemovePeer forgets a peer unless it is still connected.
func (n *Node) RemovePeer(pid peer.ID) {
	if n.host.Network().Connectedness(pid) == network.Connected {
		return
	}
	n.book.Remove(pid)
}

// PeerID returns the node's peer ID
func (n *Node) PeerID() peer.ID {
	return n.host.ID()
}

// Addrs returns the listen addresses
func (n *Node) Addrs() []multiaddr.Multiaddr {
	return n.host.Addrs()
}

// Peers returns the known peer IDs in a stable order.
func (n *Node) Peers() []string {
	ids := n.book.IDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// FullMultiaddrs returns the complete multiaddrs including peer ID
// These are the addresses other nodes need to connect to this node
func (n *Node) FullMultiaddrs() []string {
	pid := n.PeerID()
	addrs := n.Addrs()

	full := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		s := addr.String()
		if strings.HasPrefix(s, "/ip4/127.") || strings.HasPrefix(s, "/ip6/::1") {
			continue
		}
		full = append(full, fmt.Sprintf("%s/p2p/%s", s, pid.String()))
	}
	return full
}

// ParseBootstrapAddrs converts /p2p/ multiaddr strings to AddrInfos.
func ParseBootstrapAddrs(addrs []string) ([]peer.AddrInfo, error) {
	infos := make([]peer.AddrInfo, 0, len(addrs))
	for _, s := range addrs {
		ma, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid bootstrap address %s: %w", s, err)
		}
		info, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			return nil, fmt.Errorf("bootstrap address %s has no peer id: %w", s, err)
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

func shortPeer(pid peer.ID) string {
	s := pid.String()
	if len(s) > 16 {
		return s[:16]
	}
	return s
}
