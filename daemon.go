package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"floodchain/ledger"
	"floodchain/p2p"
	"floodchain/protocol/params"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Transport is what the daemon needs from the P2P layer. *p2p.Node
// implements it.
type Transport interface {
	PeerID() peer.ID
	Publish(ctx context.Context, topic string, data []byte) error
	Messages() <-chan p2p.Message
	PeerEvents() <-chan p2p.PeerEvent
	Peers() []string
	AddPeer(info peer.AddrInfo)
	RemovePeer(pid peer.ID)
}

// DaemonConfig configures the daemon
type DaemonConfig struct {
	// StartupDelay is the settling time before genesis and the first chain request
	StartupDelay time.Duration

	// MineBudget bounds each mining attempt (0 = unbounded)
	MineBudget uint64
}

// DefaultDaemonConfig returns sensible defaults
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		StartupDelay: params.StartupDelay,
	}
}

// errQuit ends the event loop without an error.
var errQuit = errors.New("quit")

// Daemon is the node's event loop. The chain lives in state and is read and
// replaced only on the goroutine running Run.
type Daemon struct {
	config    DaemonConfig
	transport Transport
	miner     *ledger.Miner
	out       io.Writer

	state ledger.State

	commands  chan Command
	responses chan ledger.ChainResponse
}

// NewDaemon creates a daemon around transport. Command output goes to out.
func NewDaemon(cfg DaemonConfig, transport Transport, out io.Writer) *Daemon {
	return &Daemon{
		config:    cfg,
		transport: transport,
		miner:     ledger.NewMiner(ledger.MinerConfig{MaxAttempts: cfg.MineBudget}),
		out:       out,
		state:     ledger.State{Self: transport.PeerID().String()},
		commands:  make(chan Command, 16),
		responses: make(chan ledger.ChainResponse, 16),
	}
}

// Submit hands a command to the event loop. It blocks until the loop accepts
// it or ctx is done.
func (d *Daemon) Submit(ctx context.Context, cmd Command) error {
	select {
	case d.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run services events until ctx is cancelled, a quit command arrives, or a
// fatal consensus error occurs. Only the fatal case returns an error.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.miner.Stop()

	startup := time.NewTimer(d.config.StartupDelay)
	defer startup.Stop()

	log.Printf("Daemon started, peer ID %s", d.state.Self)

	for {
		var err error
		select {
		case <-ctx.Done():
			return nil
		case <-startup.C:
			err = d.handleStartup(ctx)
		case cmd := <-d.commands:
			err = d.handleCommand(ctx, cmd)
		case resp := <-d.responses:
			err = d.handleResponse(ctx, resp)
		case res := <-d.miner.Results():
			err = d.handleMined(ctx, res)
		case msg := <-d.transport.Messages():
			err = d.handleMessage(ctx, msg)
		case ev := <-d.transport.PeerEvents():
			d.handlePeerEvent(ev)
		}

		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			log.Printf("FATAL: %v", err)
			return err
		}
	}
}

// apply installs a handler result and performs its effects. Non-fatal
// handler errors are logged and swallowed.
func (d *Daemon) apply(ctx context.Context, st ledger.State, effects []ledger.Effect, err error) error {
	if err != nil {
		if ledger.IsFatal(err) {
			return err
		}
		log.Printf("%v", err)
	}
	d.state = st

	for _, eff := range effects {
		switch eff.Kind {
		case ledger.EffectPublish:
			d.publish(ctx, eff.Topic, eff.Payload)
		case ledger.EffectRespond:
			select {
			case d.responses <- *eff.Response:
			default:
				log.Printf("Response queue full, dropping chain response for %s", eff.Response.Receiver)
			}
		}
	}
	return nil
}

func (d *Daemon) publish(ctx context.Context, topic string, data []byte) {
	if err := d.transport.Publish(ctx, topic, data); err != nil {
		log.Printf("failed to publish on %s: %v", topic, err)
	}
}

func (d *Daemon) handleStartup(ctx context.Context) error {
	st, effects, err := ledger.Startup(d.state, d.transport.Peers())
	if err := d.apply(ctx, st, effects, err); err != nil {
		return err
	}
	if len(effects) > 0 {
		log.Printf("Requested chain from a known peer")
	}
	return nil
}

func (d *Daemon) handleMessage(ctx context.Context, msg p2p.Message) error {
	in := ledger.Inbound{
		Topic: msg.Topic,
		From:  msg.From.String(),
		Data:  msg.Data,
	}
	st, effects, err := ledger.Handle(d.state, in)
	return d.apply(ctx, st, effects, err)
}

// handleResponse publishes a chain response queued by the protocol handler.
func (d *Daemon) handleResponse(ctx context.Context, resp ledger.ChainResponse) error {
	data, err := ledger.EncodeChainResponse(resp)
	if err != nil {
		log.Printf("failed to encode chain response: %v", err)
		return nil
	}
	d.publish(ctx, params.TopicChains, data)
	return nil
}

func (d *Daemon) handleMined(ctx context.Context, res ledger.MineResult) error {
	if res.Err != nil {
		if errors.Is(res.Err, context.Canceled) {
			return nil
		}
		log.Printf("Mining failed after %d attempts: %v", res.Attempts, res.Err)
		return nil
	}

	log.Printf("Mined block %d (%s) in %s, %d attempts (%.0f H/s avg)",
		res.Block.ID, res.Block.ShortHash(), res.Elapsed.Round(time.Millisecond), res.Attempts, searchRate(res.Attempts, res.Elapsed))

	st, effects, err := ledger.MinedBlock(d.state, res.Block)
	if err := d.apply(ctx, st, effects, err); err != nil {
		return err
	}
	if len(effects) > 0 {
		log.Printf("Broadcast block %d", res.Block.ID)
	}
	return nil
}

// searchRate returns digests per second for a single search.
func searchRate(attempts uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(attempts) / elapsed.Seconds()
}

func (d *Daemon) handlePeerEvent(ev p2p.PeerEvent) {
	log.Printf("Peer %s: %s", ev.Kind, ev.Info.ID)
	switch ev.Kind {
	case p2p.PeerFound:
		d.transport.AddPeer(ev.Info)
	case p2p.PeerLost:
		d.transport.RemovePeer(ev.Info.ID)
	}
}

func (d *Daemon) handleCommand(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CmdListPeers:
		d.cmdListPeers()
	case CmdListChain:
		d.cmdListChain()
	case CmdCreateBlock:
		d.cmdCreateBlock(ctx, cmd.Payload)
	case CmdHelp:
		fmt.Fprint(d.out, helpText)
	case CmdQuit:
		return errQuit
	}
	return nil
}

func (d *Daemon) cmdListPeers() {
	peers := d.transport.Peers()
	if len(peers) == 0 {
		fmt.Fprintln(d.out, "No known peers")
		return
	}
	fmt.Fprintf(d.out, "Known peers (%d):\n", len(peers))
	for _, p := range peers {
		fmt.Fprintf(d.out, "  %s\n", p)
	}
}

func (d *Daemon) cmdListChain() {
	chain := d.state.Chain
	if chain == nil {
		chain = ledger.Chain{}
	}
	data, err := json.MarshalIndent(chain, "", "  ")
	if err != nil {
		log.Printf("failed to encode chain: %v", err)
		return
	}
	fmt.Fprintf(d.out, "Local chain (%d blocks):\n%s\n", chain.Len(), data)
}

func (d *Daemon) cmdCreateBlock(ctx context.Context, payload string) {
	tip, err := d.state.Chain.Tip()
	if err != nil {
		log.Printf("Cannot mine: %v", err)
		return
	}
	if err := d.miner.Start(ctx, tip, payload); err != nil {
		log.Printf("Cannot mine: %v", err)
		return
	}
	log.Printf("Mining block %d", tip.ID+1)
}
