package ledger

import (
	"errors"
	"fmt"
	"log"

	"floodchain/protocol/params"
)

// ErrStaleBlock is returned by MinedBlock when the chain tip moved while the
// block was being mined.
var ErrStaleBlock = errors.New("mined block no longer extends the tip")

// State is everything the protocol handler reads and replaces: the node's own
// peer identity and its chain.
type State struct {
	Self  string
	Chain Chain
}

// Inbound is one payload received from the transport.
type Inbound struct {
	Topic string
	From  string
	Data  []byte
}

// EffectKind identifies an action the caller must perform after a handler
// returns.
type EffectKind int

const (
	// EffectPublish publishes Payload on Topic.
	EffectPublish EffectKind = iota + 1

	// EffectRespond queues Response for delivery on the internal response
	// path. It must not be published from inside the dispatch call.
	EffectRespond
)

// Effect is an outbound action produced by the handler.
type Effect struct {
	Kind     EffectKind
	Topic    string
	Payload  []byte
	Response *ChainResponse
}

// IsFatal reports whether a handler error means the node can no longer trust
// its chain and must stop.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBothChainsInvalid)
}

// Handle decodes one inbound payload and applies it to st. Malformed payloads
// and invalid blocks are dropped without an error; the returned error is
// reserved for conditions the caller must report.
func Handle(st State, in Inbound) (State, []Effect, error) {
	msg, err := DecodeMessage(in.Data)
	if err != nil {
		log.Printf("Dropped message on %s from %s: %v", in.Topic, shortID(in.From), err)
		return st, nil, nil
	}

	switch msg.Kind {
	case MsgChainResponse:
		return handleChainResponse(st, in.From, *msg.Response)
	case MsgChainRequest:
		return handleChainRequest(st, in.From, *msg.Request)
	case MsgBlock:
		return handleBlock(st, in.From, *msg.Block)
	}
	return st, nil, nil
}

func handleChainResponse(st State, from string, resp ChainResponse) (State, []Effect, error) {
	if resp.Receiver != st.Self {
		return st, nil, nil
	}

	log.Printf("Received chain of %d blocks from %s", resp.Blocks.Len(), shortID(from))

	chosen, err := ChooseChain(st.Chain, resp.Blocks)
	if err != nil {
		return st, nil, fmt.Errorf("chain response from %s: %w", shortID(from), err)
	}
	if chosen.Len() != st.Chain.Len() {
		log.Printf("Adopted remote chain, height %d", chosen.Len()-1)
	}
	st.Chain = chosen
	return st, nil, nil
}

func handleChainRequest(st State, from string, req ChainRequest) (State, []Effect, error) {
	if req.FromPeerID != st.Self {
		return st, nil, nil
	}

	resp := &ChainResponse{
		Blocks:   st.Chain.Clone(),
		Receiver: from,
	}
	return st, []Effect{{Kind: EffectRespond, Response: resp}}, nil
}

func handleBlock(st State, from string, b Block) (State, []Effect, error) {
	next, err := st.Chain.TryAppend(b)
	if errors.Is(err, ErrChainNotInitialized) {
		return st, nil, fmt.Errorf("block %d from %s: %w", b.ID, shortID(from), err)
	}
	if err != nil {
		log.Printf("Dropped block from %s: %v", shortID(from), err)
		return st, nil, nil
	}

	log.Printf("Accepted block %d from %s", b.ID, shortID(from))
	st.Chain = next
	return st, nil, nil
}

// Startup installs a genesis block when the chain is empty and, if any peer
// is known, asks the last of them for its chain.
func Startup(st State, peers []string) (State, []Effect, error) {
	genesis := Genesis()
	if st.Chain.Len() == 0 {
		st.Chain = Chain{genesis}
	} else {
		log.Printf("Chain already installed (height %d), discarding fresh genesis", st.Chain.Len()-1)
	}

	if len(peers) == 0 {
		return st, nil, nil
	}

	req := ChainRequest{FromPeerID: peers[len(peers)-1]}
	data, err := EncodeChainRequest(req)
	if err != nil {
		return st, nil, fmt.Errorf("failed to encode chain request: %w", err)
	}
	return st, []Effect{{Kind: EffectPublish, Topic: params.TopicChains, Payload: data}}, nil
}

// MinedBlock appends a block produced by the local miner and announces it.
func MinedBlock(st State, b Block) (State, []Effect, error) {
	next, err := st.Chain.TryAppend(b)
	if errors.Is(err, ErrChainNotInitialized) {
		return st, nil, err
	}
	if err != nil {
		return st, nil, fmt.Errorf("%w: %v", ErrStaleBlock, err)
	}

	data, err := EncodeBlock(b)
	if err != nil {
		return st, nil, fmt.Errorf("failed to encode block: %w", err)
	}

	st.Chain = next
	return st, []Effect{{Kind: EffectPublish, Topic: params.TopicBlocks, Payload: data}}, nil
}

// shortID trims a peer ID for log output.
func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
