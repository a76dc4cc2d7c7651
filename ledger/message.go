package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMalformedMessage is returned when a payload matches none of the message
// shapes.
var ErrMalformedMessage = errors.New("malformed message")

// errInvalidUTF8 rejects payloads the JSON decoder would otherwise repair
// with U+FFFD, changing the bytes a block hash was computed over.
var errInvalidUTF8 = errors.New("payload is not valid UTF-8")

// ChainRequest asks the peer named by FromPeerID to publish its chain.
type ChainRequest struct {
	FromPeerID string `json:"from_peer_id"`
}

// ChainResponse carries a full chain to the peer named by Receiver.
type ChainResponse struct {
	Blocks   Chain  `json:"blocks"`
	Receiver string `json:"receiver"`
}

// MessageKind identifies which shape a payload decoded as.
type MessageKind int

const (
	MsgChainResponse MessageKind = iota + 1
	MsgChainRequest
	MsgBlock
)

func (k MessageKind) String() string {
	switch k {
	case MsgChainResponse:
		return "chain-response"
	case MsgChainRequest:
		return "chain-request"
	case MsgBlock:
		return "block"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is a decoded payload. Exactly one of Response, Request or Block is
// set, matching Kind.
type Message struct {
	Kind     MessageKind
	Response *ChainResponse
	Request  *ChainRequest
	Block    *Block
}

// DecodeMessage interprets data as a ChainResponse, then a ChainRequest, then
// a bare Block. The first shape that decodes wins.
func DecodeMessage(data []byte) (Message, error) {
	if !utf8.Valid(data) {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, errInvalidUTF8)
	}

	var resp ChainResponse
	if err := json.Unmarshal(data, &resp); err == nil {
		return Message{Kind: MsgChainResponse, Response: &resp}, nil
	}

	var req ChainRequest
	if err := json.Unmarshal(data, &req); err == nil {
		return Message{Kind: MsgChainRequest, Request: &req}, nil
	}

	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return Message{Kind: MsgBlock, Block: &b}, nil
}

// EncodeBlock returns the wire form of a block announcement.
func EncodeBlock(b Block) ([]byte, error) {
	return json.Marshal(b)
}

// EncodeChainRequest returns the wire form of a chain request.
func EncodeChainRequest(req ChainRequest) ([]byte, error) {
	return json.Marshal(req)
}

// EncodeChainResponse returns the wire form of a chain response.
func EncodeChainResponse(resp ChainResponse) ([]byte, error) {
	return json.Marshal(resp)
}

func missingField(name string) error {
	return fmt.Errorf("missing field %q", name)
}

// exactFields decodes a JSON object and checks that every name is present
// with exactly that spelling and a non-null value. encoding/json would
// otherwise accept case-folded keys.
func exactFields(data []byte, names ...string) (map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for _, name := range names {
		raw, ok := m[name]
		if !ok || string(raw) == "null" {
			return nil, missingField(name)
		}
	}
	return m, nil
}

func decodeField(m map[string]json.RawMessage, name string, v any) error {
	if err := json.Unmarshal(m[name], v); err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	return nil
}

// UnmarshalJSON requires every block field to be present. Unknown fields are
// ignored.
func (b *Block) UnmarshalJSON(data []byte) error {
	if !utf8.Valid(data) {
		return errInvalidUTF8
	}
	m, err := exactFields(data, "id", "hash", "previous_hash", "timestamp", "data", "nonce")
	if err != nil {
		return err
	}

	var out Block
	for _, f := range []struct {
		name string
		dst  any
	}{
		{"id", &out.ID},
		{"hash", &out.Hash},
		{"previous_hash", &out.PreviousHash},
		{"timestamp", &out.Timestamp},
		{"data", &out.Data},
		{"nonce", &out.Nonce},
	} {
		if err := decodeField(m, f.name, f.dst); err != nil {
			return err
		}
	}
	*b = out
	return nil
}

// UnmarshalJSON requires from_peer_id to be present.
func (r *ChainRequest) UnmarshalJSON(data []byte) error {
	m, err := exactFields(data, "from_peer_id")
	if err != nil {
		return err
	}
	return decodeField(m, "from_peer_id", &r.FromPeerID)
}

// UnmarshalJSON requires blocks and receiver to be present. Each block is
// shape checked as well.
func (r *ChainResponse) UnmarshalJSON(data []byte) error {
	m, err := exactFields(data, "blocks", "receiver")
	if err != nil {
		return err
	}
	var out ChainResponse
	if err := decodeField(m, "blocks", &out.Blocks); err != nil {
		return err
	}
	if err := decodeField(m, "receiver", &out.Receiver); err != nil {
		return err
	}
	*r = out
	return nil
}

// MarshalJSON always emits blocks as an array so an empty chain still decodes
// as a response on the other side.
func (r ChainResponse) MarshalJSON() ([]byte, error) {
	type wire ChainResponse
	w := wire(r)
	if w.Blocks == nil {
		w.Blocks = Chain{}
	}
	return json.Marshal(w)
}
