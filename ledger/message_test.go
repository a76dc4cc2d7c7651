package ledger

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeMessage_Block(t *testing.T) {
	b := Mine(Genesis(), "wire")
	data, err := EncodeBlock(b)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	for _, field := range []string{`"id"`, `"hash"`, `"previous_hash"`, `"timestamp"`, `"data"`, `"nonce"`} {
		if !strings.Contains(string(data), field) {
			t.Fatalf("encoded block missing %s: %s", field, data)
		}
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.Kind != MsgBlock || msg.Block == nil {
		t.Fatalf("decoded as %v, want block", msg.Kind)
	}
	if *msg.Block != b {
		t.Fatalf("decoded block differs: %+v != %+v", *msg.Block, b)
	}
}

func TestDecodeMessage_Precedence(t *testing.T) {
	tests := []struct {
		name string
		data string
		want MessageKind
	}{
		{
			name: "chain response",
			data: `{"blocks":[],"receiver":"peer-a"}`,
			want: MsgChainResponse,
		},
		{
			name: "chain request",
			data: `{"from_peer_id":"peer-a"}`,
			want: MsgChainRequest,
		},
		{
			name: "block",
			data: `{"id":1,"hash":"3030","previous_hash":"p","timestamp":5,"data":"d","nonce":9}`,
			want: MsgBlock,
		},
		{
			name: "response wins over request",
			data: `{"blocks":[],"receiver":"peer-a","from_peer_id":"peer-b"}`,
			want: MsgChainResponse,
		},
		{
			name: "request wins over block",
			data: `{"from_peer_id":"peer-b","id":1,"hash":"3030","previous_hash":"p","timestamp":5,"data":"d","nonce":9}`,
			want: MsgChainRequest,
		},
		{
			name: "unknown fields ignored",
			data: `{"from_peer_id":"peer-a","extra":true}`,
			want: MsgChainRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.data))
			if err != nil {
				t.Fatalf("DecodeMessage: %v", err)
			}
			if msg.Kind != tt.want {
				t.Fatalf("decoded as %v, want %v", msg.Kind, tt.want)
			}
		})
	}
}

func TestDecodeMessage_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":            `hello`,
		"empty object":        `{}`,
		"block missing nonce": `{"id":1,"hash":"3030","previous_hash":"p","timestamp":5,"data":"d"}`,
		"wrong type":          `{"from_peer_id":42}`,
		"response bad block":  `{"blocks":[{"id":1}],"receiver":"peer-a"}`,
		"array":               `[1,2,3]`,
		"case folded keys":    `{"BLOCKS":[],"Receiver":"peer-a"}`,
		"case folded block":   `{"ID":1,"Hash":"3030","Previous_Hash":"p","Timestamp":5,"Data":"d","Nonce":9}`,
		"null field":          `{"from_peer_id":null}`,
		"null block field":    `{"id":1,"hash":"3030","previous_hash":"p","timestamp":5,"data":null,"nonce":9}`,
		"invalid utf8 data":   "{\"id\":1,\"hash\":\"3030\",\"previous_hash\":\"p\",\"timestamp\":5,\"data\":\"a\xff\",\"nonce\":9}",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(data))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestEncodeChainResponse_EmptyChain(t *testing.T) {
	data, err := EncodeChainResponse(ChainResponse{Receiver: "peer-a"})
	if err != nil {
		t.Fatalf("EncodeChainResponse: %v", err)
	}
	if !strings.Contains(string(data), `"blocks":[]`) {
		t.Fatalf("nil chain not encoded as empty array: %s", data)
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.Kind != MsgChainResponse || msg.Response.Receiver != "peer-a" {
		t.Fatalf("round trip lost the response: %+v", msg)
	}
}

func TestEncodeChainResponse_RoundTrip(t *testing.T) {
	chain := mustMineChain(t, 3, "response")
	data, err := EncodeChainResponse(ChainResponse{Blocks: chain, Receiver: "peer-b"})
	if err != nil {
		t.Fatalf("EncodeChainResponse: %v", err)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.Response.Blocks.Len() != 3 {
		t.Fatalf("decoded %d blocks, want 3", msg.Response.Blocks.Len())
	}
	if !IsChainValid(msg.Response.Blocks) {
		t.Fatal("decoded chain no longer validates")
	}
}

func TestDecodeMessage_PreservesPayloadBytes(t *testing.T) {
	parent := Genesis()
	b := Mine(parent, "héllo 世界")
	data, err := EncodeBlock(b)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.Block.Data != b.Data {
		t.Fatalf("payload changed in transit: %q != %q", msg.Block.Data, b.Data)
	}
	if !IsBlockValid(*msg.Block, parent) {
		t.Fatal("decoded block no longer matches its hash")
	}
}
