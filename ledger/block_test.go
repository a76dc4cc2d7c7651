package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"floodchain/protocol/params"
)

func TestDigest_Deterministic(t *testing.T) {
	b := Block{ID: 7, PreviousHash: "abc", Timestamp: 1700000000, Data: "payload", Nonce: 42}
	first := Digest(b)
	for i := 0; i < 10; i++ {
		if got := Digest(b); got != first {
			t.Fatalf("digest changed between calls: %x != %x", got, first)
		}
	}

	// The hash field is not part of the digest.
	b.Hash = "ignored"
	if got := Digest(b); got != first {
		t.Fatalf("hash field leaked into digest: %x != %x", got, first)
	}
}

func TestDigest_ByteLayout(t *testing.T) {
	b := Block{ID: 1, PreviousHash: "prev", Timestamp: -5, Data: "data", Nonce: 0x0102030405060708}

	var want []byte
	want = binary.LittleEndian.AppendUint64(want, 1)
	want = binary.LittleEndian.AppendUint64(want, uint64(b.Timestamp))
	want = append(want, "prev"...)
	want = append(want, "data"...)
	want = binary.LittleEndian.AppendUint64(want, 0x0102030405060708)

	if got, exp := Digest(b), sha256.Sum256(want); got != exp {
		t.Fatalf("digest does not follow wire layout: got %x, want %x", got, exp)
	}
}

func TestDigest_FieldsAffectHash(t *testing.T) {
	base := Block{ID: 1, PreviousHash: "p", Timestamp: 10, Data: "d", Nonce: 3}
	variants := map[string]Block{
		"id":            {ID: 2, PreviousHash: "p", Timestamp: 10, Data: "d", Nonce: 3},
		"previous_hash": {ID: 1, PreviousHash: "q", Timestamp: 10, Data: "d", Nonce: 3},
		"timestamp":     {ID: 1, PreviousHash: "p", Timestamp: 11, Data: "d", Nonce: 3},
		"data":          {ID: 1, PreviousHash: "p", Timestamp: 10, Data: "e", Nonce: 3},
		"nonce":         {ID: 1, PreviousHash: "p", Timestamp: 10, Data: "d", Nonce: 4},
	}
	for field, v := range variants {
		if Digest(v) == Digest(base) {
			t.Fatalf("changing %s did not change the digest", field)
		}
	}
}

func TestMeetsDifficulty(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want bool
	}{
		{"ascii zeros", []byte{0x30, 0x30, 0xff}, true},
		{"exactly prefix", []byte{0x30, 0x30}, true},
		{"numeric zeros", []byte{0x00, 0x00, 0x30}, false},
		{"one zero", []byte{0x30, 0x31}, false},
		{"too short", []byte{0x30}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MeetsDifficulty(tt.raw); got != tt.want {
				t.Fatalf("MeetsDifficulty(%x) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestGenesis_Fields(t *testing.T) {
	g := genesisAt(1234)

	if g.ID != 0 {
		t.Fatalf("genesis id = %d, want 0", g.ID)
	}
	if g.PreviousHash != params.GenesisSentinel || g.Data != params.GenesisSentinel {
		t.Fatalf("genesis sentinel fields = %q/%q", g.PreviousHash, g.Data)
	}
	if g.Nonce != params.GenesisNonce {
		t.Fatalf("genesis nonce = %d, want %d", g.Nonce, params.GenesisNonce)
	}
	if g.Timestamp != 1234 {
		t.Fatalf("genesis timestamp = %d, want 1234", g.Timestamp)
	}
	d := Digest(g)
	if g.Hash != hex.EncodeToString(d[:]) {
		t.Fatalf("genesis hash %s does not match its digest", g.Hash)
	}

	// Same timestamp, same block.
	if again := genesisAt(1234); again != g {
		t.Fatalf("genesis not deterministic for a fixed timestamp")
	}
}
