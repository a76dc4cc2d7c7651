// Package ledger implements the block model, proof-of-work mining, chain
// validation, fork choice and the chain synchronization protocol.
package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"floodchain/protocol/params"
)

// Block is a single ledger entry. Hash is the hex encoded digest of the other
// fields and is set once, when the block is created or mined.
type Block struct {
	ID           uint64 `json:"id"`
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash"`
	Timestamp    int64  `json:"timestamp"`
	Data         string `json:"data"`
	Nonce        uint64 `json:"nonce"`
}

// Digest returns the SHA-256 hash of the block's content fields.
//
// Layout: id (8 bytes LE) | timestamp (8 bytes LE) | previous_hash (raw) |
// data (raw) | nonce (8 bytes LE). Peers must agree on this layout byte for
// byte, so it must never change.
func Digest(b Block) [32]byte {
	buf := make([]byte, 0, 24+len(b.PreviousHash)+len(b.Data))
	buf = binary.LittleEndian.AppendUint64(buf, b.ID)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(b.Timestamp))
	buf = append(buf, b.PreviousHash...)
	buf = append(buf, b.Data...)
	buf = binary.LittleEndian.AppendUint64(buf, b.Nonce)
	return sha256.Sum256(buf)
}

// DigestHex returns the hex encoding of Digest(b).
func DigestHex(b Block) string {
	d := Digest(b)
	return hex.EncodeToString(d[:])
}

// MeetsDifficulty reports whether a raw digest starts with the difficulty
// prefix bytes.
func MeetsDifficulty(raw []byte) bool {
	if len(raw) < len(params.DifficultyPrefix) {
		return false
	}
	return raw[0] == params.DifficultyPrefix[0] && raw[1] == params.DifficultyPrefix[1]
}

// Genesis returns a fresh genesis block stamped with the current time.
func Genesis() Block {
	return genesisAt(time.Now().Unix())
}

func genesisAt(timestamp int64) Block {
	b := Block{
		ID:           0,
		PreviousHash: params.GenesisSentinel,
		Timestamp:    timestamp,
		Data:         params.GenesisSentinel,
		Nonce:        params.GenesisNonce,
	}
	b.Hash = DigestHex(b)
	return b
}

// ShortHash returns the first 16 hex characters of the block hash for display.
func (b Block) ShortHash() string {
	if len(b.Hash) <= 16 {
		return b.Hash
	}
	return b.Hash[:16]
}

func (b Block) String() string {
	return fmt.Sprintf("block %d (%s)", b.ID, b.ShortHash())
}
