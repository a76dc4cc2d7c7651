package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
)

// Validation failures, in the order the checks run.
var (
	ErrPrevHashMismatch     = errors.New("previous hash does not match parent hash")
	ErrHashEncoding         = errors.New("hash is not valid hex")
	ErrDifficulty           = errors.New("hash does not meet difficulty")
	ErrIDMismatch           = errors.New("id does not follow parent id")
	ErrParentDigestMismatch = errors.New("previous hash does not match recomputed parent digest")
)

// ValidateBlock checks candidate against its parent and returns the first
// failing rule. Checks run in a fixed order and stop at the first failure.
func ValidateBlock(candidate, parent Block) error {
	if candidate.PreviousHash != parent.Hash {
		return fmt.Errorf("block %d: %w", candidate.ID, ErrPrevHashMismatch)
	}

	raw, err := hex.DecodeString(candidate.Hash)
	if err != nil {
		return fmt.Errorf("block %d: %w: %v", candidate.ID, ErrHashEncoding, err)
	}
	if !MeetsDifficulty(raw) {
		return fmt.Errorf("block %d: %w", candidate.ID, ErrDifficulty)
	}

	if candidate.ID != parent.ID+1 {
		return fmt.Errorf("block %d: %w: parent id %d", candidate.ID, ErrIDMismatch, parent.ID)
	}

	// Catches a parent whose fields were changed after its hash was set.
	if DigestHex(parent) != candidate.PreviousHash {
		return fmt.Errorf("block %d: %w: parent id %d", candidate.ID, ErrParentDigestMismatch, parent.ID)
	}

	return nil
}

// IsBlockValid reports whether candidate may follow parent, logging the
// reason when it may not.
func IsBlockValid(candidate, parent Block) bool {
	if err := ValidateBlock(candidate, parent); err != nil {
		log.Printf("invalid block: %v", err)
		return false
	}
	return true
}

// ValidateChain checks every adjacent pair of the chain. The genesis block at
// index 0 is accepted as is.
func ValidateChain(chain Chain) error {
	for i := 1; i < len(chain); i++ {
		if err := ValidateBlock(chain[i], chain[i-1]); err != nil {
			return fmt.Errorf("chain index %d: %w", i, err)
		}
	}
	return nil
}

// IsChainValid reports whether ValidateChain accepts chain, logging the
// reason when it does not.
func IsChainValid(chain Chain) bool {
	if err := ValidateChain(chain); err != nil {
		log.Printf("invalid chain: %v", err)
		return false
	}
	return true
}
