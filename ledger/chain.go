package ledger

import (
	"errors"
	"fmt"
)

// ErrChainNotInitialized is returned by operations that need a tip before the
// genesis block has been installed.
var ErrChainNotInitialized = errors.New("chain not initialized")

// Chain is an ordered sequence of blocks. Index 0 is the genesis block.
type Chain []Block

// Len returns the number of blocks in the chain.
func (c Chain) Len() int { return len(c) }

// Tip returns the last block of the chain.
func (c Chain) Tip() (Block, error) {
	if len(c) == 0 {
		return Block{}, ErrChainNotInitialized
	}
	return c[len(c)-1], nil
}

// Clone returns a copy that shares no backing array with c.
func (c Chain) Clone() Chain {
	if c == nil {
		return nil
	}
	out := make(Chain, len(c))
	copy(out, c)
	return out
}

// TryAppend validates b against the current tip and returns the extended
// chain. The receiver is never modified in place through a shared backing
// array.
func (c Chain) TryAppend(b Block) (Chain, error) {
	tip, err := c.Tip()
	if err != nil {
		return c, err
	}
	if err := ValidateBlock(b, tip); err != nil {
		return c, fmt.Errorf("rejecting %s: %w", b, err)
	}
	out := make(Chain, len(c), len(c)+1)
	copy(out, c)
	return append(out, b), nil
}
