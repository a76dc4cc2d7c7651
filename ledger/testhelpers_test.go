package ledger

import (
	"fmt"
	"testing"
)

// mustMineChain returns a valid chain of n blocks, genesis included.
func mustMineChain(t *testing.T, n int, tag string) Chain {
	t.Helper()

	if n < 1 {
		t.Fatalf("chain needs at least the genesis block, got n=%d", n)
	}
	chain := Chain{Genesis()}
	for i := 1; i < n; i++ {
		tip, err := chain.Tip()
		if err != nil {
			t.Fatalf("tip: %v", err)
		}
		next, err := chain.TryAppend(Mine(tip, fmt.Sprintf("%s-%d", tag, i)))
		if err != nil {
			t.Fatalf("failed to append mined block %d: %v", i, err)
		}
		chain = next
	}
	return chain
}

// corrupt returns a copy of chain whose block 1 no longer links to genesis.
func corrupt(t *testing.T, chain Chain) Chain {
	t.Helper()

	if chain.Len() < 2 {
		t.Fatalf("need at least 2 blocks to corrupt, got %d", chain.Len())
	}
	bad := chain.Clone()
	bad[1].PreviousHash = "deadbeef"
	return bad
}
