package ledger

import (
	"errors"
	"testing"
)

func TestChooseChain(t *testing.T) {
	short := mustMineChain(t, 2, "short")
	long := mustMineChain(t, 4, "long")
	same := mustMineChain(t, 2, "same")

	tests := []struct {
		name   string
		local  Chain
		remote Chain
		want   Chain
	}{
		{"remote longer", short, long, long},
		{"local longer", long, short, long},
		{"tie keeps local", short, same, short},
		{"only remote valid", corrupt(t, long), short, short},
		{"only local valid", short, corrupt(t, long), short},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChooseChain(tt.local, tt.remote)
			if err != nil {
				t.Fatalf("ChooseChain: %v", err)
			}
			if got.Len() != tt.want.Len() {
				t.Fatalf("chose chain of length %d, want %d", got.Len(), tt.want.Len())
			}
			gotTip, _ := got.Tip()
			wantTip, _ := tt.want.Tip()
			if gotTip.Hash != wantTip.Hash {
				t.Fatalf("chose tip %s, want %s", gotTip.ShortHash(), wantTip.ShortHash())
			}
		})
	}
}

func TestChooseChain_BothInvalid(t *testing.T) {
	a := corrupt(t, mustMineChain(t, 2, "a"))
	b := corrupt(t, mustMineChain(t, 3, "b"))

	got, err := ChooseChain(a, b)
	if !errors.Is(err, ErrBothChainsInvalid) {
		t.Fatalf("expected ErrBothChainsInvalid, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no chain, got %d blocks", got.Len())
	}
	if !IsFatal(err) {
		t.Fatal("ErrBothChainsInvalid not reported as fatal")
	}
}
