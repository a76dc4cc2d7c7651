package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"floodchain/protocol/params"
)

var (
	// ErrMiningInProgress is returned by Miner.Start while a search is running.
	ErrMiningInProgress = errors.New("mining already in progress")

	// ErrMiningBudgetExhausted is returned when MaxAttempts nonces were tried
	// without finding a block.
	ErrMiningBudgetExhausted = errors.New("mining attempt budget exhausted")
)

// MineOptions bounds a proof-of-work search.
type MineOptions struct {
	// MaxAttempts is the number of nonces to try before giving up (0 = unbounded)
	MaxAttempts uint64
}

// Mine searches for the block following parent that carries payload. The
// search is unbounded and runs to completion.
func Mine(parent Block, payload string) Block {
	b, _, _ := mine(context.Background(), parent, payload, MineOptions{})
	return b
}

// MineContext is Mine with cancellation and an optional attempt budget.
func MineContext(ctx context.Context, parent Block, payload string, opts MineOptions) (Block, error) {
	b, _, err := mine(ctx, parent, payload, opts)
	return b, err
}

// mine returns the mined block and the number of digests computed.
func mine(ctx context.Context, parent Block, payload string, opts MineOptions) (Block, uint64, error) {
	candidate := Block{
		ID:           parent.ID + 1,
		PreviousHash: parent.Hash,
		Timestamp:    time.Now().Unix(),
		Data:         payload,
		Nonce:        0,
	}

	var attempts uint64
	for {
		if opts.MaxAttempts > 0 && attempts >= opts.MaxAttempts {
			return Block{}, attempts, ErrMiningBudgetExhausted
		}
		if attempts%params.MineCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return Block{}, attempts, ctx.Err()
			default:
			}
		}

		digest := Digest(candidate)
		attempts++
		if MeetsDifficulty(digest[:]) {
			candidate.Hash = hex.EncodeToString(digest[:])
			return candidate, attempts, nil
		}
		candidate.Nonce++
	}
}

// MineResult is delivered by Miner when a search ends.
type MineResult struct {
	Block    Block
	Err      error
	Attempts uint64
	Elapsed  time.Duration
}

// MinerConfig holds mining configuration
type MinerConfig struct {
	// MaxAttempts bounds each search (0 = unbounded)
	MaxAttempts uint64
}

// MinerStats holds mining statistics
type MinerStats struct {
	Attempts    uint64
	BlocksFound uint64
	StartTime   time.Time
}

// Miner runs proof-of-work searches off the caller's goroutine, one at a
// time. Results are handed back on Results and never applied to a chain by
// the miner itself.
type Miner struct {
	config  MinerConfig
	results chan MineResult
	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc

	attempts  atomic.Uint64
	found     atomic.Uint64
	startTime time.Time
}

// NewMiner creates a new miner
func NewMiner(config MinerConfig) *Miner {
	return &Miner{
		config:    config,
		results:   make(chan MineResult, 1),
		startTime: time.Now(),
	}
}

// Results returns the channel mined blocks and search errors arrive on.
func (m *Miner) Results() <-chan MineResult {
	return m.results
}

// Start begins mining the block after parent in a background goroutine.
func (m *Miner) Start(ctx context.Context, parent Block, payload string) error {
	if m.running.Swap(true) {
		return ErrMiningInProgress
	}

	mineCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		defer cancel()

		started := time.Now()
		block, attempts, err := mine(mineCtx, parent, payload, MineOptions{MaxAttempts: m.config.MaxAttempts})
		m.attempts.Add(attempts)
		if err == nil {
			m.found.Add(1)
		}
		res := MineResult{
			Block:    block,
			Err:      err,
			Attempts: attempts,
			Elapsed:  time.Since(started),
		}

		// Clear before delivery so the receiver can start the next search.
		m.running.Store(false)

		select {
		case m.results <- res:
		case <-ctx.Done():
		}
	}()

	return nil
}

// Stop cancels the running search, if any.
func (m *Miner) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// IsRunning returns true if a search is in progress
func (m *Miner) IsRunning() bool {
	return m.running.Load()
}

// Stats returns current mining statistics
func (m *Miner) Stats() MinerStats {
	return MinerStats{
		Attempts:    m.attempts.Load(),
		BlocksFound: m.found.Load(),
		StartTime:   m.startTime,
	}
}
