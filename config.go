package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"floodchain/p2p"
	"floodchain/protocol/params"

	"github.com/multiformats/go-multiaddr"
)

// Config holds everything needed to start a node.
type Config struct {
	ListenAddrs    []string
	BootstrapPeers []string
	EnableMDNS     bool
	MaxPeers       int
	KeyPath        string // empty = FLOODCHAIN_P2P_KEY or ephemeral
	StartupDelay   time.Duration
	MineBudget     uint64 // 0 = unbounded
	Quiet          bool   // discard log output
	DaemonMode     bool   // no interactive shell
}

// DefaultConfig returns the defaults used when no flags are given.
func DefaultConfig() Config {
	return Config{
		ListenAddrs:  []string{"/ip4/0.0.0.0/tcp/0"},
		EnableMDNS:   true,
		MaxPeers:     64,
		StartupDelay: params.StartupDelay,
	}
}

// Validate checks addresses and limits before any network resource is opened.
func (c Config) Validate() error {
	if len(c.ListenAddrs) == 0 {
		return errors.New("at least one listen address is required")
	}
	for _, addr := range c.ListenAddrs {
		if _, err := multiaddr.NewMultiaddr(addr); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", addr, err)
		}
	}
	if _, err := p2p.ParseBootstrapAddrs(c.BootstrapPeers); err != nil {
		return err
	}
	if c.MaxPeers <= 0 || c.MaxPeers > 4096 {
		return fmt.Errorf("max peers out of range: %d", c.MaxPeers)
	}
	if c.StartupDelay < 0 {
		return fmt.Errorf("startup delay must not be negative: %s", c.StartupDelay)
	}
	return nil
}

// NodeConfig derives the transport configuration.
func (c Config) NodeConfig() p2p.NodeConfig {
	nc := p2p.DefaultNodeConfig()
	nc.ListenAddrs = c.ListenAddrs
	nc.BootstrapPeers = c.BootstrapPeers
	nc.EnableMDNS = c.EnableMDNS
	nc.MaxPeers = c.MaxPeers
	nc.Identity = p2p.IdentityConfig{KeyPath: c.KeyPath}
	return nc
}

// DaemonConfig derives the event loop configuration.
func (c Config) DaemonConfig() DaemonConfig {
	return DaemonConfig{
		StartupDelay: c.StartupDelay,
		MineBudget:   c.MineBudget,
	}
}

func splitCSV(s string) []string {
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t := strings.TrimSpace(r)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
