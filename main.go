package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"floodchain/p2p"
	"floodchain/protocol/params"
)

// errShowVersion is returned by parseFlags when -version was given.
var errShowVersion = errors.New("version requested")

func main() {
	cfg, err := parseFlags(os.Args[1:])
	switch {
	case errors.Is(err, errShowVersion):
		fmt.Println(params.UserAgent)
		return
	case errors.Is(err, flag.ErrHelp):
		return
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (Config, error) {
	cfg := DefaultConfig()

	fs := flag.NewFlagSet("floodchain", flag.ContinueOnError)
	listen := fs.String("listen", cfg.ListenAddrs[0], "Comma-separated P2P listen multiaddrs")
	noMDNS := fs.Bool("no-mdns", false, "Disable LAN peer discovery")
	maxPeers := fs.Int("max-peers", cfg.MaxPeers, "Maximum connected peers")
	keyPath := fs.String("key", "", "Path to persistent identity key (default: $"+p2p.IdentityKeyEnv+" or ephemeral)")
	startupDelay := fs.Duration("startup-delay", cfg.StartupDelay, "Delay before installing genesis and requesting a peer's chain")
	mineBudget := fs.Uint64("mine-budget", 0, "Maximum nonces per mining attempt (0 = unbounded)")
	quiet := fs.Bool("quiet", false, "Discard log output")
	daemonMode := fs.Bool("daemon", false, "Run headless (no interactive shell)")
	version := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if *version {
		return Config{}, errShowVersion
	}

	cfg.ListenAddrs = splitCSV(*listen)
	cfg.BootstrapPeers = fs.Args()
	cfg.EnableMDNS = !*noMDNS
	cfg.MaxPeers = *maxPeers
	cfg.KeyPath = *keyPath
	cfg.StartupDelay = *startupDelay
	cfg.MineBudget = *mineBudget
	cfg.Quiet = *quiet
	cfg.DaemonMode = *daemonMode

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func run(cfg Config) error {
	if cfg.Quiet {
		log.SetOutput(io.Discard)
	}

	node, err := p2p.NewNode(cfg.NodeConfig())
	if err != nil {
		return fmt.Errorf("failed to create P2P node: %w", err)
	}
	if err := node.Start(); err != nil {
		if stopErr := node.Stop(); stopErr != nil {
			log.Printf("failed to stop P2P node: %v", stopErr)
		}
		return fmt.Errorf("failed to start P2P node: %w", err)
	}
	for _, addr := range node.FullMultiaddrs() {
		log.Printf("Listening: %s", addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	daemon := NewDaemon(cfg.DaemonConfig(), node, os.Stdout)

	if !cfg.DaemonMode {
		cli := NewCLI(daemon, os.Stdin, os.Stdout)
		go cli.Run(ctx)
	}

	runErr := daemon.Run(ctx)

	if err := node.Stop(); err != nil {
		log.Printf("failed to stop P2P node: %v", err)
	}
	return runErr
}
