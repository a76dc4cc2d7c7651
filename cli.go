package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/term"
)

// CommandKind identifies a parsed command line.
type CommandKind int

const (
	CmdListPeers CommandKind = iota + 1
	CmdListChain
	CmdCreateBlock
	CmdHelp
	CmdQuit
)

// Command is one parsed line of user input.
type Command struct {
	Kind    CommandKind
	Payload string // block data for CmdCreateBlock
}

const helpText = `
Commands:
  ls p              List known peers
  ls c              Print the local chain
  create b <text>   Mine a block carrying <text> and broadcast it
  help              Show this help
  quit              Exit
`

// parseCommand maps a line to a command. "ls p" must match exactly while
// "ls c" and "create b" match as prefixes.
func parseCommand(line string) (Command, error) {
	switch {
	case line == "ls p":
		return Command{Kind: CmdListPeers}, nil
	case strings.HasPrefix(line, "ls c"):
		return Command{Kind: CmdListChain}, nil
	case strings.HasPrefix(line, "create b"):
		payload := strings.TrimSpace(strings.TrimPrefix(line, "create b"))
		return Command{Kind: CmdCreateBlock, Payload: payload}, nil
	case line == "help" || line == "?":
		return Command{Kind: CmdHelp}, nil
	case line == "quit" || line == "exit":
		return Command{Kind: CmdQuit}, nil
	default:
		return Command{}, fmt.Errorf("unknown command: %s (type 'help' for commands)", line)
	}
}

// CLI reads command lines and submits them to the daemon.
type CLI struct {
	daemon      *Daemon
	reader      *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewCLI creates a CLI reading from in. A prompt is printed only when in is
// a terminal.
func NewCLI(daemon *Daemon, in io.Reader, out io.Writer) *CLI {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &CLI{
		daemon:      daemon,
		reader:      bufio.NewReader(in),
		out:         out,
		interactive: interactive,
	}
}

// Run reads lines until EOF or ctx is done. On EOF the node keeps running
// headless.
func (c *CLI) Run(ctx context.Context) {
	if c.interactive {
		fmt.Fprint(c.out, "Type 'help' for available commands\n")
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if c.interactive {
			fmt.Fprint(c.out, "> ")
		}

		line, err := c.reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}

		line = strings.TrimSpace(sanitizeInput(line))
		if line != "" {
			cmd, perr := parseCommand(line)
			if perr != nil {
				fmt.Fprintf(c.out, "Error: %v\n", perr)
			} else if serr := c.daemon.Submit(ctx, cmd); serr != nil {
				return
			}
		}

		if err != nil {
			return
		}
	}
}

// sanitizeInput removes control characters from user input (fixes tmux copy-paste issues)
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' {
			return -1 // drop the rune
		}
		return r
	}, s)
}
