// Package main is the entry point for the zonerpc binary. It supports
// two subcommands:
//
//   - host: runs the reachable side of the reverse tunnel and calls
//     into a connecting peer's objects
//   - peer: owns the demonstration Calculator object, dials a host,
//     and exposes its pipe bridge through the tunnel
//
// Dependencies are assembled via Google Wire; see wire.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ottermesh/zonerpc/internal/cmd"
	"github.com/ottermesh/zonerpc/internal/config"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires all dependencies and executes the root Cobra command.
func run(ctx context.Context) error {
	rootCmd, cleanup, err := wireCmd()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	return rootCmd.ExecuteContext(ctx)
}

// newCmd is a Wire provider that constructs the root Cobra command and
// registers the host and peer subcommands.
func newCmd(conf *config.Config) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:           "zonerpc",
		Short:         "zonerpc: an inter-zone RPC runtime with distributed reference counting.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	hostCmd, err := cmd.NewHostCommand(conf, func() (*cmd.Host, func(), error) {
		return wireHost(conf)
	})
	if err != nil {
		return nil, err
	}

	peerCmd, err := cmd.NewPeerCommand(conf, func() (*cmd.Peer, func(), error) {
		return wirePeer(conf)
	})
	if err != nil {
		return nil, err
	}

	c.AddCommand(hostCmd, peerCmd)

	return c, nil
}
