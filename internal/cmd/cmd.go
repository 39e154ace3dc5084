// Package cmd builds the cobra subcommands for the zonerpc binary:
// host (the reachable side, runs the reverse-tunnel server and calls
// into a connecting peer's objects) and peer (owns the demonstration
// Calculator object, dials out to a host, and exposes its pipe bridge
// through the tunnel). Dependency assembly for each subcommand's
// runtime happens via Google Wire; see cmd/zonerpc.
package cmd

import (
	"context"
	"log/slog"
	"net"
)

// acceptLoop runs pipe.Listener.Accept (via accept) in a loop, handing
// each connection to serve, until accept returns an error (the
// listener was closed). The peer command's pipe dispatcher uses it to
// serve its pipe.Listener.
func acceptLoop(ctx context.Context, log *slog.Logger, accept func() (net.Conn, error), serve func(net.Conn) error) {
	for {
		conn, err := accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("accept failed", "error", err)
			return
		}
		go func() {
			if err := serve(conn); err != nil {
				log.Debug("connection closed", "error", err)
			}
		}()
	}
}
