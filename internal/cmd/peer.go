package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/spf13/cobra"

	"github.com/ottermesh/zonerpc/internal/app"
	"github.com/ottermesh/zonerpc/internal/config"
	"github.com/ottermesh/zonerpc/internal/rpc"
	"github.com/ottermesh/zonerpc/internal/transport"
	"github.com/ottermesh/zonerpc/internal/transport/pipe"
	"github.com/ottermesh/zonerpc/internal/transport/tunnel"
)

// PeerInjector constructs a Peer via Wire.
type PeerInjector func() (*Peer, func(), error)

// NewPeerCommand builds the "peer" subcommand: a zone that owns the
// demonstration Calculator object, dials out to a host zone, and
// exposes its pipe bridge through the reverse tunnel so the host can
// call in.
func NewPeerCommand(conf *config.Config, newPeer PeerInjector) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "peer",
		Short:   "Dial a host over the reverse tunnel and expose the local Calculator object to it",
		Example: "zonerpc peer --zone=2 --tunnel-remote-url=https://127.0.0.1:8300",
		RunE: func(cmd *cobra.Command, _ []string) error {
			peer, cleanup, err := newPeer()
			if err != nil {
				return fmt.Errorf("failed to initialize peer: %w", err)
			}
			defer cleanup()

			encoding, err := rpc.ParseEncoding(conf.PeerEncoding())
			if err != nil {
				return err
			}

			cfg := peerConfig{
				remoteURL:      conf.PeerRemoteURL(),
				tunnelAuth:     conf.PeerTunnelAuth(),
				tunnelEndpoint: conf.PeerTunnelEndpoint(),
				encoding:       encoding,
			}
			return peer.Run(cmd.Context(), cfg)
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.PeerOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}

type peerConfig struct {
	remoteURL      string
	tunnelAuth     string
	tunnelEndpoint string
	encoding       rpc.Encoding
}

// Peer is the runtime for the "peer" subcommand.
type Peer struct {
	zone *rpc.Service
}

// NewPeer wires zone as the peer runtime, registering the
// demonstration Calculator object.
func NewPeer(zone *rpc.Service) *Peer {
	app.NewCalculatorStub(zone)
	return &Peer{zone: zone}
}

// Run starts a pipe listener, bridges it to a local TCP port, and
// dials cfg.remoteURL with a tunnel client asking the host to forward
// cfg.tunnelEndpoint to that port. It blocks until ctx is cancelled.
func (p *Peer) Run(ctx context.Context, cfg peerConfig) error {
	log := slog.Default().With("component", "cmd.peer", "zone", p.zone.Zone().String())

	pipeListener := pipe.NewListener()

	bridge, err := tunnel.NewBridge(pipeListener)
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	tunnelClient, err := tunnel.NewClient(
		tunnel.WithRemoteURL(cfg.remoteURL),
		tunnel.WithAuth(cfg.tunnelAuth),
		tunnel.WithEndpoint(cfg.tunnelEndpoint),
		tunnel.WithLocalPort(bridge.Port()),
	)
	if err != nil {
		return fmt.Errorf("failed to create tunnel client: %w", err)
	}

	dispatcher := &pipeDispatcher{
		listener: pipeListener,
		zone:     p.zone,
		encoding: cfg.encoding,
		log:      log,
	}

	log.Info("peer starting", "remote_url", cfg.remoteURL, "exposes_bridge_at", cfg.tunnelEndpoint)
	return transport.Serve(ctx, bridge, tunnelClient, dispatcher)
}

// pipeDispatcher runs acceptLoop over a pipe.Listener, dispatching
// each accepted connection to pipe.Serve against zone. It implements
// transport.Listener so it can be orchestrated alongside the bridge
// and tunnel client.
type pipeDispatcher struct {
	listener *pipe.Listener
	zone     *rpc.Service
	encoding rpc.Encoding
	log      *slog.Logger
}

func (d *pipeDispatcher) Start(ctx context.Context) error {
	acceptLoop(ctx, d.log, d.listener.Accept, func(conn net.Conn) error {
		return pipe.Serve(conn, d.zone, d.encoding)
	})
	return nil
}

func (d *pipeDispatcher) Stop(_ context.Context) error {
	return d.listener.Close()
}
