package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/ottermesh/zonerpc/internal/app"
	"github.com/ottermesh/zonerpc/internal/config"
	"github.com/ottermesh/zonerpc/internal/rpc"
	"github.com/ottermesh/zonerpc/internal/transport"
	"github.com/ottermesh/zonerpc/internal/transport/pipe"
	"github.com/ottermesh/zonerpc/internal/transport/tunnel"
)

// HostInjector constructs a Host via Wire.
type HostInjector func() (*Host, func(), error)

// NewHostCommand builds the "host" subcommand: a reachable zone that
// runs the reverse-tunnel server side and, once a peer zone connects,
// calls into the demonstration Calculator object the peer exposes.
// This mirrors the "control plane reaching into an unreachable
// enclave" deployment named in the core runtime's transport design.
func NewHostCommand(conf *config.Config, newHost HostInjector) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "host",
		Short:   "Run the reachable side of the tunnel and call into a connecting peer's objects",
		Example: "zonerpc host --zone=1 --tunnel-address=127.0.0.1:8300",
		RunE: func(cmd *cobra.Command, _ []string) error {
			host, cleanup, err := newHost()
			if err != nil {
				return fmt.Errorf("failed to initialize host: %w", err)
			}
			defer cleanup()

			encoding, err := rpc.ParseEncoding(conf.HostEncoding())
			if err != nil {
				return err
			}

			cfg := hostConfig{
				tunnelAddress: conf.HostTunnelAddress(),
				tunnelKeySeed: conf.HostTunnelKeySeed(),
				pipeAddress:   conf.HostPipeAddress(),
				peerZone:      rpc.DestinationZone(conf.HostPeerZone()),
				encoding:      encoding,
			}
			return host.Run(cmd.Context(), cfg)
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.HostOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}

type hostConfig struct {
	tunnelAddress string
	tunnelKeySeed string
	pipeAddress   string
	peerZone      rpc.DestinationZone
	encoding      rpc.Encoding
}

// Host is the runtime for the "host" subcommand.
type Host struct {
	zone *rpc.Service
}

// NewHost wires zone as the host runtime.
func NewHost(zone *rpc.Service) *Host {
	return &Host{zone: zone}
}

// Run starts the tunnel server, then repeatedly attempts to dial the
// address the peer's chisel Remote mapping exposes once it connects,
// and drives one Calculator.Add call through the resulting pipe
// Marshaller as a connectivity probe. It blocks until ctx is
// cancelled.
func (h *Host) Run(ctx context.Context, cfg hostConfig) error {
	log := slog.Default().With("component", "cmd.host", "zone", h.zone.Zone().String())

	tunnelSrv, err := tunnel.NewServer(
		tunnel.WithAddress(cfg.tunnelAddress),
		tunnel.WithKeySeed(cfg.tunnelKeySeed),
	)
	if err != nil {
		return fmt.Errorf("failed to create tunnel server: %w", err)
	}

	prober := &peerProber{
		zone:        h.zone,
		pipeAddress: cfg.pipeAddress,
		peerZone:    cfg.peerZone,
		encoding:    cfg.encoding,
		log:         log,
	}

	log.Info("host starting", "tunnel_address", cfg.tunnelAddress, "expects_peer_at", cfg.pipeAddress)
	return transport.Serve(ctx, tunnelSrv, prober)
}

// peerProber dials pipeAddress once it becomes reachable (the peer's
// tunnel Remote mapping having come up), registers it as the route to
// the peer zone, and performs one demonstration call.
type peerProber struct {
	zone        *rpc.Service
	pipeAddress string
	peerZone    rpc.DestinationZone
	encoding    rpc.Encoding
	log         *slog.Logger
	marshaller  *pipe.Marshaller
	objectProxy *rpc.ObjectProxy
	calc        app.Calculator
}

// peerCalculatorObject is the object id this demo expects the peer to
// have registered its Calculator stub under. AddLookupStub allocates
// ids starting at 1, and the peer registers exactly one object at
// startup, so this is a fixed convention rather than something
// discovered at runtime (an out-of-scope concern — object discovery
// is not part of the core protocol).
const peerCalculatorObject = rpc.Object(1)

func (p *peerProber) Start(ctx context.Context) error {
	dialer := net.Dialer{Timeout: 2 * time.Second}
	var conn net.Conn
	for {
		var err error
		conn, err = dialer.DialContext(ctx, "tcp", p.pipeAddress)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		p.log.Debug("peer not reachable yet, retrying", "address", p.pipeAddress, "error", err)
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil
		}
	}

	p.marshaller = pipe.NewMarshaller(conn, p.encoding)
	serviceProxy := p.zone.AddZone(p.peerZone, rpc.CallerZone(p.zone.Zone()), p.marshaller)
	p.marshaller.AddDestination(p.peerZone, p.zone)

	objectProxy, status := serviceProxy.GetOrCreateObjectProxy(peerCalculatorObject, rpc.AddRefIfNew)
	if status != rpc.OK {
		p.log.Error("failed to reach peer's Calculator object", "status", status.String())
		return nil
	}
	p.objectProxy = objectProxy

	calc, err := app.NewCalculatorClient(objectProxy)
	if err != nil {
		p.log.Error("QueryInterface(Calculator) failed", "error", err)
		return nil
	}
	p.calc = calc

	sum, err := calc.Add(2, 3)
	if err != nil {
		p.log.Error("Calculator.Add failed", "error", err)
		return nil
	}
	p.log.Info("peer connectivity probe succeeded", "calculator.add(2,3)", sum)

	<-ctx.Done()
	return nil
}

func (p *peerProber) Stop(_ context.Context) error {
	if p.calc != nil {
		if err := p.calc.Close(); err != nil {
			p.log.Warn("closing Calculator client failed", "error", err)
		}
	}
	if p.objectProxy != nil {
		if _, status := p.objectProxy.Release(); status != rpc.OK {
			p.log.Warn("releasing peer Calculator object proxy failed", "status", status.String())
		}
	}
	if p.marshaller != nil {
		p.marshaller.RemoveDestination(p.peerZone)
		return p.marshaller.Close()
	}
	return nil
}
