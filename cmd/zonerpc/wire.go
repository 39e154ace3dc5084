//go:build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/spf13/cobra"

	"github.com/ottermesh/zonerpc/internal/cmd"
	"github.com/ottermesh/zonerpc/internal/config"
	"github.com/ottermesh/zonerpc/internal/telemetry"
)

func wireCmd() (*cobra.Command, func(), error) {
	panic(wire.Build(
		newCmd,
		config.ProviderSet,
	))
}

func wireHost(conf *config.Config) (*cmd.Host, func(), error) {
	panic(wire.Build(
		cmd.NewHost,
		provideService,
		provideHostZone,
		provideTelemetry,
		wire.Bind(new(telemetry.Telemetry), new(*telemetry.Prometheus)),
	))
}

func wirePeer(conf *config.Config) (*cmd.Peer, func(), error) {
	panic(wire.Build(
		cmd.NewPeer,
		provideService,
		providePeerZone,
		provideTelemetry,
		wire.Bind(new(telemetry.Telemetry), new(*telemetry.Prometheus)),
	))
}
