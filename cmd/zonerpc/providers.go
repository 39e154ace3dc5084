package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ottermesh/zonerpc/internal/config"
	"github.com/ottermesh/zonerpc/internal/rpc"
	"github.com/ottermesh/zonerpc/internal/telemetry"
)

// provideHostZone reads the host zone id out of conf.
func provideHostZone(conf *config.Config) rpc.Zone {
	return rpc.Zone(conf.HostZone())
}

// providePeerZone reads the peer zone id out of conf.
func providePeerZone(conf *config.Config) rpc.Zone {
	return rpc.Zone(conf.PeerZone())
}

// provideTelemetry registers the runtime's Prometheus collectors
// against the default registry. Each process runs exactly one of the
// host and peer subcommands, so there is never more than one
// registration per process.
func provideTelemetry() *telemetry.Prometheus {
	return telemetry.NewPrometheus(prometheus.DefaultRegisterer)
}

// provideService creates a Service for zone and returns a cleanup
// function that closes it, logging any stubs or service proxies
// still registered.
func provideService(zone rpc.Zone, tel telemetry.Telemetry) (*rpc.Service, func()) {
	svc := rpc.NewService(zone, tel)
	return svc, svc.Close
}
