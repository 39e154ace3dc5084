// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix ZONERPC_)
//  3. Config file (zonerpc.yaml in . or /etc/zonerpc/)
//  4. Compiled defaults
package config

// Viper keys for host-mode configuration (the reachable zone that
// runs the reverse-tunnel server and calls into whatever Calculator
// object the connecting peer exposes).
const (
	keyHostZone          = "host.zone"
	keyHostPeerZone      = "host.peer_zone"
	keyHostPipeAddress   = "host.pipe.address"
	keyHostTunnelAddress = "host.tunnel.address"
	keyHostTunnelKeySeed = "host.tunnel.key_seed"
	keyHostTunnelAuth    = "host.tunnel.auth"
	keyHostEncoding      = "host.encoding"
)

// Viper keys for peer-mode configuration (the zone that owns the
// Calculator object and dials out to a host, exposing its pipe bridge
// through the reverse tunnel).
const (
	keyPeerZone           = "peer.zone"
	keyPeerHostZone       = "peer.host_zone"
	keyPeerRemoteURL      = "peer.tunnel.remote_url"
	keyPeerTunnelAuth     = "peer.tunnel.auth"
	keyPeerTunnelEndpoint = "peer.tunnel.endpoint"
	keyPeerEncoding       = "peer.encoding"
)
