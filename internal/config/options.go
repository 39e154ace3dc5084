package config

import "strings"

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a
// human-readable description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// HostOptions defines the configuration entries available in host
// mode. Each entry is registered as a viper default and a CLI flag.
var HostOptions = []Option{
	{Key: keyHostZone, Flag: toFlag(keyHostZone), Default: 1, Description: "This host's zone id"},
	{Key: keyHostPeerZone, Flag: toFlag(keyHostPeerZone), Default: 2, Description: "Expected zone id of the connecting peer"},
	{Key: keyHostPipeAddress, Flag: toFlag(keyHostPipeAddress), Default: "127.0.0.1:9300", Description: "Local address to dial once a peer's tunnel endpoint is forwarded (must match the peer's tunnel endpoint port)"},
	{Key: keyHostTunnelAddress, Flag: toFlag(keyHostTunnelAddress), Default: "127.0.0.1:8300", Description: "Listen address for the reverse tunnel server"},
	{Key: keyHostTunnelKeySeed, Flag: toFlag(keyHostTunnelKeySeed), Default: "change-me", Description: "Seed used to derive the tunnel server's host key"},
	{Key: keyHostTunnelAuth, Flag: toFlag(keyHostTunnelAuth), Default: "zonerpc:change-me", Description: "Shared user:password auth string (not read by the host command; the tunnel server does not check auth)"},
	{Key: keyHostEncoding, Flag: toFlag(keyHostEncoding), Default: "json", Description: "Envelope encoding: json, binary, or compressed-binary"},
}

// PeerOptions defines the configuration entries available in peer
// mode.
var PeerOptions = []Option{
	{Key: keyPeerZone, Flag: toFlag(keyPeerZone), Default: 2, Description: "This peer's zone id"},
	{Key: keyPeerHostZone, Flag: toFlag(keyPeerHostZone), Default: 1, Description: "The host zone id to route calls to"},
	{Key: keyPeerRemoteURL, Flag: toFlag(keyPeerRemoteURL), Default: "https://127.0.0.1:8300", Description: "Tunnel server URL to dial"},
	{Key: keyPeerTunnelAuth, Flag: toFlag(keyPeerTunnelAuth), Default: "zonerpc:change-me", Description: "Shared user:password auth string presented to the host"},
	{Key: keyPeerTunnelEndpoint, Flag: toFlag(keyPeerTunnelEndpoint), Default: "0.0.0.0:9300", Description: "Remote address the host exposes this peer's pipe bridge under"},
	{Key: keyPeerEncoding, Flag: toFlag(keyPeerEncoding), Default: "json", Description: "Envelope encoding: json, binary, or compressed-binary"},
}

// toFlag converts a viper key like "host.tunnel.key_seed" into a CLI
// flag like "tunnel-key-seed" by lower-casing, replacing dots and
// underscores with hyphens, and stripping the "host-" or "peer-"
// prefix.
func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	flag = strings.TrimPrefix(flag, "host-")
	flag = strings.TrimPrefix(flag, "peer-")
	return flag
}
