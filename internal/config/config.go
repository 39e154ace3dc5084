package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config wraps a viper instance and provides typed accessors for every
// configuration key. Create one via New().
type Config struct {
	v *viper.Viper
}

// New initialises a Config that resolves values from CLI flags (bound
// later via BindFlags), environment variables, the config file, and
// compiled defaults, in that priority order.
func New() (*Config, error) {
	v := viper.New()

	// Register compiled defaults for all known options.
	for _, o := range HostOptions {
		v.SetDefault(o.Key, o.Default)
	}
	for _, o := range PeerOptions {
		v.SetDefault(o.Key, o.Default)
	}

	// Attempt to load a config file from the current directory or
	// the system-wide location.
	v.SetConfigName("zonerpc")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/zonerpc/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables are prefixed with ZONERPC_ and use
	// underscores in place of dots (e.g. ZONERPC_HOST_ZONE).
	v.SetEnvPrefix("ZONERPC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

// BindFlags registers CLI flags for the given option slice and binds
// them to the underlying viper keys so that flag values override file
// and environment sources.
func (c *Config) BindFlags(fs *pflag.FlagSet, options []Option) error {
	for _, o := range options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Host-mode accessors
// ---------------------------------------------------------------------------

// HostZone returns this process's zone id when running as host.
func (c *Config) HostZone() int { return c.v.GetInt(keyHostZone) }

// HostPeerZone returns the expected zone id of the connecting peer.
func (c *Config) HostPeerZone() int { return c.v.GetInt(keyHostPeerZone) }

// HostPipeAddress returns the local address to dial once a connected
// peer's tunnel endpoint mapping comes up, to reach that peer's pipe
// bridge.
func (c *Config) HostPipeAddress() string { return c.v.GetString(keyHostPipeAddress) }

// HostTunnelAddress returns the listen address for the reverse tunnel
// server.
func (c *Config) HostTunnelAddress() string { return c.v.GetString(keyHostTunnelAddress) }

// HostTunnelKeySeed returns the seed used to derive the tunnel
// server's host key.
func (c *Config) HostTunnelKeySeed() string { return c.v.GetString(keyHostTunnelKeySeed) }

// HostTunnelAuth returns the configured shared auth string. The host
// command does not read it, and the host's tunnel server does not check
// the auth string a peer presents.
func (c *Config) HostTunnelAuth() string { return c.v.GetString(keyHostTunnelAuth) }

// HostEncoding returns the configured envelope encoding name.
func (c *Config) HostEncoding() string { return c.v.GetString(keyHostEncoding) }

// ---------------------------------------------------------------------------
// Peer-mode accessors
// ---------------------------------------------------------------------------

// PeerZone returns this process's zone id when running as peer.
func (c *Config) PeerZone() int { return c.v.GetInt(keyPeerZone) }

// PeerHostZone returns the host zone id to route calls to.
func (c *Config) PeerHostZone() int { return c.v.GetInt(keyPeerHostZone) }

// PeerRemoteURL returns the tunnel server URL to dial.
func (c *Config) PeerRemoteURL() string { return c.v.GetString(keyPeerRemoteURL) }

// PeerTunnelAuth returns the shared auth string presented to the host.
func (c *Config) PeerTunnelAuth() string { return c.v.GetString(keyPeerTunnelAuth) }

// PeerTunnelEndpoint returns the remote address the host exposes this
// peer's pipe bridge under.
func (c *Config) PeerTunnelEndpoint() string { return c.v.GetString(keyPeerTunnelEndpoint) }

// PeerEncoding returns the configured envelope encoding name.
func (c *Config) PeerEncoding() string { return c.v.GetString(keyPeerEncoding) }
