package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	chclient "github.com/jpillora/chisel/client"
)

// ErrLocalPortRequired is returned by NewClient when no local port to
// expose through the tunnel was configured.
var ErrLocalPortRequired = errors.New("tunnel: local port is required")

// ClientOption configures a Client.
type ClientOption func(*Client)

// Client is the peer-zone side of a reverse tunnel: it dials out to a
// host zone's Server and keeps a chisel session open, automatically
// reconnecting with exponential backoff on failure. The client
// presents a single shared auth string, since zone-to-zone
// authentication is out of this runtime's scope (see the core
// package's Non-goals). This package's Server is configured without an
// auth check, so it admits a client whatever string it presents.
type Client struct {
	inner            *chclient.Client
	remoteURL        string
	auth             string
	endpoint         string
	localPort        int
	keepAlive        time.Duration
	maxRetryCount    int
	maxRetryInterval time.Duration
	baseRetryDelay   time.Duration
	maxRetryDelay    time.Duration
	log              *slog.Logger
}

// WithRemoteURL configures the chisel tunnel server URL to dial.
func WithRemoteURL(remoteURL string) ClientOption {
	return func(c *Client) { c.remoteURL = remoteURL }
}

// WithAuth configures the shared "user:password" auth string this
// client presents to the chisel server it dials.
func WithAuth(auth string) ClientOption {
	return func(c *Client) { c.auth = auth }
}

// WithEndpoint configures the remote address the host zone will
// expose this peer's local port under, e.g. "0.0.0.0:9300".
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithLocalPort configures the local port to expose through the tunnel.
func WithLocalPort(localPort int) ClientOption {
	return func(c *Client) { c.localPort = localPort }
}

// WithKeepAlive configures the keep-alive interval for the tunnel.
func WithKeepAlive(keepAlive time.Duration) ClientOption {
	return func(c *Client) { c.keepAlive = keepAlive }
}

// WithMaxRetryCount configures chisel's internal maximum retry count.
func WithMaxRetryCount(maxRetryCount int) ClientOption {
	return func(c *Client) { c.maxRetryCount = maxRetryCount }
}

// WithMaxRetryInterval configures chisel's internal maximum retry interval.
func WithMaxRetryInterval(maxRetryInterval time.Duration) ClientOption {
	return func(c *Client) { c.maxRetryInterval = maxRetryInterval }
}

// WithBaseRetryDelay configures the initial delay for the outer reconnect backoff.
func WithBaseRetryDelay(baseRetryDelay time.Duration) ClientOption {
	return func(c *Client) { c.baseRetryDelay = baseRetryDelay }
}

// WithMaxRetryDelay configures the maximum delay for the outer reconnect backoff.
func WithMaxRetryDelay(maxRetryDelay time.Duration) ClientOption {
	return func(c *Client) { c.maxRetryDelay = maxRetryDelay }
}

// WithLogger configures a structured logger. Defaults to
// slog.Default with a "component" attribute.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a tunnel client. It validates required fields but
// does not perform any I/O.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		remoteURL:        "https://127.0.0.1:8300",
		keepAlive:        30 * time.Second,
		maxRetryCount:    3,
		maxRetryInterval: 10 * time.Second,
		baseRetryDelay:   1 * time.Second,
		maxRetryDelay:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.localPort == 0 {
		return nil, ErrLocalPortRequired
	}
	if c.log == nil {
		c.log = slog.Default().With("component", "tunnel-client")
	}

	return c, nil
}

// Start runs the tunnel client loop. It blocks until ctx is
// cancelled, automatically reconnecting on failure with exponential
// backoff.
func (c *Client) Start(ctx context.Context) error {
	bo := newBackoff(c.baseRetryDelay, c.maxRetryDelay)

	for {
		if ctx.Err() != nil {
			return nil
		}

		inner, err := c.dial()
		if err != nil {
			c.log.Warn("dial failed, retrying", "error", err, "retry_in", bo.current)
			if !sleepCtx(ctx, bo.Next()) {
				return nil
			}
			continue
		}
		bo.Reset()
		c.inner = inner

		err = c.runSession(ctx, inner)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil || isAuthErr(err) {
			if err != nil {
				c.log.Warn("authentication failed, retrying", "error", err)
			} else {
				c.log.Warn("session ended, reconnecting")
			}
			bo.Reset()
			continue
		}

		c.log.Warn("connection lost, retrying", "error", err, "retry_in", bo.current)
		if !sleepCtx(ctx, bo.Next()) {
			return nil
		}
	}
}

// Stop gracefully shuts down the tunnel client.
func (c *Client) Stop(_ context.Context) error {
	if c.inner == nil {
		return nil
	}
	c.log.Info("shutting down")
	return c.inner.Close()
}

func (c *Client) dial() (*chclient.Client, error) {
	return chclient.NewClient(&chclient.Config{
		Server:           c.remoteURL,
		Auth:             c.auth,
		Remotes:          []string{fmt.Sprintf("R:%s:127.0.0.1:%d", c.endpoint, c.localPort)},
		KeepAlive:        c.keepAlive,
		MaxRetryCount:    c.maxRetryCount,
		MaxRetryInterval: c.maxRetryInterval,
	})
}

// runSession starts the inner chisel client and waits for it to
// finish, always closing the inner client before returning.
func (c *Client) runSession(ctx context.Context, inner *chclient.Client) error {
	c.log.Info("connecting", "server", c.remoteURL)

	if err := inner.Start(ctx); err != nil {
		_ = inner.Close()
		return fmt.Errorf("start: %w", err)
	}

	err := inner.Wait()
	_ = inner.Close()
	return err
}
