package litclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/litwallet/litclient.go/pkg/connection"
	"github.com/litwallet/litclient.go/pkg/connection/gorillaws"
	"github.com/litwallet/litclient.go/pkg/constants"
	"github.com/litwallet/litclient.go/pkg/logger"
)

// Client is a connection to one lit daemon.
type Client struct {
	con connection.Connection
}

// Option adjusts the connection config before the client is built.
type Option func(cfg *connection.Config)

// WithLogger sets the logger the connection reports to.
func WithLogger(l logger.Logger) Option {
	return func(cfg *connection.Config) {
		cfg.Logger = l
	}
}

// WithTimeout bounds how long Send waits for a reply. Zero leaves it to the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(cfg *connection.Config) {
		cfg.Timeout = d
	}
}

// WithRateLimit caps outbound requests to limit per second.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(cfg *connection.Config) {
		cfg.RateLimit = limit
		cfg.Burst = burst
	}
}

// WithPath serves the socket from another path than /ws, for daemons
// behind a proxy.
func WithPath(path string) Option {
	return func(cfg *connection.Config) {
		cfg.URL.Path = path
	}
}

// WithTLS dials wss:// instead of ws://.
func WithTLS() Option {
	return func(cfg *connection.Config) {
		cfg.URL.Scheme = constants.SecureWebsocketScheme
	}
}

// WithCompression offers permessage-deflate to the daemon, which is the
// default. Pass false for daemons or proxies that mishandle it.
func WithCompression(enabled bool) Option {
	return func(cfg *connection.Config) {
		cfg.Compression = enabled
	}
}

// New creates a client for the daemon at host:port and starts connecting
// in the background. Calls made before the socket opens are queued. If the
// dial fails, they fail with a *ConnectionError. ctx bounds the dial only.
func New(ctx context.Context, host string, port uint16, opts ...Option) (*Client, error) {
	con, err := newConnection(connection.NewConfig(host, port), opts)
	if err != nil {
		return nil, err
	}
	con.Start(ctx)
	return FromConnection(con), nil
}

// Dial is like New but waits for the socket to open and returns the dial
// error.
func Dial(ctx context.Context, host string, port uint16, opts ...Option) (*Client, error) {
	con, err := newConnection(connection.NewConfig(host, port), opts)
	if err != nil {
		return nil, err
	}
	if err := con.Connect(ctx); err != nil {
		return nil, err
	}
	return FromConnection(con), nil
}

// FromEndpointURLString creates a client for an explicit ws:// or wss://
// endpoint and starts connecting in the background.
func FromEndpointURLString(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	u, err := url.ParseRequestURI(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	con, err := newConnection(connection.NewConfigFromURL(u), opts)
	if err != nil {
		return nil, err
	}
	con.Start(ctx)
	return FromConnection(con), nil
}

// FromConnection wraps an existing connection. The caller is responsible
// for connecting it.
func FromConnection(con connection.Connection) *Client {
	return &Client{con: con}
}

func newConnection(cfg *connection.Config, opts []Option) (*gorillaws.Connection, error) {
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return gorillaws.New(cfg), nil
}

// Go issues a call and returns without waiting.
func (c *Client) Go(method string, params ...any) *connection.Call {
	return c.con.Go(method, params...)
}

// Send issues a call and waits for its raw result.
func (c *Client) Send(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return c.con.Send(ctx, method, params...)
}

// OnNotification installs handler for frames the daemon pushes with a null
// id, replacing any earlier one. handler runs on the read goroutine.
func (c *Client) OnNotification(handler connection.Handler) {
	c.con.Register(connection.NotificationKey, handler)
}

// Register installs handler under key. See connection.Toolkit.Dispatch for
// when it runs.
func (c *Client) Register(key connection.Key, handler connection.Handler) {
	c.con.Register(key, handler)
}

// Unregister removes the handler installed under key. Later frames for key
// are logged and dropped.
func (c *Client) Unregister(key connection.Key) {
	c.con.Unregister(key)
}

// Close closes the socket. Calls still waiting fail with a
// *ConnectionError.
func (c *Client) Close(ctx context.Context) error {
	return c.con.Close(ctx)
}

// Send calls method and decodes its result into a TResult. A null result
// yields a nil pointer and no error. Numbers landing in an any stay
// json.Number, so amounts above 2^53 keep every digit.
func Send[TResult any](ctx context.Context, c *Client, method string, params ...any) (*TResult, error) {
	raw, err := c.con.Send(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var res TResult
	if err := c.con.GetUnmarshaler().NewDecoder(bytes.NewReader(raw)).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding result of %s: %w", method, err)
	}
	return &res, nil
}
