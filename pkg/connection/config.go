package connection

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/litwallet/litclient.go/internal/codec"
	"github.com/litwallet/litclient.go/pkg/constants"
	"github.com/litwallet/litclient.go/pkg/logger"
)

// Config holds what a connection needs before it dials.
type Config struct {
	URL         url.URL
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	Logger      logger.Logger

	// Timeout bounds how long Send waits for a reply. Zero means wait until
	// the caller's context is done.
	Timeout time.Duration

	// RateLimit caps outbound frames per second. Zero means unlimited.
	RateLimit rate.Limit
	// Burst is the limiter's bucket size; it defaults to 1 when RateLimit is set.
	Burst int

	// Compression offers permessage-deflate during the handshake and
	// compresses outbound frames when the daemon accepts it.
	Compression bool
}

// NewConfig creates a Config for the lit daemon listening on host:port,
// e.g. ws://127.0.0.1:8001/ws.
func NewConfig(host string, port uint16) *Config {
	u := url.URL{
		Scheme: constants.WebsocketScheme,
		Host:   net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10)),
		Path:   constants.DefaultPath,
	}
	return NewConfigFromURL(&u)
}

// NewConfigFromURL creates a Config for an explicit endpoint, for daemons
// behind a proxy that serves the socket on another scheme or path.
func NewConfigFromURL(u *url.URL) *Config {
	c := codec.JSON{}
	return &Config{
		URL:         *u,
		Marshaler:   c,
		Unmarshaler: c,
		Logger:      logger.Nop(),
		Timeout:     constants.DefaultTimeout,
		Compression: true,
	}
}

// Endpoint is the URL the connection dials.
func (c *Config) Endpoint() string {
	return c.URL.String()
}

// Limiter returns the outbound limiter, or nil when unlimited.
func (c *Config) Limiter() *rate.Limiter {
	if c.RateLimit <= 0 {
		return nil
	}
	burst := c.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(c.RateLimit, burst)
}

// Validate reports the first thing that would stop a connection from dialing.
func (c *Config) Validate() error {
	if c.URL.Host == "" {
		return constants.ErrNoEndpoint
	}
	switch c.URL.Scheme {
	case constants.WebsocketScheme, constants.SecureWebsocketScheme:
	default:
		return fmt.Errorf("%w: unsupported scheme %q", constants.ErrNoEndpoint, c.URL.Scheme)
	}
	if c.Marshaler == nil {
		return constants.ErrNoMarshaler
	}
	if c.Unmarshaler == nil {
		return constants.ErrNoUnmarshaler
	}
	return nil
}
