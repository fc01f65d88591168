package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	litclient "github.com/litwallet/litclient.go"
	"github.com/litwallet/litclient.go/internal/config"
	"github.com/litwallet/litclient.go/pkg/logger"
)

type globalFlags struct {
	config      string
	host        string
	port        uint16
	timeout     time.Duration
	compression bool
	verbose     bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the config file once and lays the flags the user set
// over it.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}

		flags := cmd.Flags()
		if flags.Changed("host") {
			cfg.Daemon.Host = c.flags.host
		}
		if flags.Changed("port") {
			cfg.Daemon.Port = int(c.flags.port)
		}
		if flags.Changed("timeout") {
			cfg.Client.SetTimeout(c.flags.timeout)
		}
		if flags.Changed("compression") {
			cfg.Client.Compression = c.flags.compression
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger(cmd *cobra.Command, cfg *config.Config) (*logger.LogData, error) {
	level, err := cfg.Logging.ZerologLevel()
	if err != nil {
		return nil, err
	}
	if c.flags.verbose {
		level = zerolog.DebugLevel
	}

	build := logger.New().Level(level).FromBuffer(cmd.ErrOrStderr())
	if cfg.Logging.File != "" {
		build = build.FromPath(cfg.Logging.File)
	}
	return build.Make()
}

// withClient dials the daemon, runs fn and closes the connection.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(ctx context.Context, client *litclient.Client) error) error {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return err
	}

	log, err := c.newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	opts := []litclient.Option{
		litclient.WithLogger(log),
		litclient.WithTimeout(cfg.Client.TimeoutDuration()),
		litclient.WithPath(cfg.Daemon.Path),
		litclient.WithCompression(cfg.Client.Compression),
	}
	if cfg.Client.RateLimit > 0 {
		opts = append(opts, litclient.WithRateLimit(rate.Limit(cfg.Client.RateLimit), cfg.Client.Burst))
	}
	if cfg.Daemon.TLS {
		opts = append(opts, litclient.WithTLS())
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := litclient.Dial(ctx, cfg.Daemon.Host, cfg.Daemon.PortNumber(), opts...)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	return fn(ctx, client)
}
