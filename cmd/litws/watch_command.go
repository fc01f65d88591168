package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	litclient "github.com/litwallet/litclient.go"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every notification the daemon pushes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(c context.Context, client *litclient.Client) error {
				c, stop := signal.NotifyContext(c, os.Interrupt, syscall.SIGTERM)
				defer stop()

				if duration > 0 {
					var cancel context.CancelFunc
					c, cancel = context.WithTimeout(c, duration)
					defer cancel()
				}

				pushed := make(chan json.RawMessage, 64)
				client.OnNotification(func(result json.RawMessage) {
					select {
					case pushed <- result:
					case <-c.Done():
					}
				})

				for {
					select {
					case <-c.Done():
						return nil
					case result := <-pushed:
						if err := printResult(cmd, result, true); err != nil {
							return err
						}
					}
				}
			})
		},
	}

	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long instead of waiting for an interrupt")

	return cmd
}
