package main

import (
	"time"

	"github.com/spf13/cobra"
)

// skipConfigAnnotation marks commands that must run even when the config
// file does not load.
const skipConfigAnnotation = "litws/skip-config"

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "litws",
		Short:         "Call a lit daemon over its websocket RPC endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.StringVar(&flags.host, "host", "", "Daemon host (overrides config)")
	pf.Uint16VarP(&flags.port, "port", "p", 0, "Daemon RPC port (overrides config)")
	pf.DurationVar(&flags.timeout, "timeout", 30*time.Second, "How long to wait for each reply, 0 to wait forever")
	pf.BoolVar(&flags.compression, "compression", true, "Offer permessage-deflate to the daemon (overrides config)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log connection events to stderr")

	rootCmd.AddCommand(newCallCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
