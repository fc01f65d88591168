package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	litclient "github.com/litwallet/litclient.go"
)

func newCallCommand(ctx *commandContext) *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "call METHOD [PARAM_JSON...]",
		Short: "Call one RPC method and print its result",
		Long: `Call one RPC method and print its result as JSON.

Each PARAM_JSON is one JSON value and becomes one element of the params
array, e.g.

  litws call LitRPC.Send '{"DestAddrs":["ln1..."],"Amts":[500]}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			return ctx.withClient(cmd, func(c context.Context, client *litclient.Client) error {
				res, err := client.Send(c, args[0], params...)
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				return printResult(cmd, res, compact)
			})
		},
	}

	cmd.Flags().BoolVar(&compact, "compact", false, "Print the result on one line")

	return cmd
}

func parseParams(args []string) ([]any, error) {
	params := make([]any, 0, len(args))
	for i, arg := range args {
		raw := json.RawMessage(arg)
		if !json.Valid(raw) {
			return nil, fmt.Errorf("param %d is not valid JSON: %s", i+1, arg)
		}
		params = append(params, raw)
	}
	return params, nil
}

func printResult(cmd *cobra.Command, res []byte, compact bool) error {
	if res == nil {
		res = []byte("null")
	}

	var buf bytes.Buffer
	var err error
	if compact {
		err = json.Compact(&buf, res)
	} else {
		err = json.Indent(&buf, res, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("formatting result: %w", err)
	}

	buf.WriteByte('\n')
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}
