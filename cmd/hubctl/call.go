package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gurrpi/codechain-agent-hub/internal/client"
	"github.com/spf13/cobra"
)

func newCallCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "call METHOD [PARAM...]",
		Short: "Call any hub method",
		Long: `Call any hub method with positional params.

A param starting with {, [ or " is sent as JSON. Anything else is sent as a string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make([]any, 0, len(args)-1)
			for _, arg := range args[1:] {
				v, err := parseParam(arg)
				if err != nil {
					return err
				}
				params = append(params, v)
			}
			return withClient(cmd, opts, func(ctx context.Context, c *client.Client) error {
				var result json.RawMessage
				if err := c.Call(ctx, args[0], &result, params...); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func parseParam(arg string) (any, error) {
	if arg == "" || !strings.ContainsRune(`{["`, rune(arg[0])) {
		return arg, nil
	}
	if !json.Valid([]byte(arg)) {
		return nil, fmt.Errorf("invalid JSON param: %s", arg)
	}
	return json.RawMessage(arg), nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
