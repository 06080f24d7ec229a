package main

import (
	"context"

	"github.com/gurrpi/codechain-agent-hub/internal/client"
	"github.com/gurrpi/codechain-agent-hub/internal/frontend"
	"github.com/spf13/cobra"
)

func newLogsCmd(opts *options) *cobra.Command {
	var items int
	var types bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent node logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *client.Client) error {
				if types {
					var resp frontend.LogGetTypesResponse
					if err := c.Call(ctx, "log_getTypes", &resp); err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), resp.Types)
				}

				req := frontend.LogGetRequest{}
				if cmd.Flags().Changed("items") {
					req.ItemPerPage = &items
				}
				var resp frontend.LogGetResponse
				if err := c.Call(ctx, "log_get", &resp, req); err != nil {
					return err
				}
				if opts.output == "json" {
					return printJSON(cmd.OutOrStdout(), resp.Logs)
				}
				renderLogs(cmd.OutOrStdout(), resp.Logs)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&items, "items", 100, "number of entries to fetch")
	cmd.Flags().BoolVar(&types, "types", false, "list log types instead of entries")
	return cmd
}
