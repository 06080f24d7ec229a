package main

import (
	"context"

	"github.com/gurrpi/codechain-agent-hub/internal/client"
	"github.com/gurrpi/codechain-agent-hub/internal/frontend"
	"github.com/spf13/cobra"
)

func newNetworkCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "network",
		Short: "Show nodes and their peer connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *client.Client) error {
				var network frontend.DashboardGetNetworkResponse
				if err := c.Call(ctx, "dashboard_getNetwork", &network); err != nil {
					return err
				}
				if opts.output == "json" {
					return printJSON(cmd.OutOrStdout(), network)
				}
				renderNetwork(cmd.OutOrStdout(), network)
				return nil
			})
		},
	}
}
