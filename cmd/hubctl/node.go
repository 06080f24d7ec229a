package main

import (
	"context"
	"fmt"

	"github.com/gurrpi/codechain-agent-hub/internal/client"
	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"github.com/gurrpi/codechain-agent-hub/internal/frontend"
	"github.com/spf13/cobra"
)

func newNodeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Inspect and control one node",
	}
	cmd.AddCommand(newNodeInfoCmd(opts))
	cmd.AddCommand(newNodeStartCmd(opts))
	cmd.AddCommand(newNodeStopCmd(opts))
	cmd.AddCommand(newNodeUpdateCmd(opts))
	cmd.AddCommand(newNodeLogCmd(opts))
	return cmd
}

func newNodeInfoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info NAME",
		Short: "Show the stored state of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *client.Client) error {
				var info frontend.NodeGetInfoResponse
				if err := c.Call(ctx, "node_getInfo", &info, args[0]); err != nil {
					return err
				}
				if opts.output == "json" {
					return printJSON(cmd.OutOrStdout(), info)
				}
				renderNodeInfo(cmd.OutOrStdout(), info)
				return nil
			})
		},
	}
}

func newNodeStartCmd(opts *options) *cobra.Command {
	var req domain.ShellStartCodeChainRequest
	cmd := &cobra.Command{
		Use:   "start NAME",
		Short: "Start CodeChain on a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *client.Client) error {
				if err := c.Call(ctx, "node_start", nil, args[0], req); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "started %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Env, "env", "", "environment passed to CodeChain")
	cmd.Flags().StringVar(&req.Args, "args", "", "command line arguments passed to CodeChain")
	cmd.Flags().StringVar(&req.Target, "target", "", "build target")
	return cmd
}

func newNodeStopCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stop NAME",
		Short: "Stop CodeChain on a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *client.Client) error {
				if err := c.Call(ctx, "node_stop", nil, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", args[0])
				return nil
			})
		},
	}
}

func newNodeUpdateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update NAME COMMIT_HASH",
		Short: "Rebuild a node on another commit with its last start option",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *client.Client) error {
				if err := c.Call(ctx, "node_update", nil, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s to %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newNodeLogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "log NAME",
		Short: "Print the CodeChain log of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *client.Client) error {
				var text string
				if err := c.Call(ctx, "shell_getCodeChainLog", &text, args[0]); err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}
