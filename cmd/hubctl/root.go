package main

import (
	"context"
	"time"

	"github.com/gurrpi/codechain-agent-hub/internal/client"
	"github.com/spf13/cobra"
)

type options struct {
	addr    string
	timeout time.Duration
	output  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "hubctl",
		Short: "Inspect and control CodeChain nodes through the agent hub",
		// Errors are printed by cobra; usage only for flag mistakes.
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", "ws://localhost:8080/ws", "hub websocket address")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "per-command timeout")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format: table or json")

	root.AddCommand(newCallCmd(opts))
	root.AddCommand(newNetworkCmd(opts))
	root.AddCommand(newLogsCmd(opts))
	root.AddCommand(newNodeCmd(opts))
	return root
}

// withClient connects, runs fn and closes the connection.
func withClient(cmd *cobra.Command, opts *options, fn func(ctx context.Context, c *client.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	c, err := client.NewClient(ctx, opts.addr)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}
