package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"github.com/gurrpi/codechain-agent-hub/internal/frontend"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func statusColor(status domain.NodeStatus) text.Colors {
	switch status {
	case domain.NodeStatusRun:
		return text.Colors{text.FgGreen}
	case domain.NodeStatusError, domain.NodeStatusUFO:
		return text.Colors{text.FgRed}
	case domain.NodeStatusStarting, domain.NodeStatusUpdating:
		return text.Colors{text.FgYellow}
	}
	return text.Colors{}
}

func blockNumber(n *int64) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatInt(*n, 10)
}

func renderNetwork(w io.Writer, network frontend.DashboardGetNetworkResponse) {
	if len(network.Nodes) == 0 {
		fmt.Fprintln(w, text.FgYellow.Sprint("No nodes found"))
		return
	}

	nodes := newTable(w)
	nodes.AppendHeader(table.Row{"NAME", "STATUS", "ADDRESS", "VERSION", "COMMIT", "BEST BLOCK"})
	for _, n := range network.Nodes {
		nodes.AppendRow(table.Row{
			n.Name,
			statusColor(n.Status).Sprint(string(n.Status)),
			n.Address,
			n.Version,
			n.CommitHash,
			blockNumber(n.BestBlockNumber),
		})
	}
	nodes.Render()

	if len(network.Connections) == 0 {
		return
	}
	conns := newTable(w)
	conns.AppendHeader(table.Row{"NODE A", "NODE B"})
	for _, c := range network.Connections {
		conns.AppendRow(table.Row{c.NodeA, c.NodeB})
	}
	conns.Render()
}

func renderNodeInfo(w io.Writer, info frontend.NodeGetInfoResponse) {
	t := newTable(w)
	t.AppendHeader(table.Row{"KEY", "VALUE"})
	t.AppendRow(table.Row{"name", info.Name})
	t.AppendRow(table.Row{"status", statusColor(info.Status).Sprint(string(info.Status))})
	t.AppendRow(table.Row{"address", info.Address})
	t.AppendRow(table.Row{"version", info.Version})
	t.AppendRow(table.Row{"commit", info.CommitHash})
	t.AppendRow(table.Row{"best block", blockNumber(info.BestBlockNumber)})
	t.AppendRow(table.Row{"updated", info.UpdatedAt.Format(time.RFC3339)})
	if info.StartOption != nil {
		t.AppendRow(table.Row{"env", info.StartOption.Env})
		t.AppendRow(table.Row{"args", info.StartOption.Args})
	}
	t.Render()
}

func renderLogs(w io.Writer, entries []domain.LogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, text.FgYellow.Sprint("No logs found"))
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"TIME", "NODE", "LEVEL", "TARGET", "MESSAGE"})
	for _, e := range entries {
		level := string(e.Level)
		switch e.Level {
		case domain.LogLevelError:
			level = text.FgRed.Sprint(level)
		case domain.LogLevelWarn:
			level = text.FgYellow.Sprint(level)
		}
		t.AppendRow(table.Row{e.Timestamp.Format(time.RFC3339), e.NodeName, level, e.Target, e.Message})
	}
	t.Render()
}
