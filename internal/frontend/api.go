package frontend

import (
	"context"
	"fmt"

	"github.com/gurrpi/codechain-agent-hub/internal/agent"
	"github.com/gurrpi/codechain-agent-hub/internal/domain"
	"github.com/gurrpi/codechain-agent-hub/internal/logs"
	"github.com/gurrpi/codechain-agent-hub/internal/rpc"
	"go.uber.org/zap"
)

// AddRoutes registers every frontend method.
func AddRoutes(b *rpc.Builder[Context]) {
	b.MustRegister("ping", rpc.Func0(ping))
	b.MustRegister("node_getInfo", rpc.Func1(nodeGetInfo))
	b.MustRegister("dashboard_getNetwork", rpc.Func0(dashboardGetNetwork))
	b.MustRegister("node_start", rpc.Func2(nodeStart))
	b.MustRegister("node_stop", rpc.Func1(nodeStop))
	b.MustRegister("node_update", rpc.Func2(nodeUpdate))
	b.MustRegister("shell_getCodeChainLog", rpc.Func1(shellGetCodeChainLog))
	b.MustRegister("log_getTypes", rpc.Func0(logGetTypes))
	b.MustRegister("log_get", rpc.Func1(logGet))
}

// NewRouter builds the frontend method table.
func NewRouter() *rpc.Router[Context] {
	b := rpc.NewBuilder[Context]()
	AddRoutes(b)
	return b.Build()
}

func ping(ctx context.Context, c Context) (string, error) {
	return "pong", nil
}

func dashboardGetNetwork(ctx context.Context, c Context) (DashboardGetNetworkResponse, error) {
	states, err := c.DB.GetAgentsState(ctx)
	if err != nil {
		return DashboardGetNetworkResponse{}, fmt.Errorf("get agents state: %w", err)
	}
	connections, err := c.DB.GetConnections(ctx)
	if err != nil {
		return DashboardGetNetworkResponse{}, fmt.Errorf("get connections: %w", err)
	}

	resp := DashboardGetNetworkResponse{
		Nodes:       make([]DashboardNode, 0, len(states)),
		Connections: make([]NodeConnection, 0, len(connections)),
	}
	for _, state := range states {
		resp.Nodes = append(resp.Nodes, newDashboardNode(state))
	}
	for _, conn := range connections {
		resp.Connections = append(resp.Connections, NodeConnection{NodeA: conn.NodeA, NodeB: conn.NodeB})
	}
	return resp, nil
}

func nodeGetInfo(ctx context.Context, c Context, name string) (NodeGetInfoResponse, error) {
	state, err := c.DB.GetAgentQueryResult(ctx, name)
	if err != nil {
		return NodeGetInfoResponse{}, fmt.Errorf("get agent state: %w", err)
	}
	if state == nil {
		return NodeGetInfoResponse{}, rpc.AgentNotFound(name)
	}
	extra, err := c.DB.GetAgentExtra(ctx, name)
	if err != nil {
		return NodeGetInfoResponse{}, fmt.Errorf("get agent extra: %w", err)
	}
	return newNodeGetInfoResponse(state, extra), nil
}

func nodeStart(ctx context.Context, c Context, name string, req domain.ShellStartCodeChainRequest) (rpc.Empty, error) {
	h, err := resolve(c, name)
	if err != nil {
		return rpc.Empty{}, err
	}
	if err := h.StartCodeChain(ctx, req); err != nil {
		return rpc.Empty{}, rpc.AgentError(err)
	}
	// The start already happened; a failed save is logged, not reported.
	if err := c.DB.SaveStartOption(ctx, name, req.Env, req.Args); err != nil {
		c.logger().Error("failed to save start option", zap.String("node", name), zap.Error(err))
	}
	return rpc.Empty{}, nil
}

func nodeStop(ctx context.Context, c Context, name string) (rpc.Empty, error) {
	h, err := resolve(c, name)
	if err != nil {
		return rpc.Empty{}, err
	}
	if err := h.StopCodeChain(ctx); err != nil {
		return rpc.Empty{}, rpc.AgentError(err)
	}
	return rpc.Empty{}, nil
}

func nodeUpdate(ctx context.Context, c Context, name string, commitHash string) (rpc.Empty, error) {
	h, err := resolve(c, name)
	if err != nil {
		return rpc.Empty{}, err
	}
	extra, err := c.DB.GetAgentExtra(ctx, name)
	if err != nil {
		return rpc.Empty{}, fmt.Errorf("get agent extra: %w", err)
	}

	// Nodes never started through the hub are updated with empty env and args.
	req := domain.ShellUpdateCodeChainRequest{CommitHash: commitHash}
	if extra != nil {
		req.Env = extra.PrevEnv
		req.Args = extra.PrevArgs
	}
	if err := h.UpdateCodeChain(ctx, req); err != nil {
		return rpc.Empty{}, rpc.AgentError(err)
	}
	return rpc.Empty{}, nil
}

func shellGetCodeChainLog(ctx context.Context, c Context, name string) (string, error) {
	h, err := resolve(c, name)
	if err != nil {
		return "", err
	}
	text, err := h.GetCodeChainLog(ctx)
	if err != nil {
		return "", rpc.AgentError(err)
	}
	return text, nil
}

func logGetTypes(ctx context.Context, c Context) (LogGetTypesResponse, error) {
	return LogGetTypesResponse{Types: logs.Types()}, nil
}

func logGet(ctx context.Context, c Context, req LogGetRequest) (LogGetResponse, error) {
	limit, err := c.LogOptions.Resolve(req.ItemPerPage)
	if err != nil {
		return LogGetResponse{}, rpc.InvalidParams(err)
	}
	entries, err := c.Logs.Logs(ctx, limit)
	if err != nil {
		return LogGetResponse{}, fmt.Errorf("query logs: %w", err)
	}
	if entries == nil {
		entries = []domain.LogEntry{}
	}
	return LogGetResponse{Logs: entries}, nil
}

func resolve(c Context, name string) (agent.Handle, error) {
	h, ok := c.Agents.GetAgent(name)
	if !ok {
		return nil, rpc.AgentNotFound(name)
	}
	return h, nil
}
