package frontend

import (
	"time"

	"github.com/gurrpi/codechain-agent-hub/internal/domain"
)

// StartOption is the env and args a node was last started with.
type StartOption struct {
	Env  string `json:"env"`
	Args string `json:"args"`
}

// NodeGetInfoResponse is the result of node_getInfo.
type NodeGetInfoResponse struct {
	Name            string            `json:"name"`
	Status          domain.NodeStatus `json:"status"`
	Address         string            `json:"address,omitempty"`
	Version         string            `json:"version,omitempty"`
	CommitHash      string            `json:"commitHash,omitempty"`
	BestBlockNumber *int64            `json:"bestBlockNumber,omitempty"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	StartOption     *StartOption      `json:"startOption"`
}

func newNodeGetInfoResponse(state *domain.AgentQueryResult, extra *domain.AgentExtra) NodeGetInfoResponse {
	resp := NodeGetInfoResponse{
		Name:            state.Name,
		Status:          state.Status,
		Address:         state.Address,
		Version:         state.Version,
		CommitHash:      state.CommitHash,
		BestBlockNumber: state.BestBlockNumber,
		UpdatedAt:       state.UpdatedAt,
	}
	if extra != nil {
		resp.StartOption = &StartOption{Env: extra.PrevEnv, Args: extra.PrevArgs}
	}
	return resp
}

// DashboardNode is one node on the network view.
type DashboardNode struct {
	Name            string            `json:"name"`
	Status          domain.NodeStatus `json:"status"`
	Address         string            `json:"address,omitempty"`
	Version         string            `json:"version,omitempty"`
	CommitHash      string            `json:"commitHash,omitempty"`
	BestBlockNumber *int64            `json:"bestBlockNumber,omitempty"`
}

func newDashboardNode(state domain.AgentQueryResult) DashboardNode {
	return DashboardNode{
		Name:            state.Name,
		Status:          state.Status,
		Address:         state.Address,
		Version:         state.Version,
		CommitHash:      state.CommitHash,
		BestBlockNumber: state.BestBlockNumber,
	}
}

// NodeConnection is one edge on the network view.
type NodeConnection struct {
	NodeA string `json:"nodeA"`
	NodeB string `json:"nodeB"`
}

// DashboardGetNetworkResponse is the result of dashboard_getNetwork.
type DashboardGetNetworkResponse struct {
	Nodes       []DashboardNode  `json:"nodes"`
	Connections []NodeConnection `json:"connections"`
}

// LogGetRequest is the single param of log_get.
type LogGetRequest struct {
	ItemPerPage *int `json:"itemPerPage,omitempty"`
}

// LogGetResponse is the result of log_get.
type LogGetResponse struct {
	Logs []domain.LogEntry `json:"logs"`
}

// LogGetTypesResponse is the result of log_getTypes.
type LogGetTypesResponse struct {
	Types []string `json:"types"`
}
