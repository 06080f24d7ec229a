package domain

import "time"

// AgentQueryResult is the stored state of one node.
type AgentQueryResult struct {
	Name            string     `json:"name"`
	Status          NodeStatus `json:"status"`
	Address         string     `json:"address,omitempty"`
	Version         string     `json:"version,omitempty"`
	CommitHash      string     `json:"commitHash,omitempty"`
	BestBlockNumber *int64     `json:"bestBlockNumber,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// AgentExtra holds hub-side bookkeeping for a node, currently the start
// option last used through the hub.
type AgentExtra struct {
	PrevEnv  string `json:"prevEnv"`
	PrevArgs string `json:"prevArgs"`
}

// Connection is a peer link between two nodes. NodeA sorts before NodeB.
type Connection struct {
	NodeA     string    `json:"nodeA"`
	NodeB     string    `json:"nodeB"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewConnection returns the normalized edge between a and b.
func NewConnection(a, b string, at time.Time) Connection {
	if b < a {
		a, b = b, a
	}
	return Connection{NodeA: a, NodeB: b, UpdatedAt: at}
}

// AgentHello is the handshake a node controller sends when it connects.
type AgentHello struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// AgentInfo is what a node controller reports for agent_getInfo.
type AgentInfo struct {
	Name            string     `json:"name"`
	Status          NodeStatus `json:"status"`
	Address         string     `json:"address,omitempty"`
	Version         string     `json:"version,omitempty"`
	CommitHash      string     `json:"commitHash,omitempty"`
	BestBlockNumber *int64     `json:"bestBlockNumber,omitempty"`
	Peers           []string   `json:"peers,omitempty"`
}
