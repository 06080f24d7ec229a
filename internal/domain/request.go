package domain

// ShellStartCodeChainRequest starts the CodeChain client on a node.
type ShellStartCodeChainRequest struct {
	Env    string `json:"env"`
	Args   string `json:"args"`
	Target string `json:"target,omitempty"`
}

// ShellUpdateCodeChainRequest restarts a node on another commit, replaying the
// last start option.
type ShellUpdateCodeChainRequest struct {
	Env        string `json:"env"`
	Args       string `json:"args"`
	CommitHash string `json:"commitHash"`
}
