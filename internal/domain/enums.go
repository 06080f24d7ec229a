// Package domain defines the core domain models for the hub.
package domain

// NodeStatus is the lifecycle state of a CodeChain node as last seen by the hub.
type NodeStatus string

const (
	NodeStatusStarting NodeStatus = "Starting"
	NodeStatusRun      NodeStatus = "Run"
	NodeStatusStop     NodeStatus = "Stop"
	NodeStatusUpdating NodeStatus = "Updating"
	NodeStatusError    NodeStatus = "Error"
	// NodeStatusUFO marks a node the agent reports but cannot control.
	NodeStatusUFO NodeStatus = "UFO"
)

// Valid reports whether s is a known status.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusStarting, NodeStatusRun, NodeStatusStop, NodeStatusUpdating, NodeStatusError, NodeStatusUFO:
		return true
	}
	return false
}

// LogLevel is the severity of a node log entry.
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
	LogLevelTrace LogLevel = "trace"
)
