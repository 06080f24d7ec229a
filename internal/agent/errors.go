package agent

import "fmt"

// CommandError reports a failed command on a node controller.
type CommandError struct {
	Node   string
	Method string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("agent %s: %s failed: %v", e.Node, e.Method, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
