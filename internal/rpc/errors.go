// Package rpc implements the JSON-RPC dispatch core of the hub: the method
// table, the generic handler adapters and the response envelope.
package rpc

import (
	"errors"
	"fmt"
)

// Kind classifies an RPC failure.
type Kind string

const (
	KindParseError     Kind = "ParseError"
	KindInvalidRequest Kind = "InvalidRequest"
	KindMethodNotFound Kind = "MethodNotFound"
	KindInvalidParams  Kind = "InvalidParams"
	KindAgentNotFound  Kind = "AgentNotFound"
	KindAgentError     Kind = "AgentError"
	KindInternal       Kind = "Internal"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeAgentNotFound  = -32001
	CodeAgentError     = -32002
)

// Code returns the JSON-RPC error code for the kind.
func (k Kind) Code() int {
	switch k {
	case KindParseError:
		return CodeParseError
	case KindInvalidRequest:
		return CodeInvalidRequest
	case KindMethodNotFound:
		return CodeMethodNotFound
	case KindInvalidParams:
		return CodeInvalidParams
	case KindAgentNotFound:
		return CodeAgentNotFound
	case KindAgentError:
		return CodeAgentError
	default:
		return CodeInternal
	}
}

// Error is the failure half of every dispatch result.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ParseError reports a request body that is not valid JSON.
func ParseError(err error) *Error {
	return &Error{Kind: KindParseError, Message: "parse error: " + err.Error(), Err: err}
}

// InvalidRequest reports a well-formed JSON value that is not a request envelope.
func InvalidRequest(msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: "invalid request: " + msg}
}

// MethodNotFound reports an unregistered method name.
func MethodNotFound(method string) *Error {
	return &Error{Kind: KindMethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
}

// InvalidParams reports params that do not decode into the handler's arguments.
func InvalidParams(err error) *Error {
	return &Error{Kind: KindInvalidParams, Message: "invalid params: " + err.Error(), Err: err}
}

// AgentNotFound reports a node name that does not resolve to a live agent.
func AgentNotFound(name string) *Error {
	return &Error{Kind: KindAgentNotFound, Message: fmt.Sprintf("agent not found: %s", name)}
}

// AgentError reports a failed remote command. The cause stays reachable through errors.As.
func AgentError(err error) *Error {
	return &Error{Kind: KindAgentError, Message: "agent error: " + err.Error(), Err: err}
}

// Internal reports anything the caller cannot act on.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error: " + err.Error(), Err: err}
}

// AsError converts err into an *Error, classifying unknown errors as Internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return Internal(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Kind == kind
}
