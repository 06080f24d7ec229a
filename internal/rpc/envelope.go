package rpc

import (
	"bytes"
	"encoding/json"
)

// Version is the JSON-RPC protocol version spoken by the hub.
const Version = "2.0"

// Request is a single JSON-RPC request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a single JSON-RPC response envelope. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the wire form of an *Error.
type ErrorObject struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries the error kind so clients need not switch on codes.
type ErrorData struct {
	Kind Kind `json:"kind"`
}

// Err converts the wire error back into an *Error.
func (o *ErrorObject) Err() *Error {
	if o == nil {
		return nil
	}
	kind := KindInternal
	if o.Data != nil && o.Data.Kind != "" {
		kind = o.Data.Kind
	}
	return &Error{Kind: kind, Message: o.Message}
}

// NewResultResponse builds a success envelope.
func NewResultResponse(id, result json.RawMessage) *Response {
	if len(result) == 0 {
		result = nullJSON
	}
	return &Response{JSONRPC: Version, ID: normalizeID(id), Result: result}
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      normalizeID(id),
		Error: &ErrorObject{
			Code:    err.Kind.Code(),
			Message: err.Error(),
			Data:    &ErrorData{Kind: err.Kind},
		},
	}
}

// Empty is the result of handlers that only report success. It encodes as null.
type Empty struct{}

// MarshalJSON implements json.Marshaler.
func (Empty) MarshalJSON() ([]byte, error) {
	return nullJSON, nil
}

var nullJSON = json.RawMessage("null")

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullJSON
	}
	return id
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, nullJSON)
}
