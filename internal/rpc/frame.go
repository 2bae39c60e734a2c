package rpc

import (
	"encoding/json"
)

// Version is the JSON-RPC protocol version carried in every frame.
const Version = "2.0"

// Synthetic notification methods emitted by the SDK itself rather than the
// backend. They share the sink with genuine backend notifications so callers
// observe diagnostics and decode problems without extra plumbing.
const (
	// MethodStderr tags a notification carrying one line of backend stderr.
	MethodStderr = "stderr"
	// MethodError tags a notification describing an undecodable input line.
	MethodError = "error"
)

// Request is an outgoing JSON-RPC request.
//
// Wire format:
//
//	{"jsonrpc":"2.0","id":3,"method":"message.send","params":{...}}
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Notification is an inbound message with no correlation id, normalized for
// delivery to the sink. Params is kept opaque; higher layers decode it.
type Notification struct {
	Method string
	Params json.RawMessage
}

// envelope is the inbound sniffing shape. One decoded line is either a
// response (non-null id) or a notification (method, no id); anything else is
// malformed.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

// wireError is the JSON-RPC error object as it appears on the wire.
type wireError struct {
	Code    *int            `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// hasID reports whether the envelope carries a non-null id.
func (e *envelope) hasID() bool {
	return len(e.ID) > 0 && string(e.ID) != "null"
}

// stderrParams is the params payload of a MethodStderr notification.
type stderrParams struct {
	Line string `json:"line"`
}

// errorParams is the params payload of a MethodError notification.
type errorParams struct {
	Message string `json:"message"`
	Line    string `json:"line,omitempty"`
}

// idKey converts a raw id value to its pending-table key. The SDK always
// sends integer ids, but the key is the decimal string so an id echoed back
// as "3" instead of 3 still matches.
func idKey(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	return "", false
}
