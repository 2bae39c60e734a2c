package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BridgeError is the base interface for all SDK errors.
type BridgeError interface {
	error
	IsBridgeError() bool
}

// Compile-time verification that all error types implement BridgeError.
var (
	_ BridgeError = (*ExecNotFoundError)(nil)
	_ BridgeError = (*SpawnError)(nil)
	_ BridgeError = (*ProcessError)(nil)
	_ BridgeError = (*RPCError)(nil)
	_ BridgeError = (*EventParseError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotStarted indicates the backend process is not running.
	// Requests issued before Start or after Stop fail with this error
	// without touching the wire.
	ErrNotStarted = errors.New("client not started")

	// ErrProcessClosed indicates the backend process exited or could not be
	// started while calls were pending. Every call still in flight at close
	// time fails with this error.
	ErrProcessClosed = errors.New("backend process closed")

	// ErrRequestTimeout indicates a request received no response within its
	// configured window.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")
)

// ExecNotFoundError indicates the nap-msg executable was not found.
type ExecNotFoundError struct {
	SearchedPaths []string
}

func (e *ExecNotFoundError) Error() string {
	return fmt.Sprintf("nap-msg executable not found in: %v", e.SearchedPaths)
}

// IsBridgeError implements BridgeError.
func (e *ExecNotFoundError) IsBridgeError() bool { return true }

// SpawnError indicates the backend process failed to start.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start backend process: %v", e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *SpawnError) IsBridgeError() bool { return true }

// ProcessError indicates the backend process exited abnormally.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("backend process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ProcessError) IsBridgeError() bool { return true }

// EventParseError indicates a message.receive payload could not be parsed.
type EventParseError struct {
	Message string
	Err     error
	Raw     json.RawMessage
}

func (e *EventParseError) Error() string {
	return fmt.Sprintf("failed to parse message event: %s", e.Message)
}

func (e *EventParseError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *EventParseError) IsBridgeError() bool { return true }

// RPCError is a failure reported by the backend in a response envelope.
// Error renders the remote message together with any structured data and the
// numeric code, so a single string carries the full diagnostic.
type RPCError struct {
	Code    *int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "RPC error"
	}

	if data := strings.TrimSpace(string(e.Data)); data != "" && data != "null" {
		msg += ": " + data
	}

	if e.Code != nil {
		msg += fmt.Sprintf(" (code %d)", *e.Code)
	}

	return msg
}

// IsBridgeError implements BridgeError.
func (e *RPCError) IsBridgeError() bool { return true }
