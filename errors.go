package napmsg

import "github.com/napbridge/napmsg-go/internal/errors"

// Re-export error types from internal package

// ExecNotFoundError indicates the nap-msg executable was not found.
type ExecNotFoundError = errors.ExecNotFoundError

// SpawnError indicates the backend process could not be started.
type SpawnError = errors.SpawnError

// ProcessError indicates the backend process exited abnormally.
type ProcessError = errors.ProcessError

// RPCError is a failure reported by the backend in a response envelope.
type RPCError = errors.RPCError

// EventParseError indicates a message.receive payload could not be parsed.
type EventParseError = errors.EventParseError

// BridgeError is the base interface for all bridge errors.
type BridgeError = errors.BridgeError

// Re-export sentinel errors from internal package.
var (
	// ErrNotStarted indicates the backend process is not running.
	ErrNotStarted = errors.ErrNotStarted

	// ErrProcessClosed indicates the backend process exited while the call
	// was outstanding.
	ErrProcessClosed = errors.ErrProcessClosed

	// ErrRequestTimeout indicates a request received no response in time.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrStdinClosed indicates the request could not be written because the
	// backend's input stream is closed.
	ErrStdinClosed = errors.ErrStdinClosed
)
