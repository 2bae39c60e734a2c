// Package config provides configuration types for the nap-msg bridge SDK.
package config

import "context"

// Transport defines the interface for backend process communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative line-protocol processes.
//
// The default implementation is subprocess.ProcTransport which spawns the
// nap-msg executable. Custom transports can be injected via Options.Transport.
type Transport interface {
	// Start launches the backend and prepares it for communication.
	// This is called before any lines are written or read.
	Start(ctx context.Context) error

	// ReadLines returns channels for receiving output lines and errors.
	// The line channel yields raw newline-delimited frames from the backend's
	// stdout; decoding is the protocol engine's job. The error channel yields
	// terminal transport errors. Both channels are closed when the backend
	// exits, which is the process-closed signal observed by the engine.
	ReadLines(ctx context.Context) (<-chan []byte, <-chan error)

	// WriteLine sends one frame to the backend's stdin.
	// The data should be a complete JSON object (newline is appended if missing).
	// This method must be safe for concurrent use.
	WriteLine(ctx context.Context, data []byte) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool

	// EndInput signals that no more input will be sent.
	// For process-based transports, this closes stdin.
	EndInput() error
}
