package napmsg

import (
	"context"
	"encoding/json"
	"iter"
	"time"
)

// Client is a long-lived, stateful bridge to one nap-msg backend process.
//
// Unlike the one-shot Send() function, Client keeps the backend alive across
// calls, so a single process handles many sends, raw requests, and the
// inbound message stream.
//
// Lifecycle: Start spawns the backend, Stop shuts it down, and a stopped
// client may be started again. Correlation ids keep increasing across
// restarts, so a straggler response from an earlier process lifetime can
// never match a fresh call.
//
// Example usage:
//
//	client := NewClient()
//	defer client.Stop()
//
//	err := client.Start(ctx,
//	    WithLogger(slog.Default()),
//	    WithNapcatURL("ws://127.0.0.1:3001"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Handshake, then send
//	if _, err := client.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := client.SendText(ctx, "group:123456", "hello"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Or watch the inbound stream
//	if err := client.Subscribe(ctx, nil); err != nil {
//	    log.Fatal(err)
//	}
//	for event, err := range client.Events(ctx) {
//	    if err != nil {
//	        break
//	    }
//	    // Process event...
//	}
type Client interface {
	// Start spawns the backend process and begins routing its output.
	// Starting an already-running client is a no-op.
	// Returns ExecNotFoundError if the executable cannot be located, or
	// SpawnError if the process fails to start.
	Start(ctx context.Context, opts ...Option) error

	// Stop shuts down the backend process. Pending calls settle with
	// ErrProcessClosed, the input stream is closed, and the process gets a
	// short grace period before being killed. Safe to call multiple times.
	Stop() error

	// EndInput signals the backend that no more requests will be sent.
	// A well-behaved backend finishes in-flight work and exits once its
	// input stream ends; observe the exit through WaitClosed.
	EndInput() error

	// WaitClosed blocks until the backend process closes and returns the
	// cause: a ProcessError or transport failure for abnormal exits, nil
	// for a clean shutdown.
	WaitClosed(ctx context.Context) error

	// SessionID returns the identifier of the current (or most recent)
	// process incarnation. Empty before the first Start.
	SessionID() string

	// Capabilities returns the result of the most recent Initialize, or nil
	// if the handshake has not run.
	Capabilities() *Capabilities

	// Initialize performs the capability handshake and caches the result.
	Initialize(ctx context.Context) (*Capabilities, error)

	// SendText delivers text to a target chat. Targets take the form
	// "group:123456", "user:10001", or a bare id (treated as private).
	SendText(ctx context.Context, target, text string) (json.RawMessage, error)

	// Send performs a generic send: segments to a group or private chat, or
	// a forward bundle, per the request's Channel.
	Send(ctx context.Context, req *SendRequest) (json.RawMessage, error)

	// Subscribe asks the backend to start pushing message.receive
	// notifications. opts may be nil to subscribe without filters.
	Subscribe(ctx context.Context, opts *SubscribeOptions) error

	// Unsubscribe stops the inbound message stream.
	Unsubscribe(ctx context.Context) error

	// ListChats returns the chats known to the backend.
	ListChats(ctx context.Context) ([]json.RawMessage, error)

	// Request sends a raw request with the configured default timeout.
	// Returns ErrNotStarted without touching the wire when the backend is
	// not running.
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)

	// RequestWithTimeout sends a raw request with an explicit timeout.
	// A timeout <= 0 disables the request timer; the call then waits until
	// the backend answers, the process closes, or ctx is cancelled.
	RequestWithTimeout(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error)

	// Notifications yields backend notifications in arrival order until the
	// process closes, an error occurs, or ctx is cancelled. When a handler
	// is configured via WithNotificationHandler, it is the sole consumer
	// and this iterator yields nothing.
	// Use iter.Pull2 if you need pull-based iteration instead of range.
	Notifications(ctx context.Context) iter.Seq2[Notification, error]

	// Events yields parsed message.receive events, skipping notifications
	// for other methods. Payloads that fail to parse are logged and
	// skipped rather than terminating the stream.
	Events(ctx context.Context) iter.Seq2[*MessageEvent, error]
}

// NewClient creates a new bridge client.
//
// Call Start() with options to spawn the backend:
//
//	client := NewClient()
//	err := client.Start(ctx,
//	    WithLogger(slog.Default()),
//	    WithNapcatURL("ws://127.0.0.1:3001"),
//	)
func NewClient() Client {
	return newClientImpl()
}
