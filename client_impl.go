package napmsg

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/napbridge/napmsg-go/internal/client"
)

// clientWrapper wraps the internal client to adapt it to the public interface.
type clientWrapper struct {
	impl *client.Client

	mu  sync.Mutex
	log *slog.Logger
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl() Client {
	return &clientWrapper{impl: client.New()}
}

// Start spawns the backend process and begins routing its output.
func (c *clientWrapper) Start(ctx context.Context, opts ...Option) error {
	options := applyOptions(opts)

	c.mu.Lock()
	c.log = options.Logger
	c.mu.Unlock()

	return c.impl.Start(ctx, options)
}

// Stop shuts down the backend process.
func (c *clientWrapper) Stop() error {
	return c.impl.Stop()
}

// EndInput signals the backend that no more requests will be sent.
func (c *clientWrapper) EndInput() error {
	return c.impl.EndInput()
}

// WaitClosed blocks until the backend process closes.
func (c *clientWrapper) WaitClosed(ctx context.Context) error {
	return c.impl.WaitClosed(ctx)
}

// SessionID returns the identifier of the current process incarnation.
func (c *clientWrapper) SessionID() string {
	return c.impl.SessionID()
}

// Capabilities returns the result of the most recent Initialize.
func (c *clientWrapper) Capabilities() *Capabilities {
	return c.impl.Capabilities()
}

// Initialize performs the capability handshake and caches the result.
func (c *clientWrapper) Initialize(ctx context.Context) (*Capabilities, error) {
	return c.impl.Initialize(ctx)
}

// SendText delivers text to a target chat.
func (c *clientWrapper) SendText(ctx context.Context, target, text string) (json.RawMessage, error) {
	return c.impl.SendText(ctx, target, text)
}

// Send performs a generic send.
func (c *clientWrapper) Send(ctx context.Context, req *SendRequest) (json.RawMessage, error) {
	return c.impl.Send(ctx, req)
}

// Subscribe asks the backend to start pushing message.receive notifications.
func (c *clientWrapper) Subscribe(ctx context.Context, opts *SubscribeOptions) error {
	return c.impl.Subscribe(ctx, opts)
}

// Unsubscribe stops the inbound message stream.
func (c *clientWrapper) Unsubscribe(ctx context.Context) error {
	return c.impl.Unsubscribe(ctx)
}

// ListChats returns the chats known to the backend.
func (c *clientWrapper) ListChats(ctx context.Context) ([]json.RawMessage, error) {
	return c.impl.ListChats(ctx)
}

// Request sends a raw request with the configured default timeout.
func (c *clientWrapper) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.impl.Request(ctx, method, params)
}

// RequestWithTimeout sends a raw request with an explicit timeout.
func (c *clientWrapper) RequestWithTimeout(
	ctx context.Context,
	method string,
	params any,
	timeout time.Duration,
) (json.RawMessage, error) {
	return c.impl.RequestWithTimeout(ctx, method, params, timeout)
}

// Notifications yields backend notifications in arrival order.
func (c *clientWrapper) Notifications(ctx context.Context) iter.Seq2[Notification, error] {
	return c.impl.Notifications(ctx)
}

// Events yields parsed message.receive events.
func (c *clientWrapper) Events(ctx context.Context) iter.Seq2[*MessageEvent, error] {
	return c.impl.Events(ctx)
}

// logger returns the logger from the most recent Start, or nil if the client
// has not been started or was started without one.
func (c *clientWrapper) logger() *slog.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.log
}
