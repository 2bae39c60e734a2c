package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/napbridge/napmsg-go/internal/config"
	"github.com/napbridge/napmsg-go/internal/errors"
	"github.com/napbridge/napmsg-go/internal/message"
	"github.com/napbridge/napmsg-go/internal/rpc"
	"github.com/napbridge/napmsg-go/internal/subprocess"
)

// defaultNotificationBufferSize is the buffer size for the client-level
// notification channel consumed by the iterators.
const defaultNotificationBufferSize = 10

// Client supervises one nap-msg backend process and exposes the bridge
// operations over it.
type Client struct {
	log     *slog.Logger
	options *config.Options

	// Correlation ids survive restarts: a late response from a previous
	// process lifetime can never match a fresh call.
	seq *rpc.Sequence

	// Notification stream for iterator consumption. Shared across restarts
	// and never closed.
	notifications chan rpc.Notification

	// Lifecycle state for the current process incarnation
	mu        sync.Mutex
	transport config.Transport
	conn      *rpc.Conn
	eg        *errgroup.Group
	drained   chan struct{}
	sessionID string
	caps      *Capabilities
	connected bool
}

// New creates a new bridge client.
//
// The client is not running after creation. Call Start() with options to
// spawn the backend.
func New() *Client {
	return &Client{
		seq:           &rpc.Sequence{},
		notifications: make(chan rpc.Notification, defaultNotificationBufferSize),
	}
}

// Start spawns the backend process and begins routing its output.
//
// Starting an already-running client is a no-op. A stopped client can be
// started again; correlation ids keep increasing across restarts.
//
// Returns ExecNotFoundError if the executable cannot be located, or
// SpawnError if the process fails to start.
func (c *Client) Start(ctx context.Context, options *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c.log = log.With("component", "client")
	c.options = options

	var (
		transport config.Transport
		conn      *rpc.Conn
	)

	if options.Transport != nil {
		transport = options.Transport

		c.log.Debug("Using injected custom transport")
	} else {
		// The stderr callback targets the connection built below. Stderr
		// lines only start flowing once the connection starts the readers,
		// so the reference is set by the time the callback can fire.
		transport = subprocess.NewProcTransport(c.log, options, func(line string) {
			if conn != nil {
				conn.HandleStderrLine(line)
			}
		})
	}

	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	conn = rpc.NewConn(c.log, transport, c.seq)

	if err := conn.Start(ctx); err != nil {
		transport.Close()

		return fmt.Errorf("start rpc connection: %w", err)
	}

	c.transport = transport
	c.conn = conn
	c.sessionID = ulid.Make().String()
	c.drained = make(chan struct{})

	// Background context for the dispatch goroutine: the caller's ctx may
	// carry a startup deadline that must not tear down the running client.
	var egCtx context.Context

	c.eg, egCtx = errgroup.WithContext(context.Background())

	drained := c.drained

	c.eg.Go(func() error {
		defer close(drained)

		return c.dispatchLoop(egCtx, conn)
	})

	c.connected = true
	c.log.Info("Client started", "session_id", c.sessionID)

	return nil
}

// Stop shuts down the backend process.
//
// Pending calls settle with a process-closed error, stdin is closed, and the
// process is given a short grace period before being killed. Stopping a
// client that is not running is a no-op. The client can be started again
// afterwards.
func (c *Client) Stop() error {
	c.mu.Lock()

	if !c.connected {
		c.mu.Unlock()

		return nil
	}

	conn := c.conn
	transport := c.transport
	eg := c.eg
	c.connected = false
	c.mu.Unlock()

	c.log.Info("Stopping client")

	// Settle every pending call and stop the reader
	conn.Stop()

	// End stdin, grace period, then kill
	closeErr := transport.Close()

	if eg != nil {
		if err := eg.Wait(); err != nil && closeErr == nil {
			closeErr = err
		}
	}

	c.log.Info("Client stopped")

	return closeErr
}

// EndInput signals the backend that no more requests will be sent.
//
// A well-behaved backend finishes in-flight work and exits once its input
// stream ends; observe the exit through WaitClosed. Requests issued after
// EndInput fail at the transport.
func (c *Client) EndInput() error {
	c.mu.Lock()
	transport := c.transport
	connected := c.connected
	c.mu.Unlock()

	if !connected || transport == nil {
		return errors.ErrNotStarted
	}

	return transport.EndInput()
}

// WaitClosed blocks until the backend process closes, whether by crash, clean
// exit, or Stop, and returns the cause: a ProcessError or transport error for
// abnormal exits, nil for clean shutdown.
func (c *Client) WaitClosed(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		return errors.ErrNotStarted
	}

	select {
	case <-conn.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	return conn.FatalError()
}

// SessionID returns the ULID of the current (or most recent) process
// incarnation. Empty before the first Start.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessionID
}

// Capabilities returns the cached initialize result, or nil before the
// handshake has run.
func (c *Client) Capabilities() *Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.caps
}

// Request sends a raw request using the configured default timeout.
//
// Returns ErrNotStarted without touching the wire when the client is not
// running.
func (c *Client) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.RequestWithTimeout(ctx, method, params, c.resolveDefaultTimeout())
}

// RequestWithTimeout sends a raw request with an explicit per-call timeout.
// Zero or negative disables the request timer.
func (c *Client) RequestWithTimeout(
	ctx context.Context,
	method string,
	params any,
	timeout time.Duration,
) (json.RawMessage, error) {
	conn := c.currentConn()
	if conn == nil {
		return nil, errors.ErrNotStarted
	}

	return conn.Call(ctx, method, params, timeout)
}

// isConnected returns true if the backend process is running.
// This method is safe to call from any goroutine.
func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// currentConn returns the running connection, or nil when stopped.
func (c *Client) currentConn() *rpc.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	return c.conn
}

// currentStream returns the running connection together with its dispatch
// completion signal, for iterator consumption.
func (c *Client) currentStream() (*rpc.Conn, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, nil
	}

	return c.conn, c.drained
}

// resolveDefaultTimeout maps the configured default onto the engine contract:
// positive runs a timer, zero disables it.
func (c *Client) resolveDefaultTimeout() time.Duration {
	c.mu.Lock()
	options := c.options
	c.mu.Unlock()

	if options == nil {
		return config.DefaultRequestTimeout
	}

	switch {
	case options.DefaultTimeout < 0:
		return 0
	case options.DefaultTimeout == 0:
		return config.DefaultRequestTimeout
	default:
		return options.DefaultTimeout
	}
}

// notificationHandler returns the configured sink callback, if any.
func (c *Client) notificationHandler() func(string, json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.options == nil {
		return nil
	}

	return c.options.OnNotification
}

// dispatchLoop routes notifications from the connection to the configured
// sink. It is the sole consumer of the connection's notification channel.
// Returns the connection's fatal error so WaitClosed and Stop can surface it.
func (c *Client) dispatchLoop(ctx context.Context, conn *rpc.Conn) error {
	defer c.log.Debug("Notification dispatch stopped")

	for {
		select {
		case n := <-conn.Notifications():
			c.dispatch(ctx, conn, n)

		case <-conn.Done():
			// Deliver what the engine queued before it stopped
			for {
				select {
				case n := <-conn.Notifications():
					c.dispatch(ctx, conn, n)
				default:
					if err := conn.FatalError(); err != nil {
						c.log.Error("Backend connection closed", "error", err)

						return err
					}

					return nil
				}
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatch delivers one notification. With a callback configured the
// callback is the sink; otherwise the notification queues for the iterators.
func (c *Client) dispatch(ctx context.Context, conn *rpc.Conn, n rpc.Notification) {
	if handler := c.notificationHandler(); handler != nil {
		handler(n.Method, n.Params)

		return
	}

	select {
	case c.notifications <- n:
	case <-conn.Done():
		// Shutting down with a full queue; prefer delivery, drop as last resort
		select {
		case c.notifications <- n:
		default:
			c.log.Debug("Dropping notification at shutdown", "method", n.Method)
		}
	case <-ctx.Done():
	}
}

// receive returns the next queued notification.
//
// Queued notifications are drained before the close signal is honored, so
// nothing delivered before a crash is lost. Returns io.EOF once the stream
// has ended cleanly and the queue is empty.
func (c *Client) receive(
	ctx context.Context,
	conn *rpc.Conn,
	drained <-chan struct{},
) (rpc.Notification, error) {
	select {
	case n := <-c.notifications:
		return n, nil
	default:
	}

	select {
	case n := <-c.notifications:
		return n, nil

	case <-drained:
		// Dispatch has finished; whatever it queued is already here
		select {
		case n := <-c.notifications:
			return n, nil
		default:
		}

		if err := conn.FatalError(); err != nil {
			return rpc.Notification{}, err
		}

		return rpc.Notification{}, io.EOF

	case <-ctx.Done():
		return rpc.Notification{}, ctx.Err()
	}
}

// Notifications returns an iterator over the notification stream.
//
// The iterator is bound to the process incarnation running when iteration
// starts: it ends when that process closes, cleanly (no final error) or not
// (the terminal error is yielded last). When an OnNotification callback is
// configured the callback is the sink and this iterator yields nothing.
func (c *Client) Notifications(ctx context.Context) iter.Seq2[rpc.Notification, error] {
	return func(yield func(rpc.Notification, error) bool) {
		conn, drained := c.currentStream()
		if conn == nil {
			yield(rpc.Notification{}, errors.ErrNotStarted)

			return
		}

		for {
			n, err := c.receive(ctx, conn, drained)
			if stderrors.Is(err, io.EOF) {
				return
			}

			if err != nil {
				yield(rpc.Notification{}, err)

				return
			}

			if !yield(n, nil) {
				return
			}
		}
	}
}

// Events returns an iterator over message.receive notifications parsed into
// typed events. Other notification methods are skipped; unparseable events
// are logged and skipped rather than ending the stream.
func (c *Client) Events(ctx context.Context) iter.Seq2[*message.MessageEvent, error] {
	return func(yield func(*message.MessageEvent, error) bool) {
		for n, err := range c.Notifications(ctx) {
			if err != nil {
				yield(nil, err)

				return
			}

			if n.Method != methodMessageReceive {
				continue
			}

			event, parseErr := message.ParseEvent(c.log, n.Params)
			if parseErr != nil {
				c.log.Warn("Failed to parse message event", "error", parseErr)

				continue
			}

			if !yield(event, nil) {
				return
			}
		}
	}
}
