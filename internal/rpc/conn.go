package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/napbridge/napmsg-go/internal/errors"
)

// Transport defines the minimal interface needed for protocol operations.
//
// This interface is satisfied by the subprocess ProcTransport but allows for
// testing with mock transports.
type Transport interface {
	ReadLines(ctx context.Context) (<-chan []byte, <-chan error)
	WriteLine(ctx context.Context, data []byte) error
}

// notificationBuffer is the capacity of the notification channel. The reader
// blocks once it fills, applying backpressure to the backend stream.
const notificationBuffer = 100

// Sequence allocates correlation ids, starting at 1 and strictly increasing.
//
// A Sequence outlives any single connection: a client that stops and starts
// its backend again keeps allocating fresh ids, so a late response from a
// previous process lifetime can never match a new call.
type Sequence struct {
	n atomic.Int64
}

// Next returns the next correlation id.
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}

// Conn correlates JSON-RPC requests with responses over a line transport.
//
// The Conn handles:
//   - Sending requests with unique correlation ids
//   - Receiving and routing response lines to waiting calls
//   - Per-call timeout enforcement
//   - Forwarding notifications (id-less frames) to consumers via Notifications
//
// The Conn must be started with Start() before use and manages its own
// goroutine for reading and routing lines. A Conn is tied to one process
// lifetime; restarting the backend means building a new Conn around the new
// transport, sharing the same Sequence.
type Conn struct {
	log       *slog.Logger
	transport Transport
	seq       *Sequence

	// Pending call tracking
	pendingMu sync.RWMutex
	pending   map[string]*pendingCall

	// Inbound notifications forwarded to consumers. Never closed; Done()
	// signals the end of the stream so that locally synthesized
	// notifications can be injected from other goroutines without racing a
	// channel close.
	notifications chan Notification

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// pendingCall tracks an outgoing request awaiting its response.
type pendingCall struct {
	method   string
	response chan callResult
}

// callResult is the settled outcome delivered to a waiting call.
type callResult struct {
	result json.RawMessage
	err    *errors.RPCError
}

// NewConn creates a new connection over the given transport.
//
// The logger will receive debug, info, warn, and error messages during
// protocol operations. The transport must be started before calling Start().
// The sequence may be shared with previous connections of the same client.
func NewConn(log *slog.Logger, transport Transport, seq *Sequence) *Conn {
	return &Conn{
		log:           log.With("component", "rpc"),
		transport:     transport,
		seq:           seq,
		pending:       make(map[string]*pendingCall, 10),
		notifications: make(chan Notification, notificationBuffer),
		done:          make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (c *Conn) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by closing done.
func (c *Conn) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Conn) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the connection stops, whether by
// Stop, transport error, or the backend closing its streams.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Start begins reading lines from the transport and routing them.
//
// This method spawns a goroutine that reads from the transport, matches
// responses against pending calls, and forwards notifications. The goroutine
// stops when the context is cancelled or the transport closes; either way
// Done() is signalled so every in-flight call settles.
func (c *Conn) Start(ctx context.Context) error {
	c.log.Debug("Starting RPC connection")

	lines, errs := c.transport.ReadLines(ctx)

	c.wg.Add(1)

	go c.readLoop(ctx, lines, errs)

	c.log.Info("RPC connection started")

	return nil
}

// Stop shuts down the connection.
//
// This method signals the read loop to stop and waits for completion. Every
// pending call settles with a process-closed error. It's safe to call Stop
// multiple times.
func (c *Conn) Stop() {
	c.log.Debug("Stopping RPC connection")

	c.closeDone()
	c.wg.Wait()
	c.log.Info("RPC connection stopped")
}

// Notifications returns the channel of inbound notifications.
//
// The connection acts as a demultiplexer: it reads all lines from the
// transport, settles responses internally, and forwards notifications
// through this channel. The channel is never closed; consumers should select
// on Done() to detect the end of the stream.
func (c *Conn) Notifications() <-chan Notification {
	return c.notifications
}

// Call sends a request and waits for the matching response.
//
// The correlation id is allocated from the shared sequence and the pending
// entry is registered before the frame is written, so a response cannot
// arrive before its waiter exists. If the write fails the entry is removed
// and the error returned without waiting.
//
// A positive timeout starts a timer for this call; zero or negative disables
// it. Exactly one of response, timeout, process-closed, or context
// cancellation settles the call; the pending entry is removed on settlement
// so later frames with the same id are ignored.
func (c *Conn) Call(
	ctx context.Context,
	method string,
	params any,
	timeout time.Duration,
) (json.RawMessage, error) {
	id := c.seq.Next()
	key := strconv.FormatInt(id, 10)

	c.log.Debug("Sending request", "id", id, "method", method, "timeout", timeout)

	responseChan := make(chan callResult, 1)

	c.pendingMu.Lock()
	c.pending[key] = &pendingCall{method: method, response: responseChan}
	c.pendingMu.Unlock()

	req := &Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	}

	data, err := json.Marshal(req)
	if err != nil {
		c.removePending(key)
		c.log.Error("Failed to marshal request", "id", id, "error", err)

		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.transport.WriteLine(ctx, data); err != nil {
		c.removePending(key)
		c.log.Error("Failed to send request", "id", id, "error", err)

		return nil, fmt.Errorf("send request: %w", err)
	}

	c.log.Debug("Request sent, waiting for response", "id", id)

	var timerC <-chan time.Time

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		timerC = timer.C
	}

	select {
	case res := <-responseChan:
		if res.err != nil {
			c.log.Warn("Request returned error", "id", id, "method", method, "error", res.err.Error())

			return nil, res.err
		}

		c.log.Debug("Request completed", "id", id, "method", method)

		return res.result, nil

	case <-timerC:
		c.removePending(key)
		c.log.Warn("Request timed out", "id", id, "method", method, "timeout", timeout)

		return nil, fmt.Errorf("%s: %w after %s", method, errors.ErrRequestTimeout, timeout)

	case <-c.done:
		// Connection stopped (possibly due to transport error) - fail fast
		c.removePending(key)

		if err := c.FatalError(); err != nil {
			c.log.Warn("Transport error during request", "id", id, "error", err)

			return nil, fmt.Errorf("transport error: %w", err)
		}

		c.log.Debug("Connection closed during request", "id", id)

		return nil, errors.ErrProcessClosed

	case <-ctx.Done():
		c.removePending(key)
		c.log.Debug("Request cancelled", "id", id, "method", method)

		return nil, ctx.Err()
	}
}

// Inject delivers a locally synthesized notification through the same path
// as wire notifications, so sink ordering stays single-source. Safe to call
// from any goroutine; after the connection is done the notification is dropped.
func (c *Conn) Inject(method string, params any) {
	data, err := json.Marshal(params)
	if err != nil {
		c.log.Error("Failed to marshal injected notification", "method", method, "error", err)

		return
	}

	select {
	case c.notifications <- Notification{Method: method, Params: data}:
	case <-c.done:
		c.log.Debug("Dropping injected notification after close", "method", method)
	}
}

// HandleStderrLine forwards one line of backend stderr as a MethodStderr
// notification. Diagnostics are common in normal operation, so they surface
// as observable events rather than failures.
func (c *Conn) HandleStderrLine(line string) {
	c.Inject(MethodStderr, stderrParams{Line: line})
}

// removePending deletes a pending entry, if still present.
func (c *Conn) removePending(key string) {
	c.pendingMu.Lock()
	delete(c.pending, key)
	c.pendingMu.Unlock()
}

// readLoop reads lines from the transport and routes them.
func (c *Conn) readLoop(
	ctx context.Context,
	lines <-chan []byte,
	errs <-chan error,
) {
	defer c.wg.Done()
	// Closing done here settles every pending call with a process-closed
	// error even when the backend exits cleanly without a transport error.
	defer c.closeDone()
	defer c.log.Debug("RPC read loop stopped")

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				c.log.Debug("Line channel closed")
				// The transport closes errs before lines, so a terminal
				// error sent just before shutdown is still collectable.
				if err, ok := <-errs; ok && err != nil {
					c.SetFatalError(err)
				}

				return
			}

			c.handleLine(ctx, line)

		case err, ok := <-errs:
			if !ok {
				c.log.Debug("Error channel closed")

				return
			}

			if err != nil {
				c.log.Debug("Transport error in RPC connection", "error", err)
				c.SetFatalError(err)

				return
			}

		case <-c.done:
			c.log.Debug("Connection stop signal received")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in RPC read loop")

			return
		}
	}
}

// handleLine decodes one input line and routes it.
func (c *Conn) handleLine(ctx context.Context, line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var env envelope

	if err := json.Unmarshal(line, &env); err != nil {
		c.log.Warn("Failed to decode input line", "error", err, "line", string(line))
		c.emitDecodeError(ctx, fmt.Sprintf("invalid JSON: %v", err), line)

		return
	}

	switch {
	case env.hasID():
		c.handleResponse(&env)

	case env.Method != "":
		c.log.Debug("Received notification", "method", env.Method)
		c.emit(ctx, Notification{Method: env.Method, Params: env.Params})

	default:
		c.log.Warn("Input line is neither response nor notification", "line", string(line))
		c.emitDecodeError(ctx, "not a valid response or notification", line)
	}
}

// handleResponse settles the pending call matching the response id.
func (c *Conn) handleResponse(env *envelope) {
	key, ok := idKey(env.ID)
	if !ok {
		c.log.Debug("Dropping response with unusable id", "id", string(env.ID))

		return
	}

	// Find and claim the pending call atomically
	c.pendingMu.Lock()

	pending, exists := c.pending[key]
	if exists {
		delete(c.pending, key)
	}

	c.pendingMu.Unlock()

	if !exists {
		// Duplicate, late, or unsolicited id - drop without side effects
		c.log.Debug("No pending call for response", "id", key)

		return
	}

	res := callResult{result: env.Result}

	if env.Error != nil {
		res.err = &errors.RPCError{
			Code:    env.Error.Code,
			Message: env.Error.Message,
			Data:    env.Error.Data,
		}
	}

	c.log.Debug("Settling call", "id", key, "method", pending.method, "is_error", res.err != nil)

	// Send to the waiting goroutine (we own it now, blocking is safe since channel is buffered)
	pending.response <- res
}

// emit forwards a notification to the consumer channel.
func (c *Conn) emit(ctx context.Context, n Notification) {
	select {
	case c.notifications <- n:
	case <-c.done:
	case <-ctx.Done():
	}
}

// emitDecodeError reports an undecodable line as a MethodError notification.
// Decode failures must never crash the reader or leak to an unrelated call.
func (c *Conn) emitDecodeError(ctx context.Context, reason string, line []byte) {
	params, err := json.Marshal(errorParams{Message: reason, Line: string(line)})
	if err != nil {
		return
	}

	c.emit(ctx, Notification{Method: MethodError, Params: params})
}
