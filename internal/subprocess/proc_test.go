package subprocess

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/napbridge/napmsg-go/internal/config"
	"github.com/napbridge/napmsg-go/internal/errors"
	"github.com/stretchr/testify/require"
)

// TestStart_WithNonexistentExec tests that Start fails when the backend binary is missing.
func TestStart_WithNonexistentExec(t *testing.T) {
	log := slog.Default()

	transport := NewProcTransport(log, &config.Options{
		ExecPath: "/nonexistent/path/to/nap-msg",
	}, nil)

	err := transport.Start(context.Background())

	require.Error(t, err)

	var notFound *errors.ExecNotFoundError
	require.ErrorAs(t, err, &notFound)
}

// TestConcurrentWrites_AreSerialized tests that concurrent writes are serialized via mutex.
func TestConcurrentWrites_AreSerialized(t *testing.T) {
	log := slog.Default()

	// Create a transport with a mock stdin using a pipe
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	transport := &ProcTransport{
		log:     log,
		options: &config.Options{},
		stdin:   writer,
	}

	ctx := context.Background()

	// Start a goroutine to drain the reader so writes don't block
	go func() {
		buf := make([]byte, 1024)
		for {
			_, err := reader.Read(buf)
			if err != nil {
				return
			}
		}
	}()

	// Test concurrent writes
	const numWriters = 10

	done := make(chan struct{}, numWriters)

	for i := range numWriters {
		go func(id int) {
			defer func() { done <- struct{}{} }()

			msg := []byte(`{"jsonrpc":"2.0","id":` + strconv.Itoa(id) + `,"method":"chats.list"}`)
			_ = transport.WriteLine(ctx, msg)
		}(i)
	}

	// Wait for all writers to complete
	for range numWriters {
		<-done
	}

	// If we get here without deadlock or panic, the mutex is working
	require.NotNil(t, transport)
}

// TestStart_Close tests error paths and cleanup behavior of the transport.
// Since we can't mock the subprocess easily in Go, full lifecycle testing
// lives in the integration tests.
func TestStart_Close(t *testing.T) {
	log := slog.Default()

	t.Run("close before start", func(t *testing.T) {
		transport := &ProcTransport{
			log:     log,
			options: &config.Options{},
		}

		// Close on unstarted transport should not panic
		err := transport.Close()
		require.NoError(t, err)
	})

	t.Run("write before start", func(t *testing.T) {
		transport := &ProcTransport{
			log:     log,
			options: &config.Options{},
		}

		ctx := context.Background()
		err := transport.WriteLine(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))

		require.Error(t, err)
		require.ErrorIs(t, err, errors.ErrNotStarted)
	})

	t.Run("write with cancelled context", func(t *testing.T) {
		transport := &ProcTransport{
			log:     log,
			options: &config.Options{},
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// Even with stdin set, cancelled context should return error
		reader, writer := io.Pipe()
		defer reader.Close()
		defer writer.Close()

		transport.stdin = writer

		err := transport.WriteLine(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
		require.Error(t, err)
		require.ErrorIs(t, err, context.Canceled)
	})
}

// TestStderrCallback_Invoked tests stderr callback streaming.
func TestStderrCallback_Invoked(t *testing.T) {
	log := slog.Default()

	var capturedLines []string

	callback := func(line string) {
		capturedLines = append(capturedLines, line)
	}

	transport := NewProcTransport(log, &config.Options{}, callback)

	// Verify callback is set
	require.NotNil(t, transport.stderrCallback)

	// Simulate callback invocation
	transport.stderrCallback("WARNING:nap_msg.rpc:reconnecting")
	transport.stderrCallback("Traceback (most recent call last):")

	require.Len(t, capturedLines, 2)
	require.Equal(t, "WARNING:nap_msg.rpc:reconnecting", capturedLines[0])
	require.Equal(t, "Traceback (most recent call last):", capturedLines[1])
}

// TestWriteLine_CancellationDuringWrite tests that WriteLine respects context
// cancellation even when blocked on a write operation.
func TestWriteLine_CancellationDuringWrite(t *testing.T) {
	log := slog.Default()

	// Create a pipe but don't read from it - writes will block when buffer fills
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	transport := &ProcTransport{
		log:     log,
		options: &config.Options{},
		stdin:   writer,
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Start a write with a large payload that will block
	errCh := make(chan error, 1)

	go func() {
		// Large payload to fill pipe buffer and block
		largeData := make([]byte, 128*1024) // 128KB > typical 64KB pipe buffer
		errCh <- transport.WriteLine(ctx, largeData)
	}()

	// Give the write time to start and block
	time.Sleep(10 * time.Millisecond)

	// Cancel context
	cancel()

	// Should return quickly with context error
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(1 * time.Second):
		t.Fatal("WriteLine did not respect context cancellation")
	}
}

// TestStderrBuffer_SizeLimit tests that the stderr buffer stops growing after maxStderrBufferSize.
func TestStderrBuffer_SizeLimit(t *testing.T) {
	var stderrBuffer strings.Builder

	var stderrMu sync.Mutex

	// Simulate buffering loop with lines exceeding limit
	lineSize := 1000
	line := strings.Repeat("x", lineSize)
	iterations := (maxStderrBufferSize / lineSize) + 100 // Exceed limit

	for range iterations {
		stderrMu.Lock()

		if stderrBuffer.Len() < maxStderrBufferSize {
			if stderrBuffer.Len() > 0 {
				stderrBuffer.WriteString("\n")
			}

			stderrBuffer.WriteString(line)
		}

		stderrMu.Unlock()
	}

	// Buffer should not exceed maxStderrBufferSize (plus one line that may have been added
	// when the buffer was just under the limit)
	require.LessOrEqual(t, stderrBuffer.Len(), maxStderrBufferSize+lineSize)
	require.Greater(t, stderrBuffer.Len(), 0)
}

// TestTailStderr tests trimming buffered stderr to the reporting tail.
func TestTailStderr(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		require.Empty(t, tailStderr(""))
		require.Empty(t, tailStderr("\n\n"))
	})

	t.Run("short output kept verbatim", func(t *testing.T) {
		out := tailStderr("line one\nline two")
		require.Equal(t, "line one\nline two", out)
	})

	t.Run("long output trimmed to tail", func(t *testing.T) {
		var sb strings.Builder
		for i := range 100 {
			sb.WriteString("line ")
			sb.WriteString(strconv.Itoa(i))
			sb.WriteString("\n")
		}

		out := tailStderr(sb.String())

		require.True(t, strings.HasPrefix(out, "... (60 lines omitted)\n"))
		require.Contains(t, out, "line 99")
		require.NotContains(t, out, "line 59\n")
	})
}

// TestWriteLine_ConcurrentWithClose tests concurrent WriteLine and pipe close.
// This verifies that concurrent writes don't cause panics or deadlocks when
// the underlying pipe is closed.
func TestWriteLine_ConcurrentWithClose(t *testing.T) {
	log := slog.Default()

	reader, writer := io.Pipe()
	defer reader.Close()

	transport := &ProcTransport{
		log:     log,
		options: &config.Options{},
		stdin:   writer,
	}

	ctx := context.Background()

	// Start goroutine to drain reader
	go func() {
		buf := make([]byte, 1024)
		for {
			_, err := reader.Read(buf)
			if err != nil {
				return
			}
		}
	}()

	// Start multiple senders
	const senders = 10

	var wg sync.WaitGroup

	wg.Add(senders)

	for range senders {
		go func() {
			defer wg.Done()

			for range 10 {
				_ = transport.WriteLine(ctx, []byte(`{"jsonrpc":"2.0","method":"ping"}`))

				time.Sleep(time.Millisecond)
			}
		}()
	}

	// Close writer mid-stream
	time.Sleep(10 * time.Millisecond)
	writer.Close()

	// Wait for senders to complete
	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Success - no panic
	case <-time.After(2 * time.Second):
		t.Fatal("Senders did not complete")
	}
}

// TestClose_SafeWithNilCmd tests that Close() is safe when cmd is nil.
func TestClose_SafeWithNilCmd(t *testing.T) {
	log := slog.Default()

	transport := &ProcTransport{
		log:     log,
		options: &config.Options{},
		// cmd is nil - simulates partially initialized transport
	}

	// Should not panic
	err := transport.Close()
	require.NoError(t, err)

	// Multiple closes should be safe
	err = transport.Close()
	require.NoError(t, err)
}

// TestClose_SetsClosingFlag tests that Close() sets the closing flag.
func TestClose_SetsClosingFlag(t *testing.T) {
	log := slog.Default()

	transport := &ProcTransport{
		log:     log,
		options: &config.Options{},
	}

	// Initially not closing
	require.False(t, transport.closing)

	// Close sets the flag
	_ = transport.Close()
	require.True(t, transport.closing)
}

// TestWriteLine_NoGoroutineLeak tests that WriteLine does not leak goroutines
// when context is cancelled during a blocked write.
func TestWriteLine_NoGoroutineLeak(t *testing.T) {
	log := slog.Default()
	reader, writer := io.Pipe()

	defer reader.Close()

	transport := &ProcTransport{
		log:     log,
		options: &config.Options{},
		stdin:   writer,
	}

	ctx, cancel := context.WithCancel(context.Background())
	before := runtime.NumGoroutine()

	errCh := make(chan error, 1)

	go func() {
		largeData := make([]byte, 128*1024)
		errCh <- transport.WriteLine(ctx, largeData)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(1 * time.Second):
		t.Fatal("WriteLine did not return")
	}

	// Allow goroutines to settle
	time.Sleep(50 * time.Millisecond)

	after := runtime.NumGoroutine()

	// Should not have leaked goroutines (allow +1 for GC fluctuation)
	require.LessOrEqual(t, after, before+1, "goroutine leak detected")
}

// hungWriter is a mock io.WriteCloser where Write blocks until explicitly unblocked,
// and Close does NOT unblock Write (simulating a pathological I/O scenario).
type hungWriter struct {
	writeCalled  chan struct{}
	unblockWrite chan struct{}
	closed       bool
	mu           sync.Mutex
}

func newHungWriter() *hungWriter {
	return &hungWriter{
		writeCalled:  make(chan struct{}),
		unblockWrite: make(chan struct{}),
	}
}

func (h *hungWriter) Write(p []byte) (n int, err error) {
	// Signal that Write was called
	select {
	case h.writeCalled <- struct{}{}:
	default:
	}

	// Block until explicitly unblocked
	<-h.unblockWrite

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, io.ErrClosedPipe
	}

	return len(p), nil
}

func (h *hungWriter) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	// NOTE: Intentionally does NOT unblock Write.

	return nil
}

// TestWriteLine_HungWriteAfterClose tests that WriteLine returns promptly
// even when Write() doesn't return after Close() is called. The cancellation
// path must not wait on the write goroutine without a timeout.
func TestWriteLine_HungWriteAfterClose(t *testing.T) {
	log := slog.Default()

	hw := newHungWriter()

	transport := &ProcTransport{
		log:     log,
		options: &config.Options{},
		stdin:   hw,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)

	go func() {
		errCh <- transport.WriteLine(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	}()

	// Wait for Write to be called
	select {
	case <-hw.writeCalled:
		// Good - Write is now blocked
	case <-time.After(1 * time.Second):
		t.Fatal("Write was never called")
	}

	// Context times out after 100ms, triggering the cancel path. hungWriter's
	// Close() doesn't unblock Write(), so WriteLine must bail out on its own.
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(3 * time.Second):
		t.Fatal("WriteLine blocked indefinitely waiting for hung Write goroutine")
	}

	// Clean up: unblock the Write goroutine so it can exit
	close(hw.unblockWrite)
}

// TestWriteLine_ReturnsStdinClosedAfterCancellation tests that subsequent calls
// to WriteLine return ErrStdinClosed after context cancellation.
func TestWriteLine_ReturnsStdinClosedAfterCancellation(t *testing.T) {
	log := slog.Default()
	reader, writer := io.Pipe()

	defer reader.Close()

	transport := &ProcTransport{
		log:     log,
		options: &config.Options{},
		stdin:   writer,
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Start a write with large payload that will block
	errCh := make(chan error, 1)

	go func() {
		largeData := make([]byte, 128*1024)
		errCh <- transport.WriteLine(ctx, largeData)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	// Wait for first call to return
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(1 * time.Second):
		t.Fatal("WriteLine did not return")
	}

	// Subsequent calls should return ErrStdinClosed
	err := transport.WriteLine(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"chats.list"}`))
	require.ErrorIs(t, err, errors.ErrStdinClosed)
}

// TestWriteLine_SetsStdinClosedFlag tests that WriteLine sets the stdinClosed
// flag when context is cancelled during a blocked write.
func TestWriteLine_SetsStdinClosedFlag(t *testing.T) {
	log := slog.Default()
	reader, writer := io.Pipe()

	defer reader.Close()

	transport := &ProcTransport{
		log:     log,
		options: &config.Options{},
		stdin:   writer,
	}

	require.False(t, transport.stdinClosed, "stdinClosed should be false initially")

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		largeData := make([]byte, 128*1024)
		errCh <- transport.WriteLine(ctx, largeData)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	<-errCh

	require.True(t, transport.stdinClosed, "stdinClosed should be true after cancellation")
}

// TestCloseStdin_RespectsStdinClosedFlag tests that CloseStdin respects the stdinClosed flag.
func TestCloseStdin_RespectsStdinClosedFlag(t *testing.T) {
	log := slog.Default()

	t.Run("sets stdinClosed when closing", func(t *testing.T) {
		reader, writer := io.Pipe()
		defer reader.Close()

		transport := &ProcTransport{
			log:     log,
			options: &config.Options{},
			stdin:   writer,
		}

		require.False(t, transport.stdinClosed)

		err := transport.CloseStdin()
		require.NoError(t, err)

		require.True(t, transport.stdinClosed)
		require.Nil(t, transport.stdin)
	})

	t.Run("no-op if already closed", func(t *testing.T) {
		transport := &ProcTransport{
			log:         log,
			options:     &config.Options{},
			stdinClosed: true,
		}

		err := transport.CloseStdin()
		require.NoError(t, err)
	})
}

// TestClose_SetsStdinClosedFlag tests that Close sets the stdinClosed flag.
func TestClose_SetsStdinClosedFlag(t *testing.T) {
	log := slog.Default()

	transport := &ProcTransport{
		log:     log,
		options: &config.Options{},
	}

	require.False(t, transport.stdinClosed)

	_ = transport.Close()

	require.True(t, transport.stdinClosed)
}

// TestWriteLine_SliceMutation tests that WriteLine does not mutate the caller's
// slice when adding a newline. Appending in place would scribble on the
// caller's backing array whenever the slice has spare capacity.
func TestWriteLine_SliceMutation(t *testing.T) {
	log := slog.Default()

	// Create a slice with spare capacity: len=10, cap=20
	original := make([]byte, 10, 20)
	copy(original, []byte(`{"test":1}`))

	// Save a reference to check mutation
	extended := original[:cap(original)]
	initialByte11 := extended[10] // Should be 0 (zero value)

	// Setup transport with pipe
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	transport := &ProcTransport{
		log:     log,
		options: &config.Options{},
		stdin:   writer,
	}

	// Drain reader in background so writes don't block
	go func() {
		buf := make([]byte, 1024)

		for {
			if _, err := reader.Read(buf); err != nil {
				return
			}
		}
	}()

	err := transport.WriteLine(context.Background(), original)
	require.NoError(t, err)

	extended = original[:cap(original)]

	require.Equal(t, initialByte11, extended[10],
		"WriteLine mutated the caller's slice backing array")
}
