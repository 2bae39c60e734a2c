package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/napbridge/napmsg-go/internal/cli"
	"github.com/napbridge/napmsg-go/internal/config"
	"github.com/napbridge/napmsg-go/internal/errors"
)

const (
	// maxScanTokenSize is the maximum buffer size for reading backend output lines.
	maxScanTokenSize = 1024 * 1024 // 1MB
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (the callback receives all lines),
	// but the buffer stops growing after this limit to prevent unbounded memory usage.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB
	// stderrReportLines is how many trailing stderr lines are attached to a
	// ProcessError. Python tracebacks put the failure at the end, so the tail
	// carries the signal.
	stderrReportLines = 40
	// graceTimeout is how long Close waits for the backend to exit on its own
	// after stdin is closed before killing it.
	graceTimeout = 500 * time.Millisecond
)

// ProcTransport implements Transport by spawning a nap-msg subprocess in rpc mode.
//
// A ProcTransport is single-use: after Close the instance cannot be restarted.
// Callers that need to restart the backend create a fresh transport.
type ProcTransport struct {
	log            *slog.Logger
	options        *config.Options
	execPath       string
	args           []string
	env            []string
	cwd            string
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	stdout         io.ReadCloser
	stderr         io.ReadCloser
	stderrCallback func(string)  // Callback for streaming stderr output
	exited         chan struct{} // Closed once the process has been reaped
	mu             sync.Mutex    // Protects stdin writes and lifecycle flags
	readStarted    bool          // Whether ReadLines has been called
	closing        bool          // Whether Close() has been called (intentional shutdown)
	stdinClosed    bool          // Whether stdin was closed (e.g., due to context cancellation)
}

// Compile-time verification that ProcTransport implements the Transport interface.
var _ config.Transport = (*ProcTransport)(nil)

// NewProcTransport creates a new process transport.
//
// The logger is used for operation tracking and debugging. It will receive
// debug, info, warn, and error messages during transport operations.
//
// onStderrLine, if non-nil, is invoked from the stderr reader goroutine for
// every line the backend writes to stderr.
//
// Executable discovery is deferred to Start(), which searches for the nap-msg
// binary in the following order:
//  1. The explicit path in options.ExecPath (if provided)
//  2. The system PATH
//  3. Common installation directories (~/.local/bin, /usr/local/bin, /usr/bin)
//
// Start() returns ExecNotFoundError if the binary cannot be located.
func NewProcTransport(
	log *slog.Logger,
	options *config.Options,
	onStderrLine func(string),
) *ProcTransport {
	return &ProcTransport{
		log:            log.With("component", "proc_transport"),
		options:        options,
		stderrCallback: onStderrLine,
	}
}

// Start starts the nap-msg subprocess.
//
// This method discovers the nap-msg binary, builds command arguments,
// and spawns the process with the configured environment variables.
// It sets up stdin, stdout, and stderr pipes for communication.
//
// Returns ExecNotFoundError if the binary cannot be located,
// or SpawnError if the process fails to start.
func (t *ProcTransport) Start(ctx context.Context) error {
	t.log.Info("Starting nap-msg subprocess")

	// Discover the backend binary
	discoverer := cli.NewDiscoverer(&cli.Config{
		ExecPath: t.options.ExecPath,
		Logger:   t.log,
	})

	execPath, err := discoverer.Discover()
	if err != nil {
		return fmt.Errorf("discover nap-msg: %w", err)
	}

	t.execPath = execPath

	// Build command arguments
	t.args = cli.BuildArgs(t.options)
	t.log.Debug("Built command arguments", "args", t.args)

	// Build environment
	t.env = cli.BuildEnvironment(t.options)

	// Set working directory
	t.cwd = t.options.Cwd
	if t.cwd == "" {
		t.cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	t.log.Debug("Set working directory", "cwd", t.cwd)

	//nolint:gosec // G204: Subprocess launching with dynamic args is expected here
	cmd := exec.CommandContext(ctx, t.execPath, t.args...)
	cmd.Dir = t.cwd
	cmd.Env = t.env

	// Set up stdin pipe for sending requests
	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.SpawnError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	t.stdin = stdin

	// Set up stdout pipe
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.SpawnError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	t.stdout = stdout

	// Set up stderr pipe for diagnostics
	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.SpawnError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	t.stderr = stderr

	// Start the process
	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start nap-msg process", "error", err)

		return &errors.SpawnError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.cmd = cmd
	t.exited = make(chan struct{})
	t.log.Info("nap-msg subprocess started successfully", "pid", cmd.Process.Pid)

	return nil
}

// ReadLines reads raw output lines from the backend stdout.
//
// This method starts a goroutine that reads line-delimited output from the
// process stdout. Each line is sent to the lines channel as-is, without
// decoding; interpreting the line as JSON-RPC is the caller's job, so that
// malformed frames can be handled without tearing down the transport.
//
// The goroutine exits when:
//   - The backend process terminates
//   - The context is cancelled
//   - An unrecoverable error occurs
//
// The goroutine closes both channels when it exits; both channels closing is
// the process-closed signal. ReadLines may be called at most once per Start.
func (t *ProcTransport) ReadLines(
	ctx context.Context,
) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errs := make(chan error, 1)

	t.mu.Lock()
	t.readStarted = true
	t.mu.Unlock()

	// Start stderr streaming goroutine
	var stderrWg sync.WaitGroup

	var stderrBuffer strings.Builder

	var stderrMu sync.Mutex

	// Always buffer stderr for error reporting (must complete reads before Wait())
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe

	stderrWg.Go(func() {
		// Simple scanner loop - relies on process exit to close pipes and unblock Scan().
		// No nested goroutine needed: when Close() kills the process, the OS closes all
		// pipes, which reliably returns from blocked Read() calls.
		scanner := bufio.NewScanner(t.stderr)
		for scanner.Scan() {
			// Check context between lines for cooperative cancellation
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()

			// Buffer stderr for error reporting (capped at maxStderrBufferSize)
			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			// Invoke callback if set
			if t.stderrCallback != nil {
				t.stderrCallback(line)
			}
		}

		// Log scanner errors (don't fail - process may have exited)
		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(lines)
		defer close(errs)
		defer t.log.Debug("ReadLines goroutine stopped")

		scanner := bufio.NewScanner(t.stdout)
		// Set large buffer for big frames (forward payloads can be sizeable)
		maxLineSize := maxScanTokenSize
		if t.options.MaxBufferSize != nil {
			maxLineSize = *t.options.MaxBufferSize
		}

		buf := make([]byte, maxLineSize)
		scanner.Buffer(buf, maxLineSize)

		lineCount := 0

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				t.log.Debug("Context cancelled during scan", "error", ctx.Err())

				errs <- ctx.Err()

				return
			default:
			}

			// Copy: the scanner reuses its buffer between Scan calls
			line := append([]byte(nil), scanner.Bytes()...)

			lineCount++
			t.log.Debug("Received line from backend", "line_count", lineCount, "bytes", len(line))

			select {
			case lines <- line:
			case <-ctx.Done():
				t.log.Debug("Context cancelled during line send", "error", ctx.Err())

				errs <- ctx.Err()

				return
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Error("Scanner error while reading backend output", "error", err)

			errs <- fmt.Errorf("scanner error: %w", err)
		}

		// Wait for stderr goroutine before process wait
		stderrWg.Wait()

		// Wait for process to exit and capture any errors
		t.log.Debug("Waiting for backend process to exit")

		err := t.cmd.Wait()
		close(t.exited)

		if err != nil {
			// Check if this is an intentional shutdown
			t.mu.Lock()
			isClosing := t.closing
			t.mu.Unlock()

			if isClosing {
				t.log.Debug("Backend process terminated during shutdown")

				return
			}

			// Report the tail of the buffered stderr
			stderrMu.Lock()

			stderrOutput := tailStderr(stderrBuffer.String())

			stderrMu.Unlock()

			exitCode := 0

			if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
				exitCode = exitErr.ExitCode()
			}

			t.log.Error("Backend process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

			errs <- &errors.ProcessError{
				ExitCode: exitCode,
				Stderr:   stderrOutput,
				Err:      err,
			}
		} else {
			t.log.Info("Backend process exited")
		}
	}()

	return lines, errs
}

// WriteLine sends a single frame to the backend stdin.
//
// The data should be a complete JSON-RPC message; a trailing newline is
// appended if missing. This method is safe for concurrent use and respects
// context cancellation even during blocking writes.
//
// If context is cancelled during a blocked write, stdin is closed to unblock
// the goroutine (safe since Go 1.9+). Subsequent calls will return ErrStdinClosed.
func (t *ProcTransport) WriteLine(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return errors.ErrNotStarted
	}

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	// Check context before starting
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Sending frame to backend", "bytes", len(data))

	// Ensure data ends with newline
	// Use explicit copy to avoid mutating caller's backing array if slice has spare capacity
	if len(data) == 0 || data[len(data)-1] != '\n' {
		newData := make([]byte, len(data)+1)
		copy(newData, data)
		newData[len(data)] = '\n'
		data = newData
	}

	// Write in goroutine to respect context cancellation
	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write frame to backend", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		t.log.Debug("Frame sent successfully")

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")
		// Close stdin to unblock the blocked Write (safe since Go 1.9+)
		if t.stdin != nil {
			_ = t.stdin.Close()
			t.stdinClosed = true
		}
		// Wait for goroutine to exit with timeout to prevent leak
		select {
		case <-done:
			// Write goroutine exited cleanly
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// IsReady checks if the transport is ready for communication.
//
// Returns true if the backend process is running and stdin is open.
func (t *ProcTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && t.stdin != nil
}

// EndInput ends the input stream (closes stdin).
//
// This signals to the backend that no more requests will be sent. The backend
// will finish any in-flight work and then exit normally.
func (t *ProcTransport) EndInput() error {
	return t.CloseStdin()
}

// CloseStdin closes the stdin pipe to signal end of input.
func (t *ProcTransport) CloseStdin() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil && !t.stdinClosed {
		t.log.Debug("Closing stdin pipe")

		err := t.stdin.Close()
		t.stdinClosed = true
		t.stdin = nil

		return err
	}

	return nil
}

// Close terminates the backend process.
//
// Stdin is closed first so a well-behaved backend can flush pending replies
// and exit on its own; if it has not exited within the grace period it is
// killed with SIGKILL. It's safe to call Close multiple times or on an
// already-terminated process.
func (t *ProcTransport) Close() error {
	t.mu.Lock()

	if t.closing {
		t.mu.Unlock()

		return nil
	}

	t.closing = true

	if t.stdin != nil && !t.stdinClosed {
		t.log.Debug("Closing stdin pipe")

		_ = t.stdin.Close()
	}

	t.stdinClosed = true
	t.stdin = nil

	cmd := t.cmd
	exited := t.exited
	readStarted := t.readStarted
	t.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	// The reader goroutine reaps the process; give the backend a chance to
	// exit cleanly before resorting to SIGKILL.
	if readStarted && exited != nil {
		select {
		case <-exited:
			t.log.Debug("Backend process exited within grace period")

			return nil
		case <-time.After(graceTimeout):
			t.log.Debug("Backend process did not exit within grace period")
		}
	}

	t.log.Debug("Killing backend process", "pid", cmd.Process.Pid)

	if err := cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill backend process (pid %d): %w", cmd.Process.Pid, err)
	}

	return nil
}

// tailStderr trims buffered stderr down to the last stderrReportLines lines
// for error reporting. The full stream has already been delivered through the
// stderr callback.
func tailStderr(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return ""
	}

	lines := strings.Split(stderr, "\n")
	if len(lines) <= stderrReportLines {
		return stderr
	}

	omitted := len(lines) - stderrReportLines

	return "... (" + strconv.Itoa(omitted) + " lines omitted)\n" +
		strings.Join(lines[omitted:], "\n")
}
