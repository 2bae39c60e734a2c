package config

import (
	"encoding/json"
	"log/slog"
	"time"
)

// DefaultExecName is the backend executable spawned when no explicit path is
// configured.
const DefaultExecName = "nap-msg"

// DefaultRequestTimeout is the fallback applied when neither the call nor the
// client configures a timeout.
const DefaultRequestTimeout = 10 * time.Second

// Options configures the bridge client.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// ExecPath is the explicit path to the nap-msg executable.
	// If empty, the executable is searched in PATH and common install
	// locations.
	ExecPath string

	// NapcatURL is the Napcat endpoint the backend relays to. When set, it is
	// passed both as the --napcat-url argument and as the NAPCAT_URL
	// environment variable, so the backend may consume either form.
	NapcatURL string

	// DefaultTimeout is the per-request timeout applied when a call does not
	// carry its own. Zero means unset, in which case DefaultRequestTimeout
	// applies; a negative value disables request timers entirely.
	DefaultTimeout time.Duration

	// Cwd sets the working directory for the backend process.
	Cwd string

	// Env provides additional environment variables for the backend process,
	// layered over the inherited environment.
	Env map[string]string

	// OnNotification is invoked for every notification delivered by the
	// backend, including the synthetic "stderr" and "error" methods. It runs
	// on the dispatch goroutine, so handlers should return quickly.
	OnNotification func(method string, params json.RawMessage)

	// MaxBufferSize sets the maximum bytes for one stdout line.
	// If nil, a 1MB default is used.
	MaxBufferSize *int

	// Transport allows injecting a custom transport implementation.
	// If nil, the default process transport is created automatically.
	// This field is not serialized to JSON.
	Transport Transport `json:"-"`
}
