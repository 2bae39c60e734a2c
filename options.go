package napmsg

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Option configures Options using the functional options pattern.
// This is the primary option type for configuring clients.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithExecPath sets the explicit path to the nap-msg executable.
// If not set, the executable is searched in PATH and common install
// locations.
func WithExecPath(path string) Option {
	return func(o *Options) {
		o.ExecPath = path
	}
}

// WithNapcatURL sets the Napcat endpoint the backend relays to. The address
// is passed both as the --napcat-url argument and as the NAPCAT_URL
// environment variable.
func WithNapcatURL(url string) Option {
	return func(o *Options) {
		o.NapcatURL = url
	}
}

// WithCwd sets the working directory for the backend process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the backend process,
// layered over the inherited environment.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// ===== Requests =====

// WithDefaultTimeout sets the per-request timeout applied when a call does
// not carry its own. A negative value disables request timers entirely.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.DefaultTimeout = timeout
	}
}

// ===== Notifications =====

// WithNotificationHandler sets a callback invoked for every notification
// delivered by the backend, including the synthetic "stderr" and "error"
// methods. When a handler is set it is the sole consumer: the Notifications
// and Events iterators yield nothing. The handler runs on the dispatch
// goroutine, so it should return quickly.
func WithNotificationHandler(handler func(method string, params json.RawMessage)) Option {
	return func(o *Options) {
		o.OnNotification = handler
	}
}

// ===== Transport =====

// WithMaxBufferSize sets the maximum bytes for one line of backend output.
// If not set, a 1MB default is used.
func WithMaxBufferSize(size int) Option {
	return func(o *Options) {
		o.MaxBufferSize = &size
	}
}

// WithTransport injects a custom transport implementation, bypassing the
// default process transport. Mostly useful in tests.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}
