package napmsg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// errBackendExited marks a backend that closed its side cleanly while the
// manager still wanted it running.
var errBackendExited = errors.New("backend exited")

// ManagerConfig controls the restart policy of a Manager.
type ManagerConfig struct {
	// MaxRestarts is the maximum number of consecutive restart attempts
	// before giving up. Zero selects the default; a negative value removes
	// the limit.
	MaxRestarts int

	// InitialBackoff is the delay before the first restart attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff growth.
	MaxBackoff time.Duration

	// BackoffMultiplier is applied to the backoff after each failure.
	BackoffMultiplier float64

	// ResetWindow is the uptime after which the restart count resets, so a
	// backend that ran healthily for a while gets a fresh failure budget.
	ResetWindow time.Duration

	// OnRestart, if set, is called before each restart attempt with the
	// attempt number (starting at 1) and the error that brought the backend
	// down.
	OnRestart func(attempt int, cause error)

	// OnStarted, if set, runs after every successful start, including the
	// first. Use it to redo per-process state such as Initialize and
	// Subscribe; its error counts as a failed attempt.
	OnStarted func(ctx context.Context, client Client) error
}

// DefaultManagerConfig returns the default restart policy: up to 5
// consecutive restarts, backoff growing from 1s to 60s, counters reset after
// 5 minutes of uptime.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxRestarts:       5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
		ResetWindow:       5 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultManagerConfig.
func (c ManagerConfig) withDefaults() ManagerConfig {
	defaults := DefaultManagerConfig()

	if c.MaxRestarts == 0 {
		c.MaxRestarts = defaults.MaxRestarts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}
	if c.ResetWindow <= 0 {
		c.ResetWindow = defaults.ResetWindow
	}

	return c
}

// Manager keeps a bridge client running: it starts the backend, waits for it
// to close, and restarts it with exponential backoff until the context is
// cancelled or too many consecutive attempts fail.
//
// The manager is built on the public client contract (Start, WaitClosed,
// Stop), so the owned client remains fully usable from other goroutines
// while Run supervises it. Correlation ids survive restarts, so calls racing
// a restart fail cleanly instead of matching a stale response.
//
// Example usage:
//
//	manager := napmsg.NewManager(napmsg.ManagerConfig{
//	    OnStarted: func(ctx context.Context, c napmsg.Client) error {
//	        if _, err := c.Initialize(ctx); err != nil {
//	            return err
//	        }
//	        return c.Subscribe(ctx, nil)
//	    },
//	}, napmsg.WithLogger(slog.Default()))
//
//	go func() {
//	    if err := manager.Run(ctx); err != nil {
//	        log.Fatal(err)
//	    }
//	}()
type Manager struct {
	config ManagerConfig
	opts   []Option
	client Client
	log    *slog.Logger
}

// NewManager creates a manager owning a fresh client. The options are
// reapplied on every restart.
func NewManager(config ManagerConfig, opts ...Option) *Manager {
	options := applyOptions(opts)

	return &Manager{
		config: config.withDefaults(),
		opts:   opts,
		client: NewClient(),
		log:    loggerWithComponent(options, "manager"),
	}
}

// Client returns the managed client. Valid for calls whenever Run has it
// started; calls during a restart window fail with ErrNotStarted.
func (m *Manager) Client() Client {
	return m.client
}

// Run supervises the backend until ctx is cancelled or the restart budget is
// exhausted. It returns ctx.Err() on cancellation, or the last failure
// wrapped when MaxRestarts consecutive attempts have failed.
func (m *Manager) Run(ctx context.Context) error {
	attempt := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		started := time.Now()
		cause := m.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if cause == nil {
			cause = errBackendExited
		}

		// A long healthy run earns back the full failure budget.
		if time.Since(started) > m.config.ResetWindow {
			attempt = 0
		}
		attempt++

		if m.config.MaxRestarts >= 0 && attempt > m.config.MaxRestarts {
			m.log.Error("Backend keeps failing, giving up",
				"attempts", attempt-1, "error", cause)

			return fmt.Errorf("backend failed after %d restarts: %w", m.config.MaxRestarts, cause)
		}

		delay := calculateBackoff(
			attempt,
			m.config.InitialBackoff,
			m.config.MaxBackoff,
			m.config.BackoffMultiplier,
		)

		m.log.Warn("Backend closed, restarting",
			"attempt", attempt, "backoff", delay, "error", cause)

		if m.config.OnRestart != nil {
			m.config.OnRestart(attempt, cause)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// runOnce takes the backend through one full lifetime: start, per-process
// setup, wait for close, stop.
func (m *Manager) runOnce(ctx context.Context) error {
	if err := m.client.Start(ctx, m.opts...); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	if m.config.OnStarted != nil {
		if err := m.config.OnStarted(ctx, m.client); err != nil {
			if stopErr := m.client.Stop(); stopErr != nil {
				m.log.Warn("Failed to stop client", "error", stopErr)
			}

			return fmt.Errorf("session setup failed: %w", err)
		}
	}

	err := m.client.WaitClosed(ctx)

	// Stop reaps the process; its error only matters when the wait itself
	// saw a clean close.
	if stopErr := m.client.Stop(); stopErr != nil {
		if err == nil {
			err = stopErr
		} else {
			m.log.Warn("Failed to stop client", "error", stopErr)
		}
	}

	return err
}

// calculateBackoff returns the delay for a given attempt. attempt<=1 returns
// initial; later attempts grow exponentially, capped at max.
func calculateBackoff(attempt int, initial, max time.Duration, multiplier float64) time.Duration {
	if attempt <= 1 {
		return initial
	}

	delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if delay > float64(max) {
		return max
	}

	return time.Duration(delay)
}
