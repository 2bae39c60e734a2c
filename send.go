package napmsg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/napbridge/napmsg-go/internal/client"
)

// loggerWithComponent returns the configured logger with the component field
// set, falling back to a silent logger.
func loggerWithComponent(options *Options, component string) *slog.Logger {
	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	return log.With("component", component)
}

// Send delivers one text message through a freshly spawned backend and shuts
// the backend down again. It is the one-shot counterpart to Client for
// callers who send a single message and exit, such as CLI tools and cron
// jobs.
//
// The target takes the form "group:123456", "user:10001", or a bare id
// (treated as private). The returned payload is the backend's acknowledgement
// and may be nil when the backend acknowledges without a body.
//
// By default, logging is disabled. Use WithLogger to enable logging:
//
//	ack, err := napmsg.Send(ctx, "group:123456", "deploy finished",
//	    napmsg.WithLogger(slog.Default()),
//	    napmsg.WithNapcatURL("ws://127.0.0.1:3001"),
//	)
func Send(ctx context.Context, target, text string, opts ...Option) (json.RawMessage, error) {
	options := applyOptions(opts)
	log := loggerWithComponent(options, "send")

	c := client.New()
	if err := c.Start(ctx, options); err != nil {
		return nil, fmt.Errorf("failed to start client: %w", err)
	}
	defer func() {
		if err := c.Stop(); err != nil {
			log.Warn("Failed to stop client", "error", err)
		}
	}()

	if _, err := c.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize backend: %w", err)
	}

	ack, err := c.SendText(ctx, target, text)
	if err != nil {
		return nil, err
	}

	// Closing input lets the backend drain and exit on its own before Stop's
	// grace period runs out.
	if err := c.EndInput(); err != nil {
		log.Debug("Failed to close backend input", "error", err)
	}

	return ack, nil
}
