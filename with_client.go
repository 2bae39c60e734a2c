package napmsg

import (
	"context"
	"fmt"
)

// WithClient manages client lifecycle with automatic cleanup.
//
// This helper creates a client, starts it with the provided options, runs the
// initialize handshake, executes the callback, and ensures proper cleanup via
// Stop() when done.
//
// The callback receives a started and initialized Client that is ready for
// use. If the callback returns an error, it is returned to the caller.
// If Stop() fails, a warning is logged but does not override the callback's
// error.
//
// Example usage:
//
//	err := napmsg.WithClient(ctx, func(c napmsg.Client) error {
//	    if _, err := c.SendText(ctx, "group:123456", "hello"); err != nil {
//	        return err
//	    }
//	    chats, err := c.ListChats(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    // process chats...
//	    return nil
//	},
//	    napmsg.WithLogger(log),
//	    napmsg.WithNapcatURL("ws://127.0.0.1:3001"),
//	)
func WithClient(ctx context.Context, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	client := NewClient()
	if err := client.Start(ctx, opts...); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	defer func() {
		if stopErr := client.Stop(); stopErr != nil {
			log.Warn("Failed to stop client", "error", stopErr)
		}
	}()

	if _, err := client.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize backend: %w", err)
	}

	return fn(client)
}
