package napmsg

import (
	"context"
	"fmt"
	"iter"

	"github.com/napbridge/napmsg-go/internal/client"
)

// Watch spawns a backend, subscribes to the inbound message stream, and
// yields parsed events until the backend closes or ctx is cancelled. The
// backend is shut down when the caller stops iterating. sub may be nil to
// subscribe without filters.
//
// Setup errors are yielded inline with events, so callers handle all error
// conditions in one place:
//
//	for event, err := range napmsg.Watch(ctx, nil,
//	    napmsg.WithLogger(slog.Default()),
//	) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("[%s] %s: %s\n", event.ChatID, event.SenderID, event.Text)
//	}
func Watch(ctx context.Context, sub *SubscribeOptions, opts ...Option) iter.Seq2[*MessageEvent, error] {
	return func(yield func(*MessageEvent, error) bool) {
		options := applyOptions(opts)
		log := loggerWithComponent(options, "watch")

		c := client.New()
		if err := c.Start(ctx, options); err != nil {
			yield(nil, fmt.Errorf("failed to start client: %w", err))

			return
		}
		defer func() {
			if err := c.Stop(); err != nil {
				log.Warn("Failed to stop client", "error", err)
			}
		}()

		if _, err := c.Initialize(ctx); err != nil {
			yield(nil, fmt.Errorf("failed to initialize backend: %w", err))

			return
		}

		if err := c.Subscribe(ctx, sub); err != nil {
			yield(nil, fmt.Errorf("failed to subscribe: %w", err))

			return
		}

		log.Info("Watching for messages")

		for event, err := range c.Events(ctx) {
			if !yield(event, err) {
				return
			}
		}
	}
}
