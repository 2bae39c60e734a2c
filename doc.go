// Package napmsg provides a Go client for the nap-msg messaging bridge.
//
// The package spawns the nap-msg backend as a child process and talks
// newline-delimited JSON-RPC 2.0 over its stdin/stdout. It supports one-shot
// sends, a long-lived interactive client, a subscription stream of inbound
// messages, and a supervised mode that restarts a crashed backend.
//
// # One-Shot Sending
//
// For tools that send a single message and exit, use the Send function:
//
//	ctx := context.Background()
//	ack, err := napmsg.Send(ctx, "group:123456", "deploy finished",
//	    napmsg.WithNapcatURL("ws://127.0.0.1:3001"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("sent: %s\n", ack)
//
// # Watching Messages
//
// Watch subscribes to the inbound stream and yields parsed events:
//
//	for event, err := range napmsg.Watch(ctx, nil) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("[%s] %s: %s\n", event.ChatID, event.SenderID, event.Text)
//	}
//
// # Interactive Sessions
//
// For long-lived use, create a client directly or use the WithClient helper:
//
//	// Using WithClient for automatic lifecycle management
//	err := napmsg.WithClient(ctx, func(c napmsg.Client) error {
//	    if _, err := c.SendText(ctx, "user:10001", "hello"); err != nil {
//	        return err
//	    }
//	    chats, err := c.ListChats(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    // process chats...
//	    return nil
//	},
//	    napmsg.WithLogger(slog.Default()),
//	)
//
//	// Or using NewClient directly for more control
//	client := napmsg.NewClient()
//	defer client.Stop()
//
//	err := client.Start(ctx,
//	    napmsg.WithLogger(slog.Default()),
//	    napmsg.WithNapcatURL("ws://127.0.0.1:3001"),
//	)
//
// A stopped client can be started again; request ids keep increasing across
// restarts. For automatic restarts with backoff, see Manager.
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	ack, err := napmsg.Send(ctx, "user:10001", "hello",
//	    napmsg.WithLogger(logger),
//	)
//
// Without a logger the package is silent. Backend diagnostics are never
// printed directly; each stderr line is delivered as a "stderr" notification
// on the notification stream.
//
// # Error Handling
//
// The package provides typed errors for different failure scenarios:
//
//	ack, err := napmsg.Send(ctx, target, text)
//	if err != nil {
//	    var execErr *napmsg.ExecNotFoundError
//	    if errors.As(err, &execErr) {
//	        log.Fatalf("nap-msg not installed, searched: %v", execErr.SearchedPaths)
//	    }
//	    var rpcErr *napmsg.RPCError
//	    if errors.As(err, &rpcErr) {
//	        log.Fatalf("backend rejected the request: %v", rpcErr)
//	    }
//	    log.Fatal(err)
//	}
//
// Timeouts surface as ErrRequestTimeout, and calls cut off by a backend crash
// as ErrProcessClosed; both are matched with errors.Is.
//
// # Requirements
//
// The nap-msg executable must be installed and reachable through PATH or one
// of the common install locations. You can specify an explicit path using the
// WithExecPath option.
package napmsg
