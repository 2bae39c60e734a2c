package napmsg

import (
	"encoding/json"
	"iter"

	"github.com/napbridge/napmsg-go/internal/rpc"
)

// Notification is one backend-initiated message: a method name plus opaque
// params. Inbound chat messages arrive as MethodMessageReceive, backend
// diagnostics as MethodStderr, and undecodable backend lines as MethodError.
type Notification = rpc.Notification

// FilterMethod narrows a notification stream to a single method. Errors pass
// through unfiltered so stream termination stays observable:
//
//	for n, err := range napmsg.FilterMethod(client.Notifications(ctx), napmsg.MethodStderr) {
//	    if err != nil {
//	        break
//	    }
//	    // Process diagnostic line...
//	}
func FilterMethod(stream iter.Seq2[Notification, error], method string) iter.Seq2[Notification, error] {
	return func(yield func(Notification, error) bool) {
		for n, err := range stream {
			if err != nil {
				if !yield(Notification{}, err) {
					return
				}

				continue
			}

			if n.Method != method {
				continue
			}

			if !yield(n, nil) {
				return
			}
		}
	}
}

// ChannelHandler returns a notification handler paired with the channel it
// feeds, for callers who prefer select loops over iterators:
//
//	handler, inbox := napmsg.ChannelHandler(64)
//	err := client.Start(ctx, napmsg.WithNotificationHandler(handler))
//
// The handler never blocks the dispatch goroutine: when the channel is full,
// the notification is dropped. The channel is not closed when the backend
// exits; watch WaitClosed for lifecycle.
func ChannelHandler(buffer int) (func(method string, params json.RawMessage), <-chan Notification) {
	ch := make(chan Notification, buffer)

	handler := func(method string, params json.RawMessage) {
		select {
		case ch <- Notification{Method: method, Params: params}:
		default:
		}
	}

	return handler, ch
}

// StderrLine extracts the diagnostic line from a MethodStderr notification.
// The second return is false when the notification is not a stderr
// notification or its params do not carry a line.
func StderrLine(n Notification) (string, bool) {
	if n.Method != MethodStderr {
		return "", false
	}

	var params struct {
		Line string `json:"line"`
	}
	if err := json.Unmarshal(n.Params, &params); err != nil || params.Line == "" {
		return "", false
	}

	return params.Line, true
}
