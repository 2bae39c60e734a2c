// Package rpc implements line-delimited JSON-RPC 2.0 over the backend's
// standard streams.
//
// The rpc package provides a Conn that manages request/response correlation
// for calls sent to the nap-msg backend, and routes backend-initiated
// notifications to a single consumer channel.
//
// The Conn handles:
//   - Sending requests with unique, monotonically increasing ids
//   - Receiving and correlating response lines by stringified id
//   - Per-call timeout enforcement
//   - Forwarding notifications, including synthetic stderr and decode-error
//     events, to the notification channel
//
// Example usage:
//
//	transport := subprocess.NewProcTransport(log, options, nil)
//	transport.Start(ctx)
//
//	conn := rpc.NewConn(log, transport, seq)
//	conn.Start(ctx)
//
//	// Send a request with a 5 second timeout
//	result, err := conn.Call(ctx, "chats.list", nil, 5*time.Second)
package rpc
