// Package client implements the supervising Client for the nap-msg backend.
//
// The client package provides a stateful interface to a nap-msg subprocess
// that survives restarts. Unlike the one-shot Send() function, Client
// enables:
//   - Long-lived request/response exchange over one backend process
//   - Subscription to the incoming message stream
//   - Restart after a crash without resetting correlation ids
//   - Raw requests for backend methods without typed wrappers
//
// The Client uses the rpc package for request correlation and manages its
// own goroutine for notification dispatch.
package client
