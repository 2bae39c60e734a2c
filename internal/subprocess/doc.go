// Package subprocess provides the process-based transport for the nap-msg backend.
//
// This package implements the Transport interface by spawning nap-msg in rpc
// mode as a child process and communicating over stdin/stdout. It handles
// process lifecycle management, line buffering, and stderr capture.
package subprocess
