package napmsg

import "github.com/napbridge/napmsg-go/internal/config"

// Transport defines the interface for backend communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., remote connections).
//
// The default implementation spawns the nap-msg subprocess and exchanges
// newline-delimited JSON over its stdio. Custom transports are injected via
// WithTransport.
type Transport = config.Transport
