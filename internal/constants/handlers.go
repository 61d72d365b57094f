package constants

import "time"

// Handler constants
const (
	// MaxRequestBodyBytes limits the size of JSON request bodies
	MaxRequestBodyBytes = 64 << 10

	// RequestTimeout is the per-request timeout applied by the router
	RequestTimeout = 30 * time.Second

	// ShutdownTimeout is the grace period for in-flight requests on shutdown
	ShutdownTimeout = 30 * time.Second
)
