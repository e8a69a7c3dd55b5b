// Package timeouts defines shared timeout constants so durations stay
// consistent between the edge server and the install pipeline.
package timeouts

import "time"

// OriginFetch caps a single origin request, both during install and on a
// cache-miss passthrough.
const OriginFetch = 30 * time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
