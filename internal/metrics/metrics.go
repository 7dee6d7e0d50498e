// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// HTTP metrics
	ObserveRequest(method string, status int, duration time.Duration)

	// Pipeline metrics
	IncRejection(kind string)
	IncRateLimited()

	// Client lifecycle metrics
	IncClientIssued()
	AddClientsSwept(n int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
