package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest is a no-op.
func (n *NoopRecorder) ObserveRequest(method string, status int, duration time.Duration) {}

// IncRejection is a no-op.
func (n *NoopRecorder) IncRejection(kind string) {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited() {}

// IncClientIssued is a no-op.
func (n *NoopRecorder) IncClientIssued() {}

// AddClientsSwept is a no-op.
func (n *NoopRecorder) AddClientsSwept(count int64) {}
