package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Requests               uint64
	RequestDurationTotalNs int64
	Rejections             map[string]uint64
	RateLimited            uint64
	ClientsIssued          uint64
	ClientsSwept           uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	requests               uint64
	requestDurationTotalNs int64
	rateLimited            uint64
	clientsIssued          uint64
	clientsSwept           uint64

	mu         sync.Mutex
	rejections map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{rejections: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	rejections := make(map[string]uint64, len(m.rejections))
	for k, v := range m.rejections {
		rejections[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		Requests:               atomic.LoadUint64(&m.requests),
		RequestDurationTotalNs: atomic.LoadInt64(&m.requestDurationTotalNs),
		Rejections:             rejections,
		RateLimited:            atomic.LoadUint64(&m.rateLimited),
		ClientsIssued:          atomic.LoadUint64(&m.clientsIssued),
		ClientsSwept:           atomic.LoadUint64(&m.clientsSwept),
	}
}

// ObserveRequest records one served request.
func (m *InMemoryRecorder) ObserveRequest(method string, status int, duration time.Duration) {
	atomic.AddUint64(&m.requests, 1)
	atomic.AddInt64(&m.requestDurationTotalNs, duration.Nanoseconds())
}

// IncRejection increments the rejection counter for kind.
func (m *InMemoryRecorder) IncRejection(kind string) {
	m.mu.Lock()
	m.rejections[kind]++
	m.mu.Unlock()
}

// IncRateLimited increments the rate limited counter.
func (m *InMemoryRecorder) IncRateLimited() {
	atomic.AddUint64(&m.rateLimited, 1)
}

// IncClientIssued increments the issued client counter.
func (m *InMemoryRecorder) IncClientIssued() {
	atomic.AddUint64(&m.clientsIssued, 1)
}

// AddClientsSwept adds n to the swept client counter.
func (m *InMemoryRecorder) AddClientsSwept(n int64) {
	if n > 0 {
		atomic.AddUint64(&m.clientsSwept, uint64(n))
	}
}
