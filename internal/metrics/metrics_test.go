package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	m := NewInMemory()
	m.ObserveRequest(http.MethodGet, 200, 2*time.Millisecond)
	m.ObserveRequest(http.MethodPost, 201, 3*time.Millisecond)
	m.IncRejection("authentication")
	m.IncRejection("authentication")
	m.IncRejection("rate_limit")
	m.IncRateLimited()
	m.IncClientIssued()
	m.AddClientsSwept(4)
	m.AddClientsSwept(0)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Requests)
	assert.Equal(t, (5 * time.Millisecond).Nanoseconds(), snap.RequestDurationTotalNs)
	assert.Equal(t, map[string]uint64{"authentication": 2, "rate_limit": 1}, snap.Rejections)
	assert.Equal(t, uint64(1), snap.RateLimited)
	assert.Equal(t, uint64(1), snap.ClientsIssued)
	assert.Equal(t, uint64(4), snap.ClientsSwept)
}

func TestPrometheusRecorder_Counters(t *testing.T) {
	p := NewPrometheus()
	p.ObserveRequest(http.MethodGet, 429, time.Millisecond)
	p.IncRejection("rate_limit")
	p.IncRateLimited()
	p.IncClientIssued()
	p.IncClientIssued()
	p.AddClientsSwept(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.requestsTotal.WithLabelValues("GET", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.rejections.WithLabelValues("rate_limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.rateLimited))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.clientsIssued))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.clientsSwept))
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	p := NewPrometheus()
	p.IncClientIssued()

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "vxgate_clients_issued_total 1"))
}
