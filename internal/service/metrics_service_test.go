package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-console/internal/models"
)

func scrape(t *testing.T, m *MetricsService) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExposeEnrollmentSeries(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/enrollments", 200, 5*time.Millisecond)
	m.ObserveUpstreamCall(http.MethodGet, "/inscripciones", 500, 10*time.Millisecond)
	m.ObserveEnrollmentLoad(models.LoadTierStatic, true, time.Millisecond)
	m.RecordWrite(models.AuditActionEnrollmentCreate, models.AuditOutcomeSuccess)
	m.ObserveSnapshot(4, 6)

	out := scrape(t, m)
	assert.Contains(t, out, `http_requests_total{method="GET",path="/api/v1/enrollments",status="200"} 1`)
	assert.Contains(t, out, `upstream_request_duration_seconds_count{method="GET",route="/inscripciones",status="500"} 1`)
	assert.Contains(t, out, `enrollment_loads_total{degraded="true",tier="static"} 1`)
	assert.Contains(t, out, "enrollment_data_degraded 1")
	assert.Contains(t, out, `enrollment_writes_total{action="ENROLLMENT_CREATE",outcome="SUCCESS"} 1`)
	assert.Contains(t, out, "enrollment_snapshot_version 4")
	assert.Contains(t, out, "enrollment_tracked_total 6")
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordWrite("x", "y")
	m.ObserveEnrollmentLoad(models.LoadTierPrimary, false, 0)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
