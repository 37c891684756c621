package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/enrollment-console/internal/models"
)

// MetricsService owns the Prometheus registry for the console.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	loadTotal        *prometheus.CounterVec
	loadDuration     prometheus.Histogram
	degraded         prometheus.Gauge
	writes           *prometheus.CounterVec
	snapshotVersion  prometheus.Gauge
	tracked          prometheus.Gauge
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Duration of calls to the registry backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	loadTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_loads_total",
		Help: "Enrollment loads by the tier that served them",
	}, []string{"tier", "degraded"})

	loadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrollment_load_duration_seconds",
		Help:    "Time spent walking the enrollment fallback chain",
		Buckets: prometheus.DefBuckets,
	})

	degraded := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "enrollment_data_degraded",
		Help: "1 when the tracked enrollments did not come from the primary source",
	})

	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_writes_total",
		Help: "Enrollment write attempts by action and outcome",
	}, []string{"action", "outcome"})

	snapshotVersion := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "enrollment_snapshot_version",
		Help: "Version of the current enrollment snapshot",
	})

	tracked := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "enrollment_tracked_total",
		Help: "Number of enrollments in the current snapshot",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, upstreamDuration, loadTotal, loadDuration, degraded, writes, snapshotVersion, tracked, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		upstreamDuration: upstreamDuration,
		loadTotal:        loadTotal,
		loadDuration:     loadDuration,
		degraded:         degraded,
		writes:           writes,
		snapshotVersion:  snapshotVersion,
		tracked:          tracked,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records inbound request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveUpstreamCall implements apiclient.Observer. Status 0 means the call
// never got a response.
func (m *MetricsService) ObserveUpstreamCall(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ObserveEnrollmentLoad implements TierObserver.
func (m *MetricsService) ObserveEnrollmentLoad(tier models.LoadTier, degraded bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.loadTotal.WithLabelValues(string(tier), strconv.FormatBool(degraded)).Inc()
	m.loadDuration.Observe(duration.Seconds())
	if degraded {
		m.degraded.Set(1)
	} else {
		m.degraded.Set(0)
	}
}

// RecordWrite counts an enrollment write by action and outcome.
func (m *MetricsService) RecordWrite(action, outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(action, outcome).Inc()
}

// ObserveSnapshot tracks the published snapshot.
func (m *MetricsService) ObserveSnapshot(version uint64, size int) {
	if m == nil {
		return
	}
	m.snapshotVersion.Set(float64(version))
	m.tracked.Set(float64(size))
}
