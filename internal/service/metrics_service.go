package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the lifecycle counters the domain services report into.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	applicationDecisions *prometheus.CounterVec
	capacityConflicts    prometheus.Counter
	attendanceDecisions  *prometheus.CounterVec
	attendanceFlagged    prometheus.Counter
	settlementRuns       *prometheus.CounterVec
	paymentsCompleted    prometheus.Counter
	queueDepth           prometheus.GaugeFunc
}

// NewMetricsService registers core Prometheus collectors. queueDepth reports
// the notification queue backlog; pass nil to skip the gauge.
func NewMetricsService(queueDepth func() int) *MetricsService {
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	applicationDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shift_application_decisions_total",
		Help: "Shift application decisions by resulting status",
	}, []string{"status"})

	capacityConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shift_capacity_conflicts_total",
		Help: "Approvals rejected because the shift was already full",
	})

	attendanceDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_decisions_total",
		Help: "Attendance decisions by resulting status",
	}, []string{"status"})

	attendanceFlagged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_flagged_total",
		Help: "Attendance records flagged for manual review",
	})

	settlementRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_runs_total",
		Help: "Payment generation runs by result",
	}, []string{"result"})

	paymentsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_completed_total",
		Help: "Payments marked completed",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		applicationDecisions, capacityConflicts, attendanceDecisions, attendanceFlagged,
		settlementRuns, paymentsCompleted, goroutines)

	var depthGauge prometheus.GaugeFunc
	if queueDepth != nil {
		depthGauge = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Jobs waiting in the notification queue",
		}, func() float64 {
			return float64(queueDepth())
		})
		registry.MustRegister(depthGauge)
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:             registry,
		handler:              handler,
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		applicationDecisions: applicationDecisions,
		capacityConflicts:    capacityConflicts,
		attendanceDecisions:  attendanceDecisions,
		attendanceFlagged:    attendanceFlagged,
		settlementRuns:       settlementRuns,
		paymentsCompleted:    paymentsCompleted,
		queueDepth:           depthGauge,
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

// ObserveHTTPRequest records per-request latency and volume.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// IncApplicationDecision counts an application decision by resulting status.
func (m *MetricsService) IncApplicationDecision(status string) {
	if m == nil {
		return
	}
	m.applicationDecisions.WithLabelValues(status).Inc()
}

// IncCapacityConflict counts an approval refused by a full shift.
func (m *MetricsService) IncCapacityConflict() {
	if m == nil {
		return
	}
	m.capacityConflicts.Inc()
}

// IncAttendanceDecision counts an attendance decision by resulting status.
func (m *MetricsService) IncAttendanceDecision(status string) {
	if m == nil {
		return
	}
	m.attendanceDecisions.WithLabelValues(status).Inc()
}

// IncAttendanceFlagged counts a record flagged for manual review.
func (m *MetricsService) IncAttendanceFlagged() {
	if m == nil {
		return
	}
	m.attendanceFlagged.Inc()
}

// IncSettlementRun counts a payment generation run by result.
func (m *MetricsService) IncSettlementRun(result string) {
	if m == nil {
		return
	}
	m.settlementRuns.WithLabelValues(result).Inc()
}

// IncPaymentCompleted counts a payment reaching the completed status.
func (m *MetricsService) IncPaymentCompleted() {
	if m == nil {
		return
	}
	m.paymentsCompleted.Inc()
}
