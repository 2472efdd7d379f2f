package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	startTotal      *prometheus.CounterVec
	stopTotal       *prometheus.CounterVec
	activeSession   prometheus.Gauge
	captureDuration prometheus.Histogram

	nativeCallDuration *prometheus.HistogramVec

	eventQueueDepth     prometheus.Gauge
	eventsEnqueuedTotal *prometheus.CounterVec
	eventsDroppedTotal  *prometheus.CounterVec

	rpcRequestsTotal   *prometheus.CounterVec
	rpcRequestDuration *prometheus.HistogramVec
	connectedClients   prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			startTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "recording_start_total",
					Help: "Total record_start requests by source and status (started, failed, rejected).",
				},
				[]string{"source", "status"},
			),
			stopTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "recording_stop_total",
					Help: "Total record_stop requests by status (done, failed, rejected).",
				},
				[]string{"status"},
			),
			activeSession: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "recording_active_session",
					Help: "Whether a recording session occupies the slot (1) or not (0).",
				},
			),
			captureDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "recording_capture_duration_seconds",
					Help:    "Capture duration reported by the native engine on stop.",
					Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
				},
			),
			nativeCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "native_call_duration_seconds",
					Help:    "Native engine call duration in seconds by operation and status.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"op", "status"},
			),
			eventQueueDepth: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "event_queue_depth",
					Help: "Undrained events in the recording event queue.",
				},
			),
			eventsEnqueuedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "events_enqueued_total",
					Help: "Total events enqueued by type.",
				},
				[]string{"type"},
			),
			eventsDroppedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "events_dropped_total",
					Help: "Total events dropped because the queue was full, by type.",
				},
				[]string{"type"},
			),
			rpcRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gateway_rpc_requests_total",
					Help: "Total gateway RPC requests by method and status.",
				},
				[]string{"method", "status"},
			),
			rpcRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "gateway_rpc_request_duration_seconds",
					Help:    "Gateway RPC handler duration in seconds by method.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method"},
			),
			connectedClients: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "gateway_connected_clients",
					Help: "Current WebSocket clients connected to the gateway.",
				},
			),
		}

		prometheus.MustRegister(
			m.startTotal,
			m.stopTotal,
			m.activeSession,
			m.captureDuration,
			m.nativeCallDuration,
			m.eventQueueDepth,
			m.eventsEnqueuedTotal,
			m.eventsDroppedTotal,
			m.rpcRequestsTotal,
			m.rpcRequestDuration,
			m.connectedClients,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordStart(source, status string) {
	m := getMetrics()
	m.startTotal.WithLabelValues(source, status).Inc()
}

func RecordStop(status string) {
	m := getMetrics()
	m.stopTotal.WithLabelValues(status).Inc()
}

func SetActiveSession(active bool) {
	m := getMetrics()
	value := 0.0
	if active {
		value = 1.0
	}
	m.activeSession.Set(value)
}

func RecordCaptureDuration(seconds float64) {
	m := getMetrics()
	m.captureDuration.Observe(seconds)
}

func RecordNativeCall(op string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.nativeCallDuration.WithLabelValues(op, status).Observe(duration.Seconds())
}

func RecordEventQueued(eventType string, depth int) {
	m := getMetrics()
	m.eventsEnqueuedTotal.WithLabelValues(eventType).Inc()
	m.eventQueueDepth.Set(float64(depth))
}

func RecordEventDropped(eventType string) {
	m := getMetrics()
	m.eventsDroppedTotal.WithLabelValues(eventType).Inc()
}

func SetEventQueueDepth(depth int) {
	m := getMetrics()
	m.eventQueueDepth.Set(float64(depth))
}

func RecordRPCRequest(method string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.rpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.rpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func SetConnectedClients(count int) {
	m := getMetrics()
	m.connectedClients.Set(float64(count))
}
