package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Cycle metrics
	CyclesTotal    *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	CyclesInFlight prometheus.Gauge

	// Appointment metrics
	SlotsDiscovered prometheus.Counter
	BookingsTotal   *prometheus.CounterVec
	CaptchaSolves   *prometheus.CounterVec

	// WebSocket metrics
	WebSocketConnections prometheus.Gauge
	WebSocketEvents      *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return newMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new metrics instance with custom registry
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	return newMetricsWithRegistry(registry)
}

func newMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bls_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bls_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bls_check_cycles_total",
				Help: "Total number of check cycles by outcome",
			},
			[]string{"outcome"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bls_check_cycle_duration_seconds",
				Help:    "Full check cycle duration in seconds",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
			},
		),
		CyclesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bls_check_cycles_in_flight",
				Help: "Number of check cycles currently running",
			},
		),
		SlotsDiscovered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bls_slots_discovered_total",
				Help: "Total number of appointment slots discovered",
			},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bls_bookings_total",
				Help: "Total number of booking attempts by outcome",
			},
			[]string{"outcome"},
		),
		CaptchaSolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bls_captcha_solves_total",
				Help: "Total number of captcha solve attempts by outcome",
			},
			[]string{"outcome"},
		),
		WebSocketConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bls_websocket_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WebSocketEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bls_websocket_events_total",
				Help: "Total number of WebSocket events broadcast",
			},
			[]string{"type"},
		),
		RateLimitHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bls_rate_limit_hits_total",
				Help: "Total number of rate limited requests",
			},
			[]string{"endpoint"},
		),
	}

	registry.MustRegister(
		metrics.RequestsTotal,
		metrics.RequestDuration,
		metrics.CyclesTotal,
		metrics.CycleDuration,
		metrics.CyclesInFlight,
		metrics.SlotsDiscovered,
		metrics.BookingsTotal,
		metrics.CaptchaSolves,
		metrics.WebSocketConnections,
		metrics.WebSocketEvents,
		metrics.RateLimitHits,
	)

	return metrics
}

// ObserveRequest records one handled API request
func (m *Metrics) ObserveRequest(method, endpoint, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveCycle records one finished check cycle
func (m *Metrics) ObserveCycle(completed bool, slotsFound int, duration time.Duration) {
	outcome := "completed"
	if !completed {
		outcome = "failed"
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(duration.Seconds())
	if slotsFound > 0 {
		m.SlotsDiscovered.Add(float64(slotsFound))
	}
}

// ObserveBooking records one booking attempt
func (m *Metrics) ObserveBooking(confirmed bool) {
	outcome := "confirmed"
	if !confirmed {
		outcome = "failed"
	}
	m.BookingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCaptchaSolve records one captcha solve attempt
func (m *Metrics) ObserveCaptchaSolve(solved bool) {
	outcome := "solved"
	if !solved {
		outcome = "failed"
	}
	m.CaptchaSolves.WithLabelValues(outcome).Inc()
}

// WebSocketOpened records a new client connection
func (m *Metrics) WebSocketOpened() {
	m.WebSocketConnections.Inc()
}

// WebSocketClosed records a closed client connection
func (m *Metrics) WebSocketClosed() {
	m.WebSocketConnections.Dec()
}

// ObserveBroadcast records one broadcast event
func (m *Metrics) ObserveBroadcast(eventType string) {
	m.WebSocketEvents.WithLabelValues(eventType).Inc()
}

// ObserveRateLimitHit records one rejected request
func (m *Metrics) ObserveRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}
