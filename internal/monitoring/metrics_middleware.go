package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nomadsam6/bls2/internal/domain"
)

// MetricsMiddleware provides middleware for collecting metrics
type MetricsMiddleware struct {
	metrics *Metrics
}

// NewMetricsMiddleware creates a new metrics middleware
func NewMetricsMiddleware(metrics *Metrics) *MetricsMiddleware {
	return &MetricsMiddleware{
		metrics: metrics,
	}
}

// HTTPMiddleware creates HTTP middleware for metrics collection
func (mm *MetricsMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		mm.metrics.ObserveRequest(r.Method, r.URL.Path, strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// cycleRunner matches the scheduler's runner contract without importing it
type cycleRunner interface {
	RunFullCheck(ctx context.Context) (bool, []domain.AppointmentSlot)
	Abort()
}

// InstrumentedRunner wraps a cycle runner with cycle metrics
type InstrumentedRunner struct {
	next    cycleRunner
	metrics *Metrics
}

// NewInstrumentedRunner wraps the given runner
func NewInstrumentedRunner(next cycleRunner, metrics *Metrics) *InstrumentedRunner {
	return &InstrumentedRunner{
		next:    next,
		metrics: metrics,
	}
}

// RunFullCheck delegates to the wrapped runner and records the outcome
func (ir *InstrumentedRunner) RunFullCheck(ctx context.Context) (bool, []domain.AppointmentSlot) {
	start := time.Now()
	ir.metrics.CyclesInFlight.Inc()
	defer ir.metrics.CyclesInFlight.Dec()

	completed, slots := ir.next.RunFullCheck(ctx)
	ir.metrics.ObserveCycle(completed, len(slots), time.Since(start))
	return completed, slots
}

// Abort forwards to the wrapped runner
func (ir *InstrumentedRunner) Abort() {
	ir.next.Abort()
}

// solverClient matches the automation solver contract without importing it
type solverClient interface {
	Match(ctx context.Context, target string, tiles [][]byte) ([]int, error)
}

// InstrumentedSolver wraps a captcha solver client with solve-attempt
// metrics. An error or an empty match set both count as failed attempts.
type InstrumentedSolver struct {
	next    solverClient
	metrics *Metrics
}

// NewInstrumentedSolver wraps the given solver client
func NewInstrumentedSolver(next solverClient, metrics *Metrics) *InstrumentedSolver {
	return &InstrumentedSolver{
		next:    next,
		metrics: metrics,
	}
}

// Match delegates to the wrapped solver and records the outcome
func (is *InstrumentedSolver) Match(ctx context.Context, target string, tiles [][]byte) ([]int, error) {
	indices, err := is.next.Match(ctx, target, tiles)
	is.metrics.ObserveCaptchaSolve(err == nil && len(indices) > 0)
	return indices, err
}
