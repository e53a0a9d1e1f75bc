package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	assessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medication_assessments_total",
			Help: "Total number of medication risk assessments by final category",
		},
		[]string{"final_risk"},
	)

	riskEscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_escalations_total",
			Help: "Total number of cascade escalations by modifier",
		},
		[]string{"modifier"},
	)

	taperPlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taper_plans_total",
			Help: "Total number of taper plans generated by selector state",
		},
		[]string{"state"},
	)

	generationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_requests_total",
			Help: "Total number of generative-language calls by outcome",
		},
		[]string{"outcome"},
	)

	generationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generation_request_duration_seconds",
			Help:    "Generative-language call duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	recoveryDefaultedFields = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recovery_defaulted_fields_total",
			Help: "Total number of fields defaulted while recovering structured output",
		},
	)

	recoveryDroppedSteps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recovery_dropped_steps_total",
			Help: "Total number of recovered taper steps dropped by validation",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// --- Business metric helpers ---

// RecordAssessment records a completed medication risk assessment
func RecordAssessment(finalRisk string) {
	assessmentsTotal.WithLabelValues(finalRisk).Inc()
}

// RecordEscalation records a cascade escalation by modifier name
func RecordEscalation(modifier string) {
	riskEscalationsTotal.WithLabelValues(modifier).Inc()
}

// RecordTaperPlan records a generated taper plan by selector state
func RecordTaperPlan(state string) {
	taperPlansTotal.WithLabelValues(state).Inc()
}

// RecordGeneration records a generative-language call
func RecordGeneration(outcome string, duration time.Duration) {
	generationRequestsTotal.WithLabelValues(outcome).Inc()
	generationDuration.Observe(duration.Seconds())
}

// RecordDefaultedField records a field defaulted during structured recovery
func RecordDefaultedField() {
	recoveryDefaultedFields.Inc()
}

// RecordDroppedStep records a recovered step dropped by validation
func RecordDroppedStep() {
	recoveryDroppedSteps.Inc()
}
