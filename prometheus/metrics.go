package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_login_total",
			Help: "Total number of sign-in attempts",
		},
		[]string{"provider"}, // provider can be "email" or "google"
	)

	// Registration counters
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strategy_register_total",
			Help: "Total number of user registrations",
		},
	)

	// Session transitions, labelled by the state entered
	SessionTransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_session_transitions_total",
			Help: "Total number of session state transitions",
		},
		[]string{"to"},
	)

	// Activity events reported by clients
	ActivityEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_activity_events_total",
			Help: "Total number of user activity events received",
		},
		[]string{"kind"},
	)

	// Entities created through the API
	EntityCreatedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_entities_created_total",
			Help: "Total number of entities created",
		},
		[]string{"entity"},
	)

	// Suggestions produced by the rule engine
	SuggestionCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strategy_suggestions_generated_total",
			Help: "Total number of objective suggestions generated",
		},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	ErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategy_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type"}, // type can be "invalid_request", "db_error", "session_expired" etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strategy_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strategy_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update"
	)
)

// Gauge metrics
var (
	// Sessions whose monitor is active
	ActiveSessionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strategy_active_sessions",
			Help: "Number of sessions currently active",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strategy_info",
			Help: "Information about the strategy service",
		},
		[]string{"version"},
	)
)

// Version is reported through the info gauge
const Version = "1.0.0"

func init() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(SessionTransitionCounter)
	prometheus.MustRegister(ActivityEventCounter)
	prometheus.MustRegister(EntityCreatedCounter)
	prometheus.MustRegister(SuggestionCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(ErrorCounter)

	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	prometheus.MustRegister(ActiveSessionsGauge)
	prometheus.MustRegister(InfoGauge)

	InfoGauge.With(prometheus.Labels{"version": Version}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations.
// Usage: defer prometheus.TrackDBOperation("query")()
func TrackDBOperation(operation string) func() {
	startTime := time.Now()
	return func() {
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(time.Since(startTime).Seconds())
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			labels := prometheus.Labels{
				"endpoint": c.Path(),
				"method":   c.Request().Method,
				"status":   strconv.Itoa(status),
			}
			RequestDuration.With(labels).Observe(time.Since(start).Seconds())
			HTTPRequestCounter.With(labels).Inc()

			return err
		}
	}
}

// RecordError records an error by type
func RecordError(errorType string) {
	ErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordEntityCreated records a successful insert of entity
func RecordEntityCreated(entity string) {
	EntityCreatedCounter.With(prometheus.Labels{"entity": entity}).Inc()
}

// RecordSessionTransition records a session entering state to
func RecordSessionTransition(to string) {
	SessionTransitionCounter.With(prometheus.Labels{"to": to}).Inc()
}

// RecordActivityEvent records an activity event of kind
func RecordActivityEvent(kind string) {
	ActivityEventCounter.With(prometheus.Labels{"kind": kind}).Inc()
}

// RecordLogin records a sign-in attempt through provider
func RecordLogin(provider string) {
	LoginCounter.With(prometheus.Labels{"provider": provider}).Inc()
}
