package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values
const (
	// Workout submission outcomes
	WorkoutCreated = "created"
	WorkoutMerged  = "merged"
	WorkoutRestDay = "rest_day"

	// Login results
	LoginSuccess = "success"
	LoginFailure = "failure"

	// Email results
	EmailSent   = "sent"
	EmailFailed = "failed"

	// Database operations
	DBOpUpsertWorkout   = "upsert_workout"
	DBOpGetWorkouts     = "get_workouts"
	DBOpValidateSession = "validate_session"
	DBOpGetProgress     = "get_progress"
	DBOpLogWeight       = "log_weight"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Total number of requests rejected by a rate limiter or client block",
		},
		[]string{"limiter"},
	)
)

// Database Metrics
var (
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Database operation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	DBOperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation"},
	)

	SessionsCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_cleaned_total",
			Help: "Total number of expired sessions removed",
		},
	)
)

// Business Metrics
var (
	WorkoutSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workout_submissions_total",
			Help: "Total number of workout submissions by outcome",
		},
		[]string{"outcome"},
	)

	ExercisesLoggedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exercises_logged_total",
			Help: "Total number of exercises appended to workouts",
		},
	)

	WeightLogsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weight_logs_total",
			Help: "Total number of body weight samples recorded",
		},
	)

	SignupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signups_total",
			Help: "Total number of accounts created",
		},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_total",
			Help: "Total number of outgoing emails by result",
		},
		[]string{"result"},
	)
)

// ObserveDB times a database operation and counts its failures.
func ObserveDB(operation string, fn func() error) error {
	timer := prometheus.NewTimer(DBOperationDuration.WithLabelValues(operation))
	defer timer.ObserveDuration()

	err := fn()
	if err != nil {
		DBOperationErrorsTotal.WithLabelValues(operation).Inc()
	}
	return err
}
