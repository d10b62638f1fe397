package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "secretshare_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "secretshare_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	secretsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "secretshare_secrets_created_total",
		Help: "Number of secrets created.",
	})

	secretsConsumedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "secretshare_secrets_consumed_total",
		Help: "Number of secrets revealed and destroyed.",
	})

	secretsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "secretshare_secrets_expired_total",
		Help: "Number of secrets removed by the expiry sweeper.",
	})

	revealFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "secretshare_reveal_failures_total",
		Help: "Failed reveal attempts by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration,
		secretsCreatedTotal, secretsConsumedTotal, secretsExpiredTotal, revealFailuresTotal)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ObserveExpiredSecrets records sweeper deletions. Exported for the daemon's
// sweep loop, which lives outside this package.
func ObserveExpiredSecrets(n int64) {
	secretsExpiredTotal.Add(float64(n))
}

// responseRecorder captures the status code written by a handler.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records request metrics.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		dur := time.Since(start).Seconds()
		status := strconv.Itoa(rr.statusCode)
		requestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(dur)
	})
}
