package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "safescribe",
		Name:      "http_in_flight_requests",
		Help:      "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safescribe",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "safescribe",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safescribe",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	gateRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safescribe",
			Name:      "auth_rejections_total",
			Help:      "Requests rejected by the authentication gate, by reason.",
		},
		[]string{"reason"},
	)

	revocationsAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "safescribe",
		Name:      "revocations_added_total",
		Help:      "Token ids added to the revocation registry.",
	})

	registryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safescribe",
			Name:      "revocation_registry_errors_total",
			Help:      "Revocation registry failures by operation.",
		},
		[]string{"op"},
	)

	peerRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safescribe",
			Name:      "revocation_peer_rejections_total",
			Help:      "Revocation service calls refused for a missing or wrong service token.",
		},
		[]string{"method", "reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		loginAttempts,
		gateRejections,
		revocationsAdded,
		registryErrors,
		peerRejections,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveLogin(outcome string) {
	loginAttempts.WithLabelValues(outcome).Inc()
}

func ObserveRejection(reason string) {
	gateRejections.WithLabelValues(reason).Inc()
}

func ObserveRevocation() {
	revocationsAdded.Inc()
}

func ObserveRegistryError(op string) {
	registryErrors.WithLabelValues(op).Inc()
}

// Instrument records request count and latency labelled by the matched chi
// route pattern, so ids in paths do not explode label cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		status := strconv.Itoa(code)
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

func ObservePeerRejection(method, reason string) {
	peerRejections.WithLabelValues(method, reason).Inc()
}
