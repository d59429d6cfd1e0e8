package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Общие HTTP-метрики
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the readiness probe last succeeded.",
	})
)

// Метрики оркестрации SCA
var (
	scaTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sca_transitions_total",
			Help: "Authorisation state machine transitions.",
		},
		[]string{"from", "event", "to"},
	)

	parentFinalisationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sca_parent_finalisations_total",
			Help: "Parent objects moved to a terminal status by the aggregator.",
		},
		[]string{"kind", "outcome"},
	)

	expiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sca_expired_total",
			Help: "Authorisations forced to EXPIRED, by expiry clock.",
		},
		[]string{"clock"},
	)
)

// Init registers all gateway metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration, ready,
		scaTransitionsTotal, parentFinalisationsTotal, expiredTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady records the latest readiness probe result.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
	} else {
		ready.Set(0)
	}
}

// ScaTransition counts one state machine transition.
func ScaTransition(from, event, to string) {
	scaTransitionsTotal.WithLabelValues(from, event, to).Inc()
}

// ParentFinalisation counts one parent object reaching a terminal status.
func ParentFinalisation(kind, outcome string) {
	parentFinalisationsTotal.WithLabelValues(kind, outcome).Inc()
}

// AuthorisationExpired counts one forced expiry. clock is "redirect" or
// "authorisation".
func AuthorisationExpired(clock string) {
	expiredTotal.WithLabelValues(clock).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric label cardinality
// stays bounded. External ids are opaque tokens, so any path segment below a
// known collection is replaced with a placeholder.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	switch parts[1] {
	case "consents", "payments", "signing-baskets":
	default:
		return path
	}
	out := []string{"v1", parts[1], ":id"}
	rest := parts[3:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == "authorisations" && i+1 < len(rest) {
			out = append(out, "authorisations", ":authorisationId")
			i++
			continue
		}
		out = append(out, rest[i])
	}
	return "/" + strings.Join(out, "/")
}

// statusWriter — локальная копия, чтобы знать код ответа.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
