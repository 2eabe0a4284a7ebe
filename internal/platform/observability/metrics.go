package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Analysis results used as the "result" label.
const (
	ResultCompleted       = "completed"
	ResultUpstreamFailure = "upstream_failure"
	ResultParseFailure    = "parse_failure"
	ResultNoJSON          = "no_json"
	ResultRejected        = "rejected"
	ResultCancelled       = "cancelled"
)

var (
	registerOnce sync.Once

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skinlab",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, labeled by method, route and status.",
	}, []string{"method", "path", "status"})

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skinlab",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time to serve an HTTP request. Streaming routes include the whole stream.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"method", "path"})

	// AnalysisTotal counts analyses by terminal outcome.
	AnalysisTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skinlab",
		Subsystem: "analysis",
		Name:      "total",
		Help:      "Skin analyses finished, labeled by result.",
	}, []string{"result"})

	AnalysisDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skinlab",
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "Time from opening the model stream to the terminal event.",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"result"})

	AnalysisFragmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "skinlab",
		Subsystem: "analysis",
		Name:      "fragments_total",
		Help:      "Model fragments relayed to clients.",
	})

	AnalysisInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "skinlab",
		Subsystem: "analysis",
		Name:      "in_flight",
		Help:      "Model streams currently open.",
	})

	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "skinlab",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)

// Register registers the metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			AnalysisTotal,
			AnalysisDurationSeconds,
			AnalysisFragmentsTotal,
			AnalysisInFlight,
			RateLimitedTotal,
		)
	})
}
