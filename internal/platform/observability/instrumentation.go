package observability

import (
	"context"
	"log/slog"
	"time"
)

// Metric names accepted by RecordMetric.
const (
	MetricHTTPRequests        = "http.requests"
	MetricHTTPRequestDuration = "http.request.duration_ms"
	MetricRateLimited         = "http.rate_limited"
)

// Enabled reports whether span tracing has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Tracing
}

// StartSpan records a lightweight span lifecycle around an operation.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger, cfg := currentLogger()
	if logger == nil || !cfg.Tracing {
		return ctx, func(error) {}
	}

	start := time.Now()
	logger.LogAttrs(ctx, slog.LevelDebug, "[OBSERVABILITY] span start",
		slog.String("component", component),
		slog.String("operation", operation),
	)

	return ctx, func(err error) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}

		logger.LogAttrs(ctx, level, "[OBSERVABILITY] span end", attrs...)
	}
}

// RecordMetric forwards a datapoint to the matching Prometheus collector and,
// when tracing is on, logs it.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	switch name {
	case MetricHTTPRequests:
		HTTPRequestsTotal.WithLabelValues(labels["method"], labels["path"], labels["status"]).Add(value)
	case MetricHTTPRequestDuration:
		HTTPRequestDurationSeconds.WithLabelValues(labels["method"], labels["path"]).Observe(value / 1000)
	case MetricRateLimited:
		RateLimitedTotal.Add(value)
	}

	logger, cfg := currentLogger()
	if logger == nil || !cfg.Tracing {
		return
	}

	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}

	logger.LogAttrs(ctx, slog.LevelDebug, "[OBSERVABILITY] metric", attrs...)
}

// RecordAnalysis records one finished analysis.
func RecordAnalysis(result string, duration time.Duration, fragments int) {
	AnalysisTotal.WithLabelValues(result).Inc()
	AnalysisDurationSeconds.WithLabelValues(result).Observe(duration.Seconds())
	if fragments > 0 {
		AnalysisFragmentsTotal.Add(float64(fragments))
	}
}
