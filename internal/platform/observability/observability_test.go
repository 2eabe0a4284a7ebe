package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMetric_FeedsCollectors(t *testing.T) {
	labels := map[string]string{"method": "POST", "path": "/api/analyze-skin", "status": "200"}
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/analyze-skin", "200"))

	RecordMetric(context.Background(), MetricHTTPRequests, 1, labels)
	RecordMetric(context.Background(), MetricHTTPRequests, 1, labels)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/analyze-skin", "200"))
	assert.Equal(t, before+2, after)
}

func TestRecordAnalysis(t *testing.T) {
	before := testutil.ToFloat64(AnalysisTotal.WithLabelValues(ResultNoJSON))
	fragmentsBefore := testutil.ToFloat64(AnalysisFragmentsTotal)

	RecordAnalysis(ResultNoJSON, 2*time.Second, 7)

	assert.Equal(t, before+1, testutil.ToFloat64(AnalysisTotal.WithLabelValues(ResultNoJSON)))
	assert.Equal(t, fragmentsBefore+7, testutil.ToFloat64(AnalysisFragmentsTotal))
}

func TestSetup_TracingLogsSpans(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	shutdown, err := Setup(context.Background(), Config{Tracing: true, Metrics: true}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	assert.True(t, Enabled())
	_, end := StartSpan(context.Background(), "analysis", "relay")
	end(errors.New("upstream closed"))

	out := buf.String()
	assert.Contains(t, out, "span start")
	assert.Contains(t, out, "span end")
	assert.Contains(t, out, "upstream closed")

	// Register is idempotent.
	assert.NotPanics(t, Register)
}

func TestStartSpan_DisabledIsNoop(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	shutdown, err := Setup(context.Background(), Config{}, logger)
	require.NoError(t, err)
	defer shutdown(context.Background())
	buf.Reset()

	ctx := context.Background()
	got, end := StartSpan(ctx, "http.server", "/")
	end(nil)

	assert.Equal(t, ctx, got)
	assert.Empty(t, buf.String())
}
