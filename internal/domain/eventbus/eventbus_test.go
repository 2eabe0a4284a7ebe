package eventbus

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfeirstein/the-skin-lab/internal/platform/logging"
	"github.com/dfeirstein/the-skin-lab/internal/platform/observability"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()

	var got []AnalysisEventData
	require.NoError(t, bus.Subscribe(EventAnalysisCompleted, func(data AnalysisEventData) {
		got = append(got, data)
	}))
	assert.True(t, bus.HasCallback(EventAnalysisCompleted))
	assert.False(t, bus.HasCallback(EventAnalysisFailed))

	bus.Publish(EventAnalysisCompleted, AnalysisEventData{RequestID: "r1", Fragments: 3})

	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].RequestID)
	assert.Equal(t, 3, got[0].Fragments)
}

func TestBus_SubscribeAsyncAndWait(t *testing.T) {
	bus := New()

	done := make(chan string, 1)
	require.NoError(t, bus.SubscribeAsync(EventAnalysisFailed, func(data AnalysisEventData) {
		done <- data.Error
	}))

	bus.Publish(EventAnalysisFailed, AnalysisEventData{Error: "Failed to analyze image"})
	bus.Wait()

	select {
	case msg := <-done:
		assert.Equal(t, "Failed to analyze image", msg)
	case <-time.After(time.Second):
		t.Fatal("async handler did not run")
	}
}

func TestGet_ReturnsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestSetupAnalysisHandlers(t *testing.T) {
	console := &bytes.Buffer{}
	logger, err := logging.New(logging.Config{Dir: t.TempDir(), Console: console, NoColor: true})
	require.NoError(t, err)
	defer logger.Close()

	bus := New()
	require.NoError(t, SetupAnalysisHandlers(bus, logger))

	completedBefore := testutil.ToFloat64(observability.AnalysisTotal.WithLabelValues(observability.ResultCompleted))
	inFlightBefore := testutil.ToFloat64(observability.AnalysisInFlight)

	bus.Publish(EventAnalysisStarted, AnalysisEventData{RequestID: "r2", Provider: "stub"})
	assert.Equal(t, inFlightBefore+1, testutil.ToFloat64(observability.AnalysisInFlight))

	bus.Publish(EventAnalysisCompleted, AnalysisEventData{
		RequestID: "r2",
		Result:    observability.ResultCompleted,
		Fragments: 5,
		Duration:  time.Second,
	})
	bus.Wait()

	assert.Equal(t, inFlightBefore, testutil.ToFloat64(observability.AnalysisInFlight))
	assert.Equal(t, completedBefore+1, testutil.ToFloat64(observability.AnalysisTotal.WithLabelValues(observability.ResultCompleted)))
	assert.Contains(t, console.String(), "[ANALYSIS] analysis finished")
}
