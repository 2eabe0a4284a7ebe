package eventbus

import (
	"github.com/dfeirstein/the-skin-lab/internal/platform/logging"
	"github.com/dfeirstein/the-skin-lab/internal/platform/observability"
)

type subscription struct {
	topic string
	fn    interface{}
	async bool
}

// SetupAnalysisHandlers subscribes metrics (synchronously) and logging
// (asynchronously) to the analysis lifecycle topics.
func SetupAnalysisHandlers(bus *Bus, logger *logging.Logger) error {
	subs := []subscription{
		{topic: EventAnalysisStarted, fn: func(AnalysisEventData) { observability.AnalysisInFlight.Inc() }},
		{topic: EventAnalysisCompleted, fn: recordFinished},
		{topic: EventAnalysisFailed, fn: recordFinished},
		{topic: EventAnalysisRejected, fn: func(AnalysisEventData) {
			observability.AnalysisTotal.WithLabelValues(observability.ResultRejected).Inc()
		}},
	}
	if logger != nil {
		subs = append(subs, logSubscriptions(logger)...)
	}

	for _, sub := range subs {
		var err error
		if sub.async {
			err = bus.SubscribeAsync(sub.topic, sub.fn)
		} else {
			err = bus.Subscribe(sub.topic, sub.fn)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func logSubscriptions(logger *logging.Logger) []subscription {
	return []subscription{
		{topic: EventAnalysisStarted, async: true, fn: func(data AnalysisEventData) {
			logger.InfoTag(logging.TagAnalysis, "stream opened",
				"request_id", data.RequestID, "provider", data.Provider, "model", data.Model,
				"media_type", data.MediaType, "bytes", data.Bytes)
		}},
		{topic: EventAnalysisCompleted, async: true, fn: func(data AnalysisEventData) {
			logger.InfoTag(logging.TagAnalysis, "analysis finished",
				"request_id", data.RequestID, "result", data.Result,
				"fragments", data.Fragments, "duration", data.Duration.String())
		}},
		{topic: EventAnalysisFailed, async: true, fn: func(data AnalysisEventData) {
			logger.WarnTag(logging.TagAnalysis, "analysis failed",
				"request_id", data.RequestID, "result", data.Result,
				"fragments", data.Fragments, "error", data.Error)
		}},
		{topic: EventAnalysisRejected, async: true, fn: func(data AnalysisEventData) {
			logger.WarnTag(logging.TagAnalysis, "upload rejected",
				"request_id", data.RequestID, "error", data.Error)
		}},
	}
}

func recordFinished(data AnalysisEventData) {
	observability.AnalysisInFlight.Dec()
	observability.RecordAnalysis(data.Result, data.Duration, data.Fragments)
}
