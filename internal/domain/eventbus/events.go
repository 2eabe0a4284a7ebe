package eventbus

import "time"

// Analysis lifecycle topics.
const (
	EventAnalysisStarted   = "analysis:started"
	EventAnalysisCompleted = "analysis:completed"
	EventAnalysisFailed    = "analysis:failed"
	EventAnalysisRejected  = "analysis:rejected"
)

// AnalysisEventData is the payload of every analysis topic. Fields that do not
// apply to a topic are left zero.
type AnalysisEventData struct {
	RequestID string        `json:"request_id"`
	Provider  string        `json:"provider,omitempty"`
	Model     string        `json:"model,omitempty"`
	MediaType string        `json:"media_type,omitempty"`
	Result    string        `json:"result,omitempty"`
	Fragments int           `json:"fragments,omitempty"`
	Bytes     int           `json:"bytes,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Error     string        `json:"error,omitempty"`
}
