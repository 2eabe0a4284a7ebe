package analysis

import (
	"encoding/json"
)

// User-facing messages. Clients match on these strings.
const (
	MsgNoImage        = "No image provided"
	MsgProcessFailed  = "Failed to process request"
	MsgAnalyzeFailed  = "Failed to analyze image"
	MsgParseFailed    = "Failed to parse analysis"
	MsgNoJSON         = "No valid JSON found in response"
	MsgConsumerFailed = "An error occurred during analysis. Please try again."
)

// Event is one message on the relay channel. Exactly one of Content, Analysis
// (with Done) or Error is set.
type Event struct {
	Content  string          `json:"content,omitempty"`
	Analysis json.RawMessage `json:"analysis,omitempty"`
	Done     bool            `json:"done,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Terminal reports whether the event ends the channel.
func (e Event) Terminal() bool {
	return e.Error != "" || (e.Done && len(e.Analysis) > 0)
}

// Result is the analysis shape the model is instructed to produce. The relay
// forwards whatever object the model returned; Result is for consumers that
// want typed access.
type Result struct {
	SkinScore             float64     `json:"skinScore"`
	PrimaryConcerns       []string    `json:"primaryConcerns"`
	SkinType              string      `json:"skinType"`
	RecommendedTreatments []Treatment `json:"recommendedTreatments"`
	Timeline              Timeline    `json:"timeline"`
	Skincare              Skincare    `json:"skincare"`
	Investment            Investment  `json:"investment"`
}

type Treatment struct {
	Name            string `json:"name"`
	Purpose         string `json:"purpose"`
	Frequency       string `json:"frequency"`
	ExpectedResults string `json:"expectedResults"`
}

// Timeline is the three-phase protocol: 0-3, 3-6 and 6+ months.
type Timeline struct {
	Immediate   []string `json:"immediate"`
	Enhancement []string `json:"enhancement"`
	Maintenance []string `json:"maintenance"`
}

type Skincare struct {
	Morning []string `json:"morning"`
	Evening []string `json:"evening"`
	Weekly  []string `json:"weekly"`
}

// Investment holds cost ranges as the model phrased them, e.g. "$2,000 - $4,000".
type Investment struct {
	Initial   string `json:"initial"`
	FirstYear string `json:"firstYear"`
}

// DecodeResult decodes an analysis object into Result. Unknown fields are ignored.
func DecodeResult(raw json.RawMessage) (*Result, error) {
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
