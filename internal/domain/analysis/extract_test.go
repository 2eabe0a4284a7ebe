package analysis

import (
	"testing"

	platformerrors "github.com/dfeirstein/the-skin-lab/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSpan(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantMsg string
	}{
		{name: "bare object", text: `{"skinScore": 72}`, want: `{"skinScore":72}`},
		{name: "prose around object", text: "Here is the analysis:\n{\"skinType\": \"oily\"}\nLet me know!", want: `{"skinType":"oily"}`},
		{name: "markdown fence", text: "```json\n{\"a\": [1, 2]}\n```", want: `{"a":[1,2]}`},
		{name: "nested braces", text: `x {"a": {"b": {}}} y`, want: `{"a":{"b":{}}}`},
		{name: "braces inside strings", text: `{"note": "use {gently}"}`, want: `{"note":"use {gently}"}`},
		{name: "no braces", text: "I'm sorry, I can't help with that.", wantMsg: MsgNoJSON},
		{name: "empty", text: "", wantMsg: MsgNoJSON},
		{name: "closing before opening", text: "} then {", wantMsg: MsgNoJSON},
		{name: "only opening", text: `{"skinScore": 7`, wantMsg: MsgNoJSON},
		{name: "truncated", text: `{"skinScore": 7, "timeline": {"immediate": []}, "skincare": `, wantMsg: MsgParseFailed},
		{name: "two objects merge", text: `{"a": 1} and {"b": 2}`, wantMsg: MsgParseFailed},
		{name: "invalid body", text: `{skinScore: 72}`, wantMsg: MsgParseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractSpan(tt.text)
			if tt.wantMsg != "" {
				require.Error(t, err)
				assert.Nil(t, got)
				assert.True(t, platformerrors.IsKind(err, platformerrors.KindMalformedOutput))
				assert.Equal(t, tt.wantMsg, platformerrors.PublicMessage(err, ""))
				assert.Equal(t, tt.wantMsg == MsgNoJSON, IsNoJSON(err))
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeResult(t *testing.T) {
	raw := []byte(`{
		"skinScore": 78,
		"primaryConcerns": ["fine lines", "uneven tone"],
		"skinType": "combination",
		"recommendedTreatments": [{"name": "Microneedling", "purpose": "texture", "frequency": "monthly", "expectedResults": "smoother skin"}],
		"timeline": {"immediate": ["HydraFacial"], "enhancement": ["IPL"], "maintenance": ["peels"]},
		"skincare": {"morning": ["SPF 50"], "evening": ["retinol"], "weekly": ["mask"]},
		"investment": {"initial": "$1,500 - $2,500", "firstYear": "$4,000 - $6,000"},
		"extra": true
	}`)

	result, err := DecodeResult(raw)
	require.NoError(t, err)
	assert.Equal(t, 78.0, result.SkinScore)
	assert.Equal(t, []string{"fine lines", "uneven tone"}, result.PrimaryConcerns)
	require.Len(t, result.RecommendedTreatments, 1)
	assert.Equal(t, "smoother skin", result.RecommendedTreatments[0].ExpectedResults)
	assert.Equal(t, []string{"IPL"}, result.Timeline.Enhancement)
	assert.Equal(t, []string{"retinol"}, result.Skincare.Evening)
	assert.Equal(t, "$4,000 - $6,000", result.Investment.FirstYear)

	_, err = DecodeResult([]byte(`{"skinScore": "high"}`))
	assert.Error(t, err)
}

func TestEvent_Terminal(t *testing.T) {
	assert.False(t, Event{Content: "x"}.Terminal())
	assert.True(t, Event{Analysis: []byte(`{}`), Done: true}.Terminal())
	assert.True(t, Event{Error: MsgNoJSON}.Terminal())
}
