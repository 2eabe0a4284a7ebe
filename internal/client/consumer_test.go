package client

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfeirstein/the-skin-lab/internal/domain/analysis"
)

func TestConsumer_Result(t *testing.T) {
	stream := "data: {\"content\":\"{\\\"skinScore\\\":\"}\n\n" +
		"data: {\"content\":\" 81}\"}\n\n" +
		"data: {\"analysis\":{\"skinScore\":81},\"done\":true}\n\n"

	var seen []string
	consumer := NewConsumer(func(fragment string) { seen = append(seen, fragment) })
	assert.Equal(t, StateIdle, consumer.State())

	// One byte at a time forces every block to be reassembled from partial reads.
	outcome, err := consumer.Consume(iotest.OneByteReader(strings.NewReader(stream)))
	require.NoError(t, err)

	assert.Equal(t, StateResult, consumer.State())
	assert.Equal(t, []string{`{"skinScore":`, ` 81}`}, seen)
	assert.Equal(t, `{"skinScore": 81}`, outcome.Text)
	assert.JSONEq(t, `{"skinScore":81}`, string(outcome.Analysis))

	result, err := outcome.Result()
	require.NoError(t, err)
	assert.Equal(t, 81.0, result.SkinScore)
}

func TestConsumer_StopsAtTerminal(t *testing.T) {
	stream := "data: {\"analysis\":{},\"done\":true}\n\n" +
		"data: {\"content\":\"late\"}\n\n"

	var seen []string
	consumer := NewConsumer(func(fragment string) { seen = append(seen, fragment) })
	_, err := consumer.Consume(strings.NewReader(stream))
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestConsumer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		stream  string
		wantMsg string
		wantErr error
	}{
		{
			name:    "error event after content",
			stream:  "data: {\"content\":\"I'm sorry\"}\n\ndata: {\"error\":\"No valid JSON found in response\"}\n\n",
			wantMsg: analysis.MsgNoJSON,
		},
		{
			name:    "upstream failure",
			stream:  "data: {\"error\":\"Failed to analyze image\"}\n\n",
			wantMsg: analysis.MsgAnalyzeFailed,
		},
		{
			name:    "ends without terminal",
			stream:  "data: {\"content\":\"{\"}\n\n",
			wantErr: ErrNoTerminal,
		},
		{
			name:    "empty stream",
			stream:  "",
			wantErr: ErrNoTerminal,
		},
		{
			name:    "done without analysis",
			stream:  "data: {\"done\":true}\n\n",
			wantErr: ErrNoTerminal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumer := NewConsumer(nil)
			outcome, err := consumer.Consume(strings.NewReader(tt.stream))
			require.Error(t, err)
			assert.Nil(t, outcome)
			assert.Equal(t, StateError, consumer.State())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var analysisErr *AnalysisError
			require.True(t, errors.As(err, &analysisErr))
			assert.Equal(t, tt.wantMsg, analysisErr.Message)
		})
	}
}

func TestConsumer_MalformedEvent(t *testing.T) {
	consumer := NewConsumer(nil)
	_, err := consumer.Consume(strings.NewReader("data: {not json}\n\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode event")
	assert.Equal(t, StateError, consumer.State())
}

func TestConsumer_IgnoresNonDataLinesAndCRLF(t *testing.T) {
	stream := ": keep-alive\n\n" +
		"event: message\ndata: {\"content\":\"x\"}\r\n\n" +
		"data: {\"analysis\":{\"a\":1},\"done\":true}"

	outcome, err := NewConsumer(nil).Consume(strings.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, "x", outcome.Text)
	assert.JSONEq(t, `{"a":1}`, string(outcome.Analysis))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "awaiting-result", StateAwaiting.String())
	assert.Equal(t, "result", StateResult.String())
	assert.Equal(t, "error", StateError.String())
}
