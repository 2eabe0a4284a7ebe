package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	platformerrors "github.com/dfeirstein/the-skin-lab/internal/platform/errors"
)

// Extractor finds the analysis object inside the model's complete response.
// It returns a compact JSON object or a KindMalformedOutput error whose
// message is MsgNoJSON or MsgParseFailed.
type Extractor func(text string) (json.RawMessage, error)

// ErrNoJSON is returned when the text has no brace-delimited span.
var ErrNoJSON = platformerrors.New(platformerrors.KindMalformedOutput, "analysis.extract", MsgNoJSON)

// ExtractSpan takes everything from the first '{' to the last '}' and parses
// it as one JSON value. Several objects in one response merge into an
// invalid span and fail to parse.
func ExtractSpan(text string) (json.RawMessage, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, ErrNoJSON
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return nil, ErrNoJSON
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text[start:end+1])); err != nil {
		return nil, &platformerrors.Error{
			Kind:    platformerrors.KindMalformedOutput,
			Op:      "analysis.extract",
			Message: MsgParseFailed,
			Cause:   err,
		}
	}
	return buf.Bytes(), nil
}

// IsNoJSON reports whether err means no candidate span was found.
func IsNoJSON(err error) bool {
	return errors.Is(err, ErrNoJSON)
}
