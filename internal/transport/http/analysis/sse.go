package analysis

import (
	"bytes"
	"encoding/json"
	"net/http"

	domainanalysis "github.com/dfeirstein/the-skin-lab/internal/domain/analysis"
)

// eventWriter frames events as `data: <json>\n\n` and flushes each one.
type eventWriter struct {
	w   http.ResponseWriter
	buf bytes.Buffer
	enc *json.Encoder
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	ew := &eventWriter{w: w}
	ew.enc = json.NewEncoder(&ew.buf)
	ew.enc.SetEscapeHTML(false)
	return ew
}

func writeStreamHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}

func (ew *eventWriter) Write(ev domainanalysis.Event) error {
	ew.buf.Reset()
	ew.buf.WriteString("data: ")
	// Encode terminates the JSON with one newline; the blank line follows.
	if err := ew.enc.Encode(ev); err != nil {
		return err
	}
	ew.buf.WriteByte('\n')

	if _, err := ew.w.Write(ew.buf.Bytes()); err != nil {
		return err
	}
	if flusher, ok := ew.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
