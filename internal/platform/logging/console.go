package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Tags recognised by the console handler. A message that starts with one of
// them is printed in the tag's color instead of with a level badge.
const (
	TagBootstrap = "BOOT"
	TagHTTP      = "HTTP"
	TagAnalysis  = "ANALYSIS"
	TagVision    = "VISION"
	TagRateLimit = "RATELIMIT"
	TagMetrics   = "METRICS"
	TagObserve   = "OBSERVABILITY"
)

var tagColors = map[string]*color.Color{
	TagBootstrap: color.New(color.FgHiCyan),
	TagHTTP:      color.New(color.FgHiMagenta),
	TagAnalysis:  color.New(color.FgHiBlue),
	TagVision:    color.New(color.FgMagenta),
	TagRateLimit: color.New(color.FgYellow),
	TagMetrics:   color.New(color.FgHiGreen),
	TagObserve:   color.New(color.FgHiBlack),
}

// consoleHandler renders records as one colored line each.
type consoleHandler struct {
	out     io.Writer
	level   slog.Leveler
	noColor bool
	attrs   []slog.Attr
	mu      *sync.Mutex
}

func newConsoleHandler(out io.Writer, level slog.Leveler, noColor bool) *consoleHandler {
	return &consoleHandler{out: out, level: level, noColor: noColor, mu: &sync.Mutex{}}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(ctx context.Context, r slog.Record) error {
	var bf bytes.Buffer

	paint := func(c *color.Color, s string) string {
		if h.noColor || c == nil {
			return s
		}
		return c.Sprint(s)
	}

	bf.WriteString(paint(color.New(color.Faint), "["+r.Time.Format("2006-01-02 15:04:05.000")+"]"))
	bf.WriteByte(' ')

	if tagColor := matchTag(r.Message); tagColor != nil {
		bf.WriteString(paint(tagColor, r.Message))
	} else {
		bf.WriteString(paint(levelColor(r.Level), "["+levelLabel(r.Level)+"]"))
		bf.WriteByte(' ')
		bf.WriteString(r.Message)
	}

	if requestID, ok := RequestIDFromContext(ctx); ok {
		bf.WriteString(paint(color.New(color.FgMagenta), " req="+requestID))
	}

	attrs := append([]slog.Attr{}, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	for _, a := range attrs {
		keyColor := color.New(color.FgCyan)
		if strings.Contains(a.Key, "err") {
			keyColor = color.New(color.FgRed)
		}
		bf.WriteByte(' ')
		bf.WriteString(paint(keyColor, a.Key+"="))
		bf.WriteString(a.Value.String())
	}
	bf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(bf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(string) slog.Handler {
	return h
}

func matchTag(msg string) *color.Color {
	if !strings.HasPrefix(msg, "[") {
		return nil
	}
	end := strings.IndexByte(msg, ']')
	if end < 0 {
		return nil
	}
	return tagColors[msg[1:end]]
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func levelColor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return color.New(color.FgRed)
	case level >= slog.LevelWarn:
		return color.New(color.FgYellow)
	case level >= slog.LevelInfo:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgCyan)
	}
}

// FormatLog prefixes message with a single tag: FormatLog("HTTP", "ready") -> "[HTTP] ready".
// A message that already starts with "[" is returned unchanged.
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" {
		return message
	}
	if strings.HasPrefix(message, "[") {
		return message
	}
	return fmt.Sprintf("[%s] %s", tag, message)
}
