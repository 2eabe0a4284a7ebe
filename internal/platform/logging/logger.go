package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogRetentionDays is how long rotated files are kept.
const LogRetentionDays = 7

type contextKey string

const requestIDKey contextKey = "request_id"

// Config captures logging configuration options.
type Config struct {
	Level   string
	Dir     string
	File    string
	NoColor bool
	// Console defaults to os.Stdout.
	Console io.Writer
}

// Logger writes JSON lines to a daily-rotated file and colored lines to the console.
type Logger struct {
	config      Config
	level       *slog.LevelVar
	console     *consoleHandler
	file        *os.File
	fileHandler slog.Handler
	currentDate string
	mu          sync.RWMutex
	ticker      *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New opens the log file and starts the rotation checker.
func New(cfg Config) (*Logger, error) {
	if cfg.File == "" {
		cfg.File = "server.log"
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Console == nil {
		cfg.Console = os.Stdout
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := openLogFile(cfg)
	if err != nil {
		return nil, err
	}

	level := &slog.LevelVar{}
	level.Set(parseLevel(cfg.Level))

	l := &Logger{
		config:      cfg,
		level:       level,
		console:     newConsoleHandler(cfg.Console, level, cfg.NoColor),
		file:        file,
		fileHandler: slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}),
		currentDate: time.Now().Format("2006-01-02"),
		stopCh:      make(chan struct{}),
	}
	l.startRotationChecker()
	return l, nil
}

func openLogFile(cfg Config) (*os.File, error) {
	path := filepath.Join(cfg.Dir, cfg.File)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

func (l *Logger) startRotationChecker() {
	l.ticker = time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-l.ticker.C:
				l.checkAndRotate(time.Now())
			case <-l.stopCh:
				return
			}
		}
	}()
}

func (l *Logger) checkAndRotate(now time.Time) {
	today := now.Format("2006-01-02")
	l.mu.RLock()
	current := l.currentDate
	l.mu.RUnlock()
	if today != current {
		l.rotate(today)
		l.cleanOldLogs(now)
	}
}

// rotate renames the active file to <base>-<date><ext> and opens a new one.
func (l *Logger) rotate(newDate string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	current := filepath.Join(l.config.Dir, l.config.File)
	ext := filepath.Ext(l.config.File)
	base := strings.TrimSuffix(l.config.File, ext)
	archived := filepath.Join(l.config.Dir, fmt.Sprintf("%s-%s%s", base, l.currentDate, ext))

	if _, err := os.Stat(current); err == nil {
		if err := os.Rename(current, archived); err != nil {
			l.consoleLog(slog.LevelError, "rename log file failed", slog.String("error", err.Error()))
		}
	}

	file, err := openLogFile(l.config)
	if err != nil {
		l.consoleLog(slog.LevelError, "create log file failed", slog.String("error", err.Error()))
		return
	}
	l.file = file
	l.fileHandler = slog.NewJSONHandler(file, &slog.HandlerOptions{Level: l.level})
	l.currentDate = newDate
	l.consoleLog(slog.LevelInfo, "log file rotated", slog.String("new_date", newDate))
}

func (l *Logger) cleanOldLogs(now time.Time) {
	entries, err := os.ReadDir(l.config.Dir)
	if err != nil {
		l.consoleLog(slog.LevelError, "read log dir failed", slog.String("error", err.Error()))
		return
	}

	cutoff := now.AddDate(0, 0, -LogRetentionDays)
	ext := filepath.Ext(l.config.File)
	base := strings.TrimSuffix(l.config.File, ext)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, base+"-") || !strings.HasSuffix(name, ext) {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSuffix(strings.TrimPrefix(name, base+"-"), ext))
		if err != nil || !date.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(l.config.Dir, name)); err != nil {
			l.consoleLog(slog.LevelError, "remove old log failed", slog.String("file", name), slog.String("error", err.Error()))
		}
	}
}

func (l *Logger) consoleLog(level slog.Level, msg string, attrs ...slog.Attr) {
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(attrs...)
	_ = l.console.Handle(context.Background(), r)
}

// Close stops rotation and closes the file. It is safe to call more than once.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.ticker != nil {
			l.ticker.Stop()
		}
		close(l.stopCh)

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.file != nil {
			err = l.file.Close()
			l.file = nil
		}
	})
	return err
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...interface{}) {
	if l == nil {
		return
	}
	if len(args) > 0 && strings.Contains(msg, "%") {
		msg = fmt.Sprintf(msg, args...)
		args = nil
	}
	l.emit(ctx, level, msg, toAttrs(args))
}

func (l *Logger) emit(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(attrs...)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.file != nil && l.fileHandler.Enabled(ctx, level) {
		fileRecord := r.Clone()
		if id, ok := RequestIDFromContext(ctx); ok {
			fileRecord.AddAttrs(slog.String("request_id", id))
		}
		_ = l.fileHandler.Handle(ctx, fileRecord)
	}
	if l.console.Enabled(ctx, level) {
		_ = l.console.Handle(ctx, r)
	}
}

// toAttrs accepts a single map of fields or alternating key/value pairs.
func toAttrs(args []interface{}) []slog.Attr {
	if len(args) == 0 || args[0] == nil {
		return nil
	}
	if fields, ok := args[0].(map[string]interface{}); ok && len(args) == 1 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make([]slog.Attr, 0, len(keys))
		for _, k := range keys {
			attrs = append(attrs, slog.Any(k, fields[k]))
		}
		return attrs
	}

	var attrs []slog.Attr
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case slog.Attr:
			attrs = append(attrs, v)
		case string:
			if i+1 < len(args) {
				attrs = append(attrs, slog.Any(v, args[i+1]))
				i++
			} else {
				attrs = append(attrs, slog.String("!BADKEY", v))
			}
		default:
			attrs = append(attrs, slog.Any("!BADKEY", v))
		}
	}
	return attrs
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(context.Background(), slog.LevelDebug, msg, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(context.Background(), slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(context.Background(), slog.LevelWarn, msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(context.Background(), slog.LevelError, msg, args...)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// InfoContext logs with the request id carried by ctx, if any.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) DebugTag(tag, msg string, args ...interface{}) {
	l.log(context.Background(), slog.LevelDebug, FormatLog(tag, msg), args...)
}

func (l *Logger) InfoTag(tag, msg string, args ...interface{}) {
	l.log(context.Background(), slog.LevelInfo, FormatLog(tag, msg), args...)
}

func (l *Logger) WarnTag(tag, msg string, args ...interface{}) {
	l.log(context.Background(), slog.LevelWarn, FormatLog(tag, msg), args...)
}

func (l *Logger) ErrorTag(tag, msg string, args ...interface{}) {
	l.log(context.Background(), slog.LevelError, FormatLog(tag, msg), args...)
}

// Slog exposes a structured logger that writes to the same destinations.
func (l *Logger) Slog() *slog.Logger {
	return slog.New(&fanoutHandler{logger: l})
}

// fanoutHandler routes slog records through Logger so rotation is respected.
type fanoutHandler struct {
	logger *Logger
	attrs  []slog.Attr
}

func (h *fanoutHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.logger.level.Level()
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := append([]slog.Attr{}, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	h.logger.emit(ctx, r.Level, r.Message, attrs)
	return nil
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fanoutHandler{logger: h.logger, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *fanoutHandler) WithGroup(string) slog.Handler {
	return h
}

// ContextWithRequestID stores the request id for log correlation.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}
