package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level string) (*Logger, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	console := &bytes.Buffer{}
	logger, err := New(Config{
		Level:   level,
		Dir:     dir,
		File:    "test.log",
		NoColor: true,
		Console: console,
	})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger, console, filepath.Join(dir, "test.log")
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestNew_DefaultsAndClose(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Dir: dir, Console: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "server.log"))

	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
}

func TestLogger_WritesFileAndConsole(t *testing.T) {
	logger, console, path := newTestLogger(t, "info")

	logger.Info("analysis relay ready")
	logger.Warn("slow upstream")
	logger.Error("upstream failed")

	content := readFile(t, path)
	assert.Contains(t, content, "analysis relay ready")
	assert.Contains(t, content, `"level":"WARN"`)
	assert.Contains(t, content, "upstream failed")
	assert.Contains(t, console.String(), "[INFO] analysis relay ready")
	assert.Contains(t, console.String(), "[ERROR] upstream failed")
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, console, path := newTestLogger(t, "warn")

	logger.Info("hidden info")
	logger.Debug("hidden debug")
	logger.Warn("visible warn")

	content := readFile(t, path)
	assert.NotContains(t, content, "hidden")
	assert.Contains(t, content, "visible warn")
	assert.NotContains(t, console.String(), "hidden")
}

func TestLogger_PrintfAndFields(t *testing.T) {
	logger, _, path := newTestLogger(t, "debug")

	logger.Info("received %d fragments from %s", 5, "o3")
	logger.Info("analysis finished", "request_id", "abc-123", "fragments", 5)
	logger.Info("map fields", map[string]interface{}{"b": 2, "a": 1})

	content := readFile(t, path)
	assert.Contains(t, content, "received 5 fragments from o3")
	assert.Contains(t, content, `"request_id":"abc-123"`)
	assert.Contains(t, content, `"fragments":5`)
	assert.Contains(t, content, `"a":1`)
}

func TestLogger_Tags(t *testing.T) {
	logger, console, path := newTestLogger(t, "debug")

	logger.InfoTag(TagHTTP, "listening on %d", 8080)
	logger.WarnTag(TagRateLimit, "limit reached")

	content := readFile(t, path)
	assert.Contains(t, content, "[HTTP] listening on 8080")
	assert.Contains(t, console.String(), "[RATELIMIT] limit reached")
}

func TestLogger_ContextRequestID(t *testing.T) {
	logger, console, path := newTestLogger(t, "info")

	ctx := ContextWithRequestID(context.Background(), "req-42")
	logger.InfoContext(ctx, "handled")
	logger.Slog().InfoContext(ctx, "via slog", "status", 200)

	content := readFile(t, path)
	assert.Contains(t, content, `"request_id":"req-42"`)
	assert.Contains(t, content, "via slog")
	assert.Contains(t, console.String(), "req=req-42")
}

func TestLogger_SlogKeepsPercent(t *testing.T) {
	logger, _, path := newTestLogger(t, "info")

	logger.Slog().Info("progress 100%")

	assert.Contains(t, readFile(t, path), "progress 100%")
}

func TestLogger_RotateAndClean(t *testing.T) {
	logger, _, path := newTestLogger(t, "info")
	dir := filepath.Dir(path)

	stale := filepath.Join(dir, "test-2000-01-01.log")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	logger.Info("before rotation")
	previous := logger.currentDate
	logger.checkAndRotate(time.Now().AddDate(0, 0, 1))
	logger.Info("after rotation")

	assert.FileExists(t, filepath.Join(dir, "test-"+previous+".log"))
	assert.NoFileExists(t, stale)
	assert.Contains(t, readFile(t, path), "after rotation")
	assert.NotContains(t, readFile(t, path), "before rotation")
}

func TestFormatLog(t *testing.T) {
	assert.Equal(t, "[HTTP] ready", FormatLog("HTTP", " ready "))
	assert.Equal(t, "ready", FormatLog("", "ready"))
	assert.Equal(t, "[X] already tagged", FormatLog("HTTP", "[X] already tagged"))
}
