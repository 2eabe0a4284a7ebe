package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformerrors "github.com/dfeirstein/the-skin-lab/internal/platform/errors"
	platformlogging "github.com/dfeirstein/the-skin-lab/internal/platform/logging"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func writeStubConfig(t *testing.T, port int) (string, string) {
	t.Helper()
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	content := strings.Join([]string{
		"server:",
		"  ip: 127.0.0.1",
		"  port: " + strconv.Itoa(port),
		"  shutdown_timeout: 2s",
		"log:",
		"  log_level: info",
		"  log_dir: " + logDir,
		"  log_file: server.log",
		"  no_color: true",
		"web:",
		"  enabled: false",
		"analysis:",
		"  provider: stub",
		"  model: stub-vision",
		"ratelimit:",
		"  enabled: true",
		"  driver: memory",
		"  limit: 5",
		"  window: 1m",
		"observability:",
		"  metrics: false",
	}, "\n")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path, logDir
}

func testOptions(path string) Options {
	return Options{ConfigPath: path, Environment: map[string]string{}, DisableDotEnv: true}
}

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"observability:setup-hooks",
		"eventbus:setup-handlers",
		"ratelimit:init-store",
		"analysis:init-relay",
	}
	ids := make([]string, 0, len(steps))
	for _, step := range steps {
		ids = append(ids, step.ID)
	}
	assert.Equal(t, want, ids)
}

func TestExecuteInitGraph(t *testing.T) {
	path, _ := writeStubConfig(t, freePort(t))
	state := &appState{options: testOptions(path)}

	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))
	defer state.close(context.Background())

	assert.NotNil(t, state.config)
	assert.Equal(t, path, state.configPath)
	assert.NotNil(t, state.logger)
	assert.NotNil(t, state.observabilityShutdown)
	assert.NotNil(t, state.bus)
	assert.NotNil(t, state.limiter)
	require.NotNil(t, state.relay)
	assert.Equal(t, "stub-vision", state.relay.Model())
}

func TestExecuteInitSteps_Failures(t *testing.T) {
	err := executeInitSteps(context.Background(), []initStep{
		{ID: "b", DependsOn: []string{"a"}, Execute: func(context.Context, *appState) error { return nil }},
	}, &appState{})
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindBootstrap))

	err = executeInitSteps(context.Background(), InitGraph(), &appState{
		options: testOptions(filepath.Join(t.TempDir(), "missing.yaml")),
	})
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))

	err = executeInitSteps(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestLogBootstrapGraphOutput(t *testing.T) {
	tmp := t.TempDir()
	logger, err := platformlogging.New(platformlogging.Config{
		Level:   "info",
		Dir:     tmp,
		File:    "graph.log",
		NoColor: true,
		Console: &strings.Builder{},
	})
	require.NoError(t, err)
	logBootstrapGraph(InitGraph(), logger)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(tmp, "graph.log"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "init graph")
	for _, step := range InitGraph() {
		assert.Contains(t, content, step.ID)
	}
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	port := freePort(t)
	path, logDir := writeStubConfig(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, testOptions(path)) }()

	base := "http://127.0.0.1:" + strconv.Itoa(port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(base + "/api/analyze-skin")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	logContent, err := os.ReadFile(filepath.Join(logDir, "server.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logContent), "all services stopped")
}
