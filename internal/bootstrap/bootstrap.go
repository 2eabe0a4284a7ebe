package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/dfeirstein/the-skin-lab/internal/core/providers/vision"
	domainanalysis "github.com/dfeirstein/the-skin-lab/internal/domain/analysis"
	"github.com/dfeirstein/the-skin-lab/internal/domain/eventbus"
	domainimage "github.com/dfeirstein/the-skin-lab/internal/domain/image"
	ratelimitstore "github.com/dfeirstein/the-skin-lab/internal/domain/ratelimit/store"
	platformconfig "github.com/dfeirstein/the-skin-lab/internal/platform/config"
	platformerrors "github.com/dfeirstein/the-skin-lab/internal/platform/errors"
	platformlogging "github.com/dfeirstein/the-skin-lab/internal/platform/logging"
	platformobservability "github.com/dfeirstein/the-skin-lab/internal/platform/observability"
	httptransport "github.com/dfeirstein/the-skin-lab/internal/transport/http"
	httpanalysis "github.com/dfeirstein/the-skin-lab/internal/transport/http/analysis"
)

const defaultShutdownTimeout = 15 * time.Second

// Options tune how Run loads its configuration.
type Options struct {
	// ConfigPath pins the config file; empty searches the working directory.
	ConfigPath string
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
	// DisableDotEnv skips loading .env.
	DisableDotEnv bool
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	options               Options
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	bus                   *eventbus.Bus
	limiter               ratelimitstore.Store
	imagePipeline         *domainimage.Pipeline
	relay                 *domainanalysis.Relay
}

// Run starts the server and blocks until ctx is cancelled or SIGINT/SIGTERM
// arrives, then shuts down within server.shutdown_timeout.
func Run(ctx context.Context, opts Options) error {
	state := &appState{options: opts}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close(context.Background())
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil || state.relay == nil {
		state.close(context.Background())
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger/relay not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(rootCtx)

	// A server that dies on its own cancels groupCtx and triggers shutdown too.
	signalCtx, stop := signal.NotifyContext(groupCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		state.close(context.Background())
		return fmt.Errorf("start http server: %w", err)
	}

	waitErr := waitForShutdown(signalCtx, cancel, shutdownTimeout(config), logger, group)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	closeErr := state.close(closeCtx)

	if waitErr != nil {
		return waitErr
	}
	return closeErr
}

// close releases everything the init steps acquired. Safe on partial state.
func (s *appState) close(ctx context.Context) error {
	var result *multierror.Error

	if s.limiter != nil {
		if err := s.limiter.Close(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("close rate limit store: %w", err))
		}
	}
	if s.bus != nil {
		s.bus.Wait()
	}
	if s.observabilityShutdown != nil {
		if err := s.observabilityShutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("shutdown observability: %w", err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		s.logger.ErrorTag(platformlogging.TagBootstrap, "shutdown incomplete: %v", err)
	}
	if s.logger != nil {
		s.logger.InfoTag(platformlogging.TagBootstrap, "bye")
		if err := s.logger.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close logger: %w", err))
		}
	}
	return result.ErrorOrNil()
}

func shutdownTimeout(config *platformconfig.Config) time.Duration {
	if config.Server.ShutdownTimeout > 0 {
		return config.Server.ShutdownTimeout
	}
	return defaultShutdownTimeout
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag(platformlogging.TagBootstrap, "init graph")
	for _, step := range steps {
		logger.InfoTag(platformlogging.TagBootstrap, "  %s (%s)", step.ID, step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "eventbus:setup-handlers",
			Title:     "Subscribe analysis lifecycle handlers",
			DependsOn: []string{"observability:setup-hooks"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupEventBusStep,
		},
		{
			ID:        "ratelimit:init-store",
			Title:     "Initialise rate limit store",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initRateLimitStep,
		},
		{
			ID:        "analysis:init-relay",
			Title:     "Initialise vision provider and analysis relay",
			DependsOn: []string{"eventbus:setup-handlers"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initAnalysisStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := platformconfig.NewLoader().WithDotEnv(!state.options.DisableDotEnv)
	if state.options.ConfigPath != "" {
		loader = loader.WithPath(state.options.ConfigPath)
	}
	if state.options.Environment != nil {
		loader = loader.WithEnvironment(state.options.Environment)
	}

	result, err := loader.Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load configuration", err)
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:   state.config.Log.Level,
		Dir:     state.config.Log.Dir,
		File:    state.config.Log.File,
		NoColor: state.config.Log.NoColor,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logger
	state.slogger = logger.Slog()
	logger.InfoTag(platformlogging.TagBootstrap, "logging ready [%s] config=%s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	shutdown, err := platformobservability.Setup(ctx, platformobservability.Config{
		Tracing: state.config.Observability.Tracing,
		Metrics: state.config.Observability.Metrics,
	}, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func setupEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.New()
	if err := eventbus.SetupAnalysisHandlers(bus, state.logger); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "eventbus:setup-handlers", "failed to subscribe analysis handlers", err)
	}
	state.bus = bus
	return nil
}

func initRateLimitStep(_ context.Context, state *appState) error {
	cfg := state.config.RateLimit
	if !cfg.Enabled {
		state.logger.InfoTag(platformlogging.TagRateLimit, "disabled")
		return nil
	}

	storeCfg := ratelimitstore.Config{
		Driver: cfg.Driver,
		Limit:  cfg.Limit,
		Window: cfg.Window,
	}
	if cfg.Driver == ratelimitstore.DriverRedis {
		storeCfg.Redis = &ratelimitstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Prefix,
		}
	}

	limiter, err := ratelimitstore.New(storeCfg)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "ratelimit:init-store", "failed to create rate limit store", err)
	}
	state.limiter = limiter
	state.logger.InfoTag(platformlogging.TagRateLimit, "%s store: %d requests per %s", cfg.Driver, cfg.Limit, cfg.Window)
	return nil
}

func initAnalysisStep(_ context.Context, state *appState) error {
	cfg := state.config
	streamer, err := vision.New(cfg.Analysis, state.logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "analysis:init-relay", "failed to create vision provider", err)
	}

	state.imagePipeline = domainimage.NewPipeline(domainimage.Options{
		Limits: cfg.Image,
		Logger: state.logger,
	})

	var publisher eventbus.Publisher
	if state.bus != nil {
		publisher = state.bus
	}
	relay, err := domainanalysis.NewRelay(domainanalysis.Options{
		Streamer:  streamer,
		Encoder:   state.imagePipeline,
		Publisher: publisher,
		MaxTokens: cfg.Analysis.MaxTokens,
		Provider:  cfg.Analysis.Provider,
		Model:     cfg.Analysis.Model,
		Logger:    state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "analysis:init-relay", "failed to create analysis relay", err)
	}
	state.relay = relay
	state.logger.InfoTag(platformlogging.TagAnalysis, "provider=%s model=%s max_tokens=%d",
		cfg.Analysis.Provider, cfg.Analysis.Model, relay.MaxTokens())
	return nil
}

func buildRouter(state *appState) (*httptransport.Router, error) {
	router, err := httptransport.Build(httptransport.Options{
		Config: state.config,
		Logger: state.logger,
	})
	if err != nil {
		return nil, err
	}
	httptransport.RegisterDocs(router.Engine, state.logger)

	var limiter gin.HandlerFunc
	if state.limiter != nil {
		limiter = httptransport.RateLimit(state.limiter, state.logger)
	}
	service, err := httpanalysis.NewService(httpanalysis.Options{
		Analyzer:      state.relay,
		Logger:        state.logger,
		MaxUploadSize: state.imagePipeline.MaxFileSize(),
		Limiter:       limiter,
	})
	if err != nil {
		return nil, err
	}
	if err := service.Register(context.Background(), router.API); err != nil {
		return nil, err
	}
	return router, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	router, err := buildRouter(state)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:listen", "failed to listen", err)
	}

	// No write timeout: analyses stream for as long as the model talks.
	httpServer := &http.Server{
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag(platformlogging.TagHTTP, "listening on http://%s", listener.Addr())
		logger.InfoTag(platformlogging.TagHTTP, "analysis endpoint: POST %s", "/api"+httpanalysis.Route)
		logger.InfoTag(platformlogging.TagHTTP, "api reference: http://%s/docs", listener.Addr())

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(config))
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag(platformlogging.TagHTTP, "graceful shutdown failed: %v", err)
			} else {
				logger.InfoTag(platformlogging.TagHTTP, "server stopped")
			}
		}()

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag(platformlogging.TagHTTP, "serve failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	timeout time.Duration,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag(platformlogging.TagBootstrap, "shutting down: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag(platformlogging.TagBootstrap, "shutdown finished with error: %v", err)
			return err
		}
		logger.InfoTag(platformlogging.TagBootstrap, "all services stopped")
	case <-time.After(timeout + time.Second):
		logger.ErrorTag(platformlogging.TagBootstrap, "shutdown timed out after %s", timeout)
		return platformerrors.New(platformerrors.KindBootstrap, "shutdown", "shutdown timed out")
	}
	return nil
}
