package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"poap-og-server/internal/domain/badge"
	"poap-og-server/internal/domain/compose"
	"poap-og-server/internal/domain/eventbus"
	"poap-og-server/internal/domain/freshness"
	domainimage "poap-og-server/internal/domain/image"
	"poap-og-server/internal/domain/preview"
	"poap-og-server/internal/domain/refresh"
	"poap-og-server/internal/domain/upload"
	platformconfig "poap-og-server/internal/platform/config"
	platformerrors "poap-og-server/internal/platform/errors"
	platformlogging "poap-og-server/internal/platform/logging"
	platformobservability "poap-og-server/internal/platform/observability"
	platformstorage "poap-og-server/internal/platform/storage"
	httptransport "poap-og-server/internal/transport/http"
	"poap-og-server/internal/util/work"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	loader     *platformconfig.Loader
	config     *platformconfig.Config
	configPath string
	fromFile   bool
	startedAt  time.Time

	logger                *platformlogging.Logger
	metrics               *platformobservability.Metrics
	observabilityShutdown platformobservability.ShutdownFunc

	db      *gorm.DB
	backend freshness.Backend
	cache   *freshness.Cache

	assets       *compose.Assets
	validator    *domainimage.Validator
	uploads      *work.WorkQueue[preview.UploadJob]
	orchestrator *preview.Orchestrator

	bus        *eventbus.AsyncEventBus
	refreshJob *refresh.Job
}

// Run loads configuration, wires every component, serves HTTP until SIGINT/SIGTERM,
// then drains background work.
func Run(ctx context.Context) error {
	state := &appState{loader: platformconfig.NewLoader(), startedAt: time.Now()}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close()
		return err
	}
	defer state.close()

	logger := state.logger
	logBootstrapGraph(logger, steps)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)

	state.bus.Start()
	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	return waitForShutdown(groupCtx, cancel, state, group)
}

func logBootstrapGraph(logger *platformlogging.Logger, steps []initStep) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "init graph")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("BOOT", "  %s: %s", step.ID, step.Title)
			continue
		}
		logger.InfoTag("BOOT", "  %s: %s (after %s)", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
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
			Title:     "Setup metrics and span hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Open sqlite database",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "cache:init-backend",
			Title:     "Initialise freshness cache",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   initCacheStep,
		},
		{
			ID:        "assets:load",
			Title:     "Load card layers and font",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   loadAssetsStep,
		},
		{
			ID:        "badge:init-validator",
			Title:     "Initialise badge validator",
			DependsOn: []string{"observability:setup-hooks"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initValidatorStep,
		},
		{
			ID:        "upload:init-pipeline",
			Title:     "Initialise upload pipeline and workers",
			DependsOn: []string{"observability:setup-hooks", "cache:init-backend"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initUploadStep,
		},
		{
			ID:        "preview:init-orchestrator",
			Title:     "Initialise preview orchestrator",
			DependsOn: []string{"assets:load", "badge:init-validator", "upload:init-pipeline"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initOrchestratorStep,
		},
		{
			ID:        "refresh:init-job",
			Title:     "Initialise warm-up job and event bus",
			DependsOn: []string{"preview:init-orchestrator"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initRefreshStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := state.loader
	if loader == nil {
		loader = platformconfig.NewLoader()
	}
	res, err := loader.Load()
	if err != nil {
		return err
	}
	state.config = res.Config
	state.configPath = res.Path
	state.fromFile = res.FromFile
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init-provider", "config not loaded")
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}
	state.logger = logger

	source := state.configPath
	if !state.fromFile {
		source = "defaults (no " + state.configPath + ")"
	}
	logger.InfoTag("BOOT", "logging ready [%s], config from %s", state.config.Log.Level, source)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state.logger == nil || state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "observability:setup-hooks", "config/logger not initialised")
	}

	metrics, shutdown, err := platformobservability.Setup(ctx, platformobservability.Config{
		Enabled: state.config.Metrics.Enabled,
	}, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.metrics = metrics
	state.observabilityShutdown = shutdown
	return nil
}

// initDatabaseStep opens sqlite only when the sqlite cache driver needs it.
func initDatabaseStep(_ context.Context, state *appState) error {
	if !strings.EqualFold(state.config.Cache.Driver, freshness.DriverSQLite) {
		return nil
	}
	dsn := state.config.Cache.SQLite.DSN
	if dsn == "" {
		dsn = state.config.Storage.DSN
	}
	db, err := platformstorage.Open(dsn)
	if err != nil {
		return err
	}
	state.db = db
	state.logger.InfoTag("BOOT", "sqlite ready at %s", dsn)
	return nil
}

func initCacheStep(_ context.Context, state *appState) error {
	cfg := state.config.Cache
	backend, err := freshness.New(freshness.Config{
		Driver: cfg.Driver,
		Prefix: cfg.Prefix,
		Redis: freshness.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		Cloudflare: freshness.CloudflareConfig{
			BaseURL:     cfg.Cloudflare.BaseURL,
			AccountID:   cfg.Cloudflare.AccountID,
			NamespaceID: cfg.Cloudflare.NamespaceID,
			APIToken:    cfg.Cloudflare.APIToken,
			Timeout:     cfg.Cloudflare.Timeout,
		},
	}, freshness.Dependencies{SQLiteDB: state.db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "cache:init-backend", "failed to create "+cfg.Driver+" backend", err)
	}
	state.backend = backend
	state.cache = freshness.NewCache(backend, state.logger)
	state.logger.InfoTag("CACHE", "freshness cache ready (%s, window %s)", cfg.Driver, cfg.Window)
	return nil
}

func loadAssetsStep(_ context.Context, state *appState) error {
	cfg := state.config.Assets
	assets, err := compose.LoadAssets(compose.AssetPaths{
		Dir:          cfg.Dir,
		Background:   cfg.Background,
		Foreground:   cfg.Foreground,
		DefaultBadge: cfg.DefaultBadge,
		Font:         cfg.Font,
	}, state.logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "assets:load", "failed to load assets from "+filepath.Clean(cfg.Dir), err)
	}
	state.assets = assets
	return nil
}

func initValidatorStep(_ context.Context, state *appState) error {
	cfg := state.config.Image
	opts := domainimage.Options{
		Fetcher: domainimage.NewHTTPFetcher(cfg.FetchTimeout, cfg.MaxBadgeBytes),
		Logger:  state.logger,
	}
	if state.metrics != nil {
		opts.OnConvert = state.metrics.BadgeConversions.Inc
	}
	state.validator = domainimage.NewValidator(opts)
	return nil
}

func initUploadStep(ctx context.Context, state *appState) error {
	cfg := state.config.Upload
	logger := state.logger

	cdn, err := upload.NewCDN(ctx, upload.CDNConfig{
		Driver: cfg.Driver,
		Cloudflare: upload.CloudflareConfig{
			BaseURL:   cfg.Cloudflare.BaseURL,
			AccountID: cfg.Cloudflare.AccountID,
			APIToken:  cfg.Cloudflare.APIToken,
		},
		S3: upload.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
			UsePathStyle:    cfg.S3.UsePathStyle,
			Prefix:          cfg.S3.Prefix,
		},
	})
	if err != nil {
		logger.WarnTag("UPLOAD", "%s cdn unavailable, cards will not be cached: %v", cfg.Driver, err)
		cdn = upload.Disabled{Reason: err.Error()}
	}

	pipeline := upload.NewPipeline(upload.Options{
		CDN:         cdn,
		Cache:       state.cache,
		JPEGQuality: cfg.JPEGQuality,
		Metrics:     state.metrics,
		Logger:      logger,
	})

	timeout := cfg.Timeout
	state.uploads = work.NewWorkQueue(work.Options[preview.UploadJob]{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		OnError: func(item work.WorkItem[preview.UploadJob], err error) {
			logger.ErrorTag("UPLOAD", "upload for %s failed after %s: %v",
				item.Data.Address, time.Since(item.CreatedAt).Round(time.Millisecond), err)
		},
	}, func(ctx context.Context, job preview.UploadJob) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return pipeline.Upload(ctx, job.PNG, job.Address)
	})
	logger.InfoTag("UPLOAD", "%d upload workers ready (queue %d)", cfg.Workers, cfg.QueueSize)
	return nil
}

func initOrchestratorStep(_ context.Context, state *appState) error {
	cfg := state.config
	orchestrator, err := preview.New(preview.Options{
		Cache:        state.cache,
		Window:       cfg.Cache.Window,
		Badges:       badge.NewClient(cfg.Badge.BaseURL, cfg.Badge.APIKey, cfg.Badge.Timeout),
		Validator:    state.validator,
		Assets:       state.assets,
		Uploads:      state.uploads,
		SharedKey:    cfg.Preview.SharedKey,
		MaxPostBytes: cfg.Preview.MaxPostBytes,
		Metrics:      state.metrics,
		Logger:       state.logger,
	})
	if err != nil {
		return err
	}
	if cfg.Badge.APIKey == "" {
		state.logger.WarnTag("BOOT", "POAP_API_KEY is not set, GET previews will fail")
	}
	if cfg.Preview.SharedKey == "" {
		state.logger.WarnTag("BOOT", "POAP_OG_SHARED_KEY is not set, POST previews are disabled")
	}
	state.orchestrator = orchestrator
	return nil
}

func initRefreshStep(_ context.Context, state *appState) error {
	cfg := state.config.Refresh
	state.bus = eventbus.NewAsyncEventBus(cfg.Workers, cfg.BufferSize, state.logger)

	handler := eventbus.NewWarmHandler(state.orchestrator, cfg.Timeout, state.metrics.WarmEvents, state.logger)
	if err := eventbus.SetupWarmHandler(state.bus, handler); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "refresh:init-job", "subscribe warm handler", err)
	}

	state.refreshJob = refresh.NewJob(refresh.Options{
		Mints:            refresh.NewGraphQLClient(cfg.GraphQLURL, cfg.Timeout),
		Store:            state.backend,
		Publisher:        state.bus,
		CronSecret:       cfg.CronSecret,
		WatermarkKey:     cfg.WatermarkKey,
		DefaultWatermark: cfg.DefaultWatermark,
		Logger:           state.logger,
	})
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		httptransport.RespondError(c, http.StatusNotFound, "not found", gin.H{})
	})

	httptransport.NewPreviewHandler(state.orchestrator, config.Preview.MaxPostBytes).RegisterRoutes(httpRouter)
	httptransport.NewHealthHandler(state.startedAt).RegisterRoutes(httpRouter)
	httptransport.NewDocsHandler().RegisterRoutes(httpRouter)
	if config.Metrics.Enabled {
		httptransport.NewMetricsHandler(state.metrics.Registry).RegisterRoutes(httpRouter)
	}
	if config.Refresh.Enabled {
		httptransport.NewRefreshHandler(state.refreshJob, logger).RegisterRoutes(httpRouter)
	}

	addr := net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "http shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "http server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "http server failed: %v", err)
			return platformerrors.Wrap(platformerrors.KindTransport, "http:serve", "listen on "+addr, err)
		}
		return nil
	})

	return httpServer, nil
}

// waitForShutdown blocks until a signal or a server failure, then stops HTTP, the
// event bus and the upload workers, in that order.
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	state *appState,
	g *errgroup.Group,
) error {
	logger := state.logger
	<-ctx.Done()
	logger.InfoTag("BOOT", "shutting down: %v", context.Cause(ctx))

	cancel()

	timeout := state.config.Server.ShutdownTimeout
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	var serveErr error
	select {
	case serveErr = <-done:
	case <-time.After(timeout):
		logger.ErrorTag("BOOT", "http shutdown timed out after %s", timeout)
		serveErr = errors.New("shutdown timed out")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), timeout)
	defer drainCancel()
	if err := state.drain(drainCtx); err != nil {
		logger.ErrorTag("BOOT", "background work not drained: %v", err)
		if serveErr == nil {
			serveErr = err
		}
	}

	if serveErr != nil {
		return serveErr
	}
	logger.InfoTag("BOOT", "all services stopped")
	return nil
}

// drain stops producers before consumers: warm-up events submit uploads.
func (s *appState) drain(ctx context.Context) error {
	var errs []error
	if s.bus != nil {
		if err := s.bus.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
	}
	if s.uploads != nil {
		stats := s.uploads.Stats()
		s.logger.InfoTag("UPLOAD", "draining %d queued uploads", stats.Queued)
		if err := s.uploads.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("upload queue: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *appState) close() {
	if s.observabilityShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.observabilityShutdown(shutdownCtx); err != nil {
			s.logger.WarnTag("BOOT", "observability shutdown failed: %v", err)
		}
		cancel()
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.WarnTag("CACHE", "closing backend failed: %v", err)
		}
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil {
			s.logger.WarnTag("BOOT", "closing database failed: %v", err)
		}
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}
