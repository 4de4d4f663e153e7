// Package server builds the application's dependencies from configuration
// and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/api"
	"github.com/JakeFAU/wowhead-parser/internal/app"
	"github.com/JakeFAU/wowhead-parser/internal/clock/system"
	"github.com/JakeFAU/wowhead-parser/internal/config"
	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/hash/sha256"
	"github.com/JakeFAU/wowhead-parser/internal/id/uuid"
	"github.com/JakeFAU/wowhead-parser/internal/parser"
	"github.com/JakeFAU/wowhead-parser/internal/progress"
	progresssinks "github.com/JakeFAU/wowhead-parser/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/wowhead-parser/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/wowhead-parser/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/wowhead-parser/internal/storage/gcs"
	localstorage "github.com/JakeFAU/wowhead-parser/internal/storage/local"
	memorystorage "github.com/JakeFAU/wowhead-parser/internal/storage/memory"
	pgstore "github.com/JakeFAU/wowhead-parser/internal/storage/postgres"
	"github.com/JakeFAU/wowhead-parser/internal/telemetry"

	// Site parsers register themselves.
	_ "github.com/JakeFAU/wowhead-parser/internal/parser/wowhead"
)

const (
	shutdownTimeout = 30 * time.Second
	hubCloseTimeout = 5 * time.Second
)

// Options adjust Build for the calling command.
type Options struct {
	// AllowExternalLists lets list runs read WELF files outside entry_list.dir.
	AllowExternalLists bool
	// Version is reported on trace resources.
	Version string
}

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	service *app.Service
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Service returns the run service.
func (a *App) Service() *app.Service {
	return a.service
}

// Build creates the application's dependencies. On error everything built
// so far is released.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.closeInfrastructure()
		}
	}()

	logger.Info("building application dependencies",
		zap.String("fetcher", cfg.Fetcher.Kind),
		zap.Bool("headless_promote", cfg.Headless.Promote),
		zap.String("entry_list_dir", cfg.EntryList.Dir),
	)

	if err := a.setupTracing(ctx, opts.Version); err != nil {
		return nil, err
	}
	fetcher, err := a.setupFetcher()
	if err != nil {
		return nil, err
	}
	objects, err := a.setupStorage(ctx)
	if err != nil {
		return nil, err
	}
	runs, recorder, err := a.setupDatabase(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}
	emitter, err := a.setupProgress()
	if err != nil {
		return nil, err
	}

	deps := app.Deps{
		Registry:  parser.Default(),
		Fetcher:   fetcher,
		Clock:     system.New(nil),
		IDs:       uuid.NewUUIDGenerator(),
		Objects:   objects,
		Runs:      runs,
		Publisher: publisher,
		Emitter:   emitter,
		Logger:    logger,
	}
	if recorder != nil {
		deps.Recorder = recorder
	}
	service, err := app.New(app.Config{
		EntryListDir:       cfg.EntryList.Dir,
		EntryListExt:       cfg.EntryList.Extension,
		AllowExternalLists: opts.AllowExternalLists,
		OutputPrefix:       cfg.Output.Prefix,
		ContentType:        cfg.Output.ContentType,
		Topic:              cfg.PubSub.TopicName,
		FetchTimeout:       cfg.FetchTimeout(),
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("run service init failed: %w", err)
	}
	a.service = service
	ok = true
	return a, nil
}

// Serve runs the HTTP API until ctx is canceled or SIGINT/SIGTERM arrives,
// then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewServer(a.service, a.cfg.Auth, a.logger.Named("api")).Handler()
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close stops background runs, then flushes telemetry and releases clients
// in reverse order of construction.
func (a *App) Close(ctx context.Context) error {
	var err error
	if a.service != nil {
		if closeErr := a.service.Close(ctx); closeErr != nil {
			a.logger.Warn("run service close failed", zap.Error(closeErr))
			err = closeErr
		}
	}
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	return err
}

func (a *App) closeInfrastructure() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("close failed", zap.String("component", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

func (a *App) setupStorage(ctx context.Context) (crawler.ObjectStore, error) {
	if bucket := a.cfg.Output.GCSBucket; bucket != "" {
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: bucket}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("gcs dump store init failed: %w", err)
		}
		a.onClose("gcs", store.Close)
		a.logger.Info("using GCS dump storage", zap.String("bucket", bucket))
		return store, nil
	}
	store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Output.Dir})
	if err != nil {
		return nil, fmt.Errorf("local dump store init failed: %w", err)
	}
	a.logger.Info("using local dump storage", zap.String("dir", a.cfg.Output.Dir))
	return store, nil
}

func (a *App) setupDatabase(ctx context.Context) (crawler.RunStore, crawler.BlockRecorder, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("no database DSN configured, keeping run snapshots in memory and skipping the block ledger")
		return memorystorage.NewRunStore(), nil, nil
	}
	pool, err := pgstore.Connect(ctx, pgstore.Config{
		DSN:      a.cfg.DB.DSN,
		MaxConns: int32(a.cfg.DB.MaxConns),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("database init failed: %w", err)
	}
	a.onClose("postgres", func() error {
		pool.Close()
		return nil
	})
	runs, recorder, err := postgresStores(pool, a.cfg.DB.Table)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("postgres stores initialized", zap.String("block_table", a.cfg.DB.Table))
	return runs, recorder, nil
}

func postgresStores(pool *pgxpool.Pool, table string) (*pgstore.RunStore, *pgstore.BlockStore, error) {
	runs, err := pgstore.NewRunStore(pool)
	if err != nil {
		return nil, nil, fmt.Errorf("run store init failed: %w", err)
	}
	blocks, err := pgstore.NewBlockStoreWithPool(pool, table, sha256.New())
	if err != nil {
		return nil, nil, fmt.Errorf("block store init failed: %w", err)
	}
	return runs, blocks, nil
}

func (a *App) setupPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		a.logger.Info("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	pub, err := gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName, a.logger.Named("pubsub"))
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.onClose("pubsub", pub.Close)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return pub, nil
}

func (a *App) setupProgress() (progress.Emitter, error) {
	promSink, err := progresssinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, fmt.Errorf("progress metrics init failed: %w", err)
	}
	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   a.cfg.BatchWait(),
		Logger:         a.logger.Named("progress_hub"),
	}
	hub := progress.NewHub(hubCfg,
		progresssinks.NewLogSink(a.logger),
		promSink,
	)
	a.onClose("progress hub", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), hubCloseTimeout)
		defer cancel()
		return hub.Close(ctx)
	})
	a.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return hub, nil
}

func (a *App) setupTracing(ctx context.Context, version string) error {
	if version == "" {
		version = "dev"
	}
	tp, err := telemetry.InitTracerProvider(ctx, "wowhead-parser", version)
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.onClose("tracer", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), hubCloseTimeout)
		defer cancel()
		return tp.Shutdown(shutdownCtx)
	})
	return nil
}
