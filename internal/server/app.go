// Package server builds the application's dependencies and runs the HTTP service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bossmind/videomaker/internal/api"
	"github.com/bossmind/videomaker/internal/artifacts"
	"github.com/bossmind/videomaker/internal/clock"
	"github.com/bossmind/videomaker/internal/config"
	"github.com/bossmind/videomaker/internal/generation/openai"
	"github.com/bossmind/videomaker/internal/generation/stability"
	"github.com/bossmind/videomaker/internal/id"
	"github.com/bossmind/videomaker/internal/logging"
	"github.com/bossmind/videomaker/internal/publisher"
	memorypublisher "github.com/bossmind/videomaker/internal/publisher/memory"
	gcppublisher "github.com/bossmind/videomaker/internal/publisher/pubsub"
	"github.com/bossmind/videomaker/internal/publisher/webhook"
	"github.com/bossmind/videomaker/internal/ratelimit"
	"github.com/bossmind/videomaker/internal/scheduler"
	"github.com/bossmind/videomaker/internal/sheets"
	gcsstorage "github.com/bossmind/videomaker/internal/storage/gcs"
	localstorage "github.com/bossmind/videomaker/internal/storage/local"
	memorystorage "github.com/bossmind/videomaker/internal/storage/memory"
	pgstore "github.com/bossmind/videomaker/internal/storage/postgres"
	"github.com/bossmind/videomaker/internal/video"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	ring      *logging.Ring
	apiServer *api.Server
	scheduler *scheduler.Scheduler
	jobs      *memorystorage.JobStore
	sheets    *sheets.Reader

	notifications   *memorypublisher.Publisher
	pubsubPublisher *gcppublisher.Publisher
	storage         *storage.Client
	eventStore      *pgstore.EventStore
	redis           *redis.Client
}

// NewLogger builds the process logger described by cfg, teeing entries into ring when set.
func NewLogger(cfg config.LoggingConfig, ring *logging.Ring) (*zap.Logger, error) {
	opts := []logging.Option{}
	if ring != nil {
		opts = append(opts, logging.WithRing(ring))
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
		opts = append(opts, logging.WithLevel(level))
	}
	logger, err := logging.New(cfg.Development, opts...)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	return logger, nil
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	ring := logging.NewRing(cfg.Logging.RingSize)
	logger, err := NewLogger(cfg.Logging, ring)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger, ring: ring}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("id_scheme", cfg.Jobs.IDScheme),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
	)

	ids, err := id.ForScheme(cfg.Jobs.IDScheme)
	if err != nil {
		return nil, fmt.Errorf("id generator init failed: %w", err)
	}
	clk := clock.New()
	app.jobs = memorystorage.NewJobStore()

	pub, err := app.setupPublisher(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	events, err := app.setupEvents(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	blobs, err := app.setupStorage(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	app.sheets, err = NewSheetReader(ctx, cfg, logger.Named("sheets"))
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	limiter, err := app.setupRateLimit()
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	app.scheduler = scheduler.New(app.jobs, clk, pub, scheduler.Config{
		Interval:      cfg.Scheduler.Interval,
		Step:          cfg.Scheduler.Step,
		ResultMessage: cfg.Scheduler.ResultMessage,
	}, logger.Named("scheduler"))

	deps := api.Deps{
		Jobs:          app.jobs,
		IDs:           ids,
		Clock:         clk,
		Scheduler:     app.scheduler,
		Publisher:     pub,
		Events:        events,
		Sheets:        app.sheets,
		Artifacts:     artifacts.New(blobs, cfg.Storage.Prefix),
		Logs:          ring,
		Notifications: app.notifications,
		RateLimit:     limiter,
	}
	if cfg.Stability.APIKey != "" {
		deps.Images = stability.New(stability.Config{
			APIKey:  cfg.Stability.APIKey,
			BaseURL: cfg.Stability.BaseURL,
			Engine:  cfg.Stability.Engine,
			Timeout: cfg.Stability.Timeout,
		})
	} else {
		logger.Warn("STABILITY_API_KEY not set, image generation disabled")
	}
	if cfg.OpenAI.APIKey != "" {
		deps.Speech = openai.New(openai.Config{
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			Model:        cfg.OpenAI.Model,
			DefaultVoice: cfg.OpenAI.DefaultVoice,
			Format:       cfg.OpenAI.Format,
			Voices:       cfg.Languages.Voices,
			Timeout:      cfg.OpenAI.Timeout,
		})
	} else {
		logger.Warn("OPENAI_API_KEY not set, speech synthesis disabled")
	}

	app.apiServer = api.NewServer(deps, cfg, logger.Named("api"))
	return app, nil
}

// NewSheetReader builds the sheet reader for cfg. An unconfigured spreadsheet
// yields a reader whose calls report ErrNotConfigured with a hint.
func NewSheetReader(ctx context.Context, cfg config.Config, logger *zap.Logger) (*sheets.Reader, error) {
	defaults := sheets.Defaults{Languages: cfg.Languages.Defaults, Voices: cfg.Languages.Voices}
	var (
		src sheets.Source
		err error
	)
	switch cfg.Sheets.Source {
	case "api":
		src, err = sheets.NewAPISource(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, cfg.Sheets.ServiceAccountJSON)
	default:
		format := sheets.FormatCSV
		if cfg.Sheets.Format != "" {
			if format, err = sheets.ParseFormat(cfg.Sheets.Format); err != nil {
				return nil, fmt.Errorf("sheets.format: %w", err)
			}
		}
		src, err = sheets.NewExportSource(sheets.ExportConfig{
			SpreadsheetID: cfg.Sheets.SpreadsheetID,
			SheetName:     cfg.Sheets.SheetName,
			URL:           cfg.Sheets.URL,
			Format:        format,
			Timeout:       cfg.Sheets.Timeout,
		})
	}
	switch {
	case errors.Is(err, sheets.ErrNotConfigured):
		logger.Warn("no spreadsheet configured, sheet queue disabled")
		src = nil
	case err != nil:
		return nil, fmt.Errorf("sheet source init failed: %w", err)
	default:
		logger.Info("sheet source configured", zap.String("source", src.Name()))
	}
	return sheets.NewReader(src, defaults, cfg.Sheets.ReadyStatus, logger), nil
}

func (a *App) setupPublisher(ctx context.Context) (video.Publisher, error) {
	a.notifications = memorypublisher.New()
	targets := []video.Publisher{a.notifications}
	if a.cfg.Webhook.URL != "" {
		hook, err := webhook.New(webhook.Config{URL: a.cfg.Webhook.URL, Timeout: a.cfg.Webhook.Timeout})
		if err != nil {
			return nil, fmt.Errorf("webhook publisher init failed: %w", err)
		}
		targets = append(targets, hook)
		a.logger.Info("webhook publisher initialized")
	}
	if a.cfg.PubSub.ProjectID != "" && a.cfg.PubSub.TopicName != "" {
		p, err := gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		a.pubsubPublisher = p
		targets = append(targets, p)
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.TopicName),
		)
	}
	return publisher.NewMulti(targets...), nil
}

func (a *App) setupEvents(ctx context.Context) (video.EventStore, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("DATABASE_URL not set, events are kept in memory")
		return memorystorage.NewEventStore(0, a.logger.Named("events")), nil
	}
	store, err := pgstore.NewEventStore(ctx, pgstore.EventStoreConfig{
		DSN:             a.cfg.DB.DSN,
		Table:           a.cfg.DB.Table,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("event store init failed: %w", err)
	}
	a.eventStore = store
	a.logger.Info("event store initialized", zap.String("table", a.cfg.DB.Table))
	return store, nil
}

func (a *App) setupStorage(ctx context.Context) (video.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS artifact storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return blobs, nil
	case "local":
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local artifact storage", zap.String("path", a.cfg.Storage.LocalDir))
		return blobs, nil
	case "memory":
		a.logger.Info("using in-memory artifact storage")
		return memorystorage.NewBlobStore(), nil
	default:
		a.logger.Info("artifact storage disabled")
		return nil, nil
	}
}

func (a *App) setupRateLimit() (func(http.Handler) http.Handler, error) {
	if a.cfg.RateLimit.RedisURL == "" {
		if a.cfg.RateLimit.Requests <= 0 {
			return nil, nil
		}
		a.logger.Info("in-process rate limiter enabled",
			zap.Int("requests", a.cfg.RateLimit.Requests),
			zap.Duration("window", a.cfg.RateLimit.Window),
		)
		return ratelimit.NewLocal(ratelimit.LocalConfig{
			Limit:  a.cfg.RateLimit.Requests,
			Window: a.cfg.RateLimit.Window,
		}).Middleware, nil
	}
	opts, err := redis.ParseURL(a.cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("ratelimit.redis_url: %w", err)
	}
	a.redis = redis.NewClient(opts)
	a.logger.Info("rate limiter enabled",
		zap.Int("requests", a.cfg.RateLimit.Requests),
		zap.Duration("window", a.cfg.RateLimit.Window),
	)
	return ratelimit.Middleware(ratelimit.Config{
		Client: a.redis,
		Limit:  a.cfg.RateLimit.Requests,
		Window: a.cfg.RateLimit.Window,
		Logger: a.logger.Named("ratelimit"),
	}), nil
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run starts the scheduler and HTTP server and blocks until ctx is canceled,
// a termination signal arrives, or the listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schedDone := make(chan struct{})
	if a.cfg.Scheduler.Enabled {
		go func() {
			defer close(schedDone)
			a.logger.Info("scheduler started", zap.Duration("interval", a.cfg.Scheduler.Interval))
			a.scheduler.Run(ctx)
		}()
	} else {
		close(schedDone)
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
		stop()
	}
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("graceful shutdown timed out, closing connections", zap.Error(err))
		_ = srv.Close()
	}

	// ctx is done on every path here; publishers stay open until the last tick returns.
	<-schedDone
	a.Close()
	return runErr
}

// Close releases external clients and flushes the logger.
func (a *App) Close() {
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	// Sync fails on stderr for some platforms; nothing useful to do about it.
	_ = a.logger.Sync()
}

func (a *App) closeInfrastructure() {
	if a.pubsubPublisher != nil {
		if err := a.pubsubPublisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
		a.pubsubPublisher = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.eventStore != nil {
		a.eventStore.Close()
		a.eventStore = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
		a.redis = nil
	}
}
