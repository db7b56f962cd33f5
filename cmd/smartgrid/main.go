package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/auth"
	"github.com/nithinbasa/SmartGrid/internal/config"
	"github.com/nithinbasa/SmartGrid/internal/control"
	"github.com/nithinbasa/SmartGrid/internal/dashboard"
	"github.com/nithinbasa/SmartGrid/internal/errors"
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/mirror"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/nithinbasa/SmartGrid/internal/pid"
	"github.com/nithinbasa/SmartGrid/internal/pipeline"
	"github.com/nithinbasa/SmartGrid/internal/source"
	"github.com/nithinbasa/SmartGrid/internal/storage"
	"github.com/nithinbasa/SmartGrid/internal/telemetry"
	"github.com/nithinbasa/SmartGrid/internal/websocket"
)

const (
	shutdownTimeout = 10 * time.Second
	connectTimeout  = 5 * time.Second
)

type app struct {
	source    source.ReadingSource
	collector telemetry.Collector
	mirror    *mirror.Mirror
	hub       *websocket.Hub
	engine    *monitor.Engine
	runner    *pipeline.Runner
	server    *http.Server
}

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Str("config", cfg.String()).Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		if coded, ok := err.(errors.Error); ok {
			logger.FatalWithCode(coded).Msg("Failed to write pid file")
		}
		logger.Fatal().Err(err).Msg("Failed to write pid file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	a, err := newApp()
	if err != nil {
		_ = pid.Remove()
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}

	if err := a.loop(ctx); err != nil {
		logger.Error().Err(err).Msg("Error in main loop")
	}
	a.cleanup()
}

func newApp() (*app, error) {
	errFactory := errors.New()
	a := &app{}

	src, err := source.New(cfg)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}
	a.source = src

	telemetryCfg := telemetry.DefaultConfig(cfg.TelemetryDB)
	telemetryCfg.Enabled = cfg.Telemetry
	a.collector, err = telemetry.NewService(telemetryCfg, logger.WithComponent("telemetry"))
	if err != nil {
		src.Close()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	a.hub = websocket.NewHub(logger.WithComponent("websocket"))

	engineOpts := []monitor.Option{
		monitor.WithCooldown(cfg.Cooldown),
		monitor.WithObserver(pipeline.NewAlertMetrics(logger.WithComponent("alerts"))),
		monitor.WithObserver(a.hub),
		monitor.WithObserver(a.collector),
	}
	controlOpts := []control.Option{control.WithObserver(a.hub)}

	if cfg.MirrorEnabled() {
		sink, err := openSink(src)
		if err != nil {
			a.closeStores()
			return nil, errFactory.Wrap(errors.ErrInitApp, err)
		}

		// The store keeps the switch positions across restarts; updates
		// merge onto what it holds.
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		loads, err := control.Restore(ctx, sink)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to restore load state, using defaults")
		}

		a.mirror = mirror.New(sink, mirror.DefaultQueueSize, logger.WithComponent("mirror"))
		engineOpts = append(engineOpts, monitor.WithObserver(a.mirror))
		controlOpts = append(controlOpts, control.WithInitialState(loads), control.WithObserver(a.mirror))
	}

	a.engine, err = monitor.NewEngine(cfg.ThresholdConfig(), engineOpts...)
	if err != nil {
		a.closeStores()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	buffer := storage.NewReadingBuffer(cfg.HistorySize)
	controller := control.NewController(controlOpts...)

	a.runner = pipeline.NewRunner(src, a.engine, buffer, a.collector, a.hub, logger.WithComponent("pipeline"))

	srv := dashboard.NewServer(dashboard.Deps{
		Engine:     a.engine,
		Buffer:     buffer,
		Controller: controller,
		Auth:       auth.NewManager(cfg.Auth),
		Hub:        a.hub,
		History:    a.collector,
		Logger:     logger.WithComponent("dashboard"),
		SourceName: src.Name(),
		AlertLimit: cfg.AlertLimit,
	})
	a.server = &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// openSink connects to the mirror store, or shares the remote feed
// connection when no separate store is configured.
func openSink(src source.ReadingSource) (*mirror.RedisSink, error) {
	if cfg.Mirror.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return mirror.DialRedisSink(ctx, cfg.Mirror)
	}

	remote, ok := src.(*source.RemoteSource)
	if !ok {
		return nil, errors.New().WithMessage(errors.ErrInvalidConfig, "mirror requires mirror.addr or a remote source")
	}
	return mirror.NewRedisSink(remote.Client()), nil
}

func (a *app) loop(ctx context.Context) error {
	errFactory := errors.New()

	if err := a.runner.Seed(ctx, cfg.HistorySize); err != nil {
		logger.Warn().Err(err).Msg("Starting without history")
	}

	if a.source.Name() == source.NameSimulated {
		a.engine.Notice(monitor.SeverityInfo, "Demo mode active - showing simulated data")
		a.engine.Notice(monitor.SeverityWarning, "Configure a remote feed for live data")
	}
	a.engine.Notice(monitor.SeveritySuccess, "System initialized successfully")

	go a.hub.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", a.server.Addr).Msg("Dashboard listening")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- errFactory.Wrap(errors.ErrHTTPServe, err)
		}
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- a.runner.Run(ctx) }()

	select {
	case err := <-serveErr:
		return err
	case err := <-runErr:
		return err
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func (a *app) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down dashboard")
	}
	a.closeStores()
	if err := pid.Remove(); err != nil {
		logger.Error().Err(err).Msg("Failed to remove pid file")
	}
	logger.Info().Msg("Exiting...")
}

// closeStores flushes the mirror before the source, since the redis sink
// may share the source connection.
func (a *app) closeStores() {
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close mirror")
		}
	}
	if a.collector != nil {
		if err := a.collector.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close telemetry")
		}
	}
	if err := a.source.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close reading source")
	}
}
