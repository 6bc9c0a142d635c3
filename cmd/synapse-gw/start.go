package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattjoyce/synapse-gw/internal/admission"
	"github.com/mattjoyce/synapse-gw/internal/api"
	"github.com/mattjoyce/synapse-gw/internal/auth"
	"github.com/mattjoyce/synapse-gw/internal/backend"
	"github.com/mattjoyce/synapse-gw/internal/config"
	"github.com/mattjoyce/synapse-gw/internal/dispatch"
	"github.com/mattjoyce/synapse-gw/internal/events"
	"github.com/mattjoyce/synapse-gw/internal/history"
	"github.com/mattjoyce/synapse-gw/internal/lock"
	"github.com/mattjoyce/synapse-gw/internal/log"
	"github.com/mattjoyce/synapse-gw/internal/metrics"
	"github.com/mattjoyce/synapse-gw/internal/operation"
	"github.com/mattjoyce/synapse-gw/internal/scheduler"
	"github.com/mattjoyce/synapse-gw/internal/storage"
	"github.com/mattjoyce/synapse-gw/internal/synapse"
	"github.com/mattjoyce/synapse-gw/internal/telemetry"
)

const eventReplayCapacity = 256

// gateway is a fully wired service, ready to serve.
type gateway struct {
	server    *api.Server
	scheduler *scheduler.Scheduler
	registry  *operation.Registry
	db        *sql.DB
}

func (g *gateway) Close() error {
	g.scheduler.Close()
	if g.db != nil {
		return g.db.Close()
	}
	return nil
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		*configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", *configPath)
	}

	cfg, err := loadConfigForTool(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.SetupWith(log.Options{
		Level:      cfg.Service.LogLevel,
		Format:     cfg.Service.LogFormat,
		File:       cfg.Service.LogFile,
		MaxSizeMB:  cfg.Service.LogMaxSizeMB,
		MaxBackups: cfg.Service.LogMaxBackups,
		MaxAgeDays: cfg.Service.LogMaxAgeDays,
	})
	logger := log.WithComponent("main")
	logger.Info("synapse-gw starting", "version", version, "config", cfg.SourcePath, "fingerprint", cfg.Fingerprint)
	for _, w := range configWarnings(cfg) {
		logger.Warn("configuration warning", "warning", w)
	}

	pidLock, err := lock.Acquire(cfg.Service.LockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", cfg.Service.LockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Service.Name, cfg.Telemetry, os.Stdout)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		return 1
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	gw, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build gateway", "error", err)
		return 1
	}
	defer gw.Close()

	logger.Info("synapse-gw running (press Ctrl+C to stop)", "listen", cfg.API.Listen, "tasks", gw.registry.Tasks())

	if err := gw.server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("component failed", "error", err)
		return 1
	}

	logger.Info("synapse-gw stopped")
	return 0
}

// buildGateway wires storage, metrics, admission, the worker backend, the
// sealed operation registry and the HTTP server from cfg.
func buildGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gateway, error) {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	gw := &gateway{
		scheduler: scheduler.New(cfg.Scheduler.MaxConcurrent, log.WithComponent("scheduler")),
		registry:  operation.NewRegistry(),
	}

	var store *history.Store
	if cfg.Storage.Enabled {
		db, err := storage.OpenSQLite(ctx, cfg.Storage.Path)
		if err != nil {
			gw.scheduler.Close()
			return nil, fmt.Errorf("open history database %s: %w", cfg.Storage.Path, err)
		}
		gw.db = db
		store = history.New(db)
		logger.Info("database opened", "path", cfg.Storage.Path)
	}

	hub := events.NewHub(eventReplayCapacity)

	gauges := []struct {
		name, help string
		fn         func() float64
	}{
		{"scheduler_pending", "Admitted queries waiting for a dispatch slot.", func() float64 { return float64(gw.scheduler.Pending()) }},
		{"scheduler_active", "Queries currently holding a dispatch slot.", func() float64 { return float64(gw.scheduler.Active()) }},
		{"events_subscribers", "Connected event stream subscribers.", func() float64 { return float64(hub.Subscribers()) }},
		{"events_dropped", "Event deliveries skipped for full subscribers.", func() float64 { return float64(hub.Dropped()) }},
	}
	for _, g := range gauges {
		if err := m.RegisterGauge(cfg.Metrics.Namespace, g.name, g.help, g.fn); err != nil {
			_ = gw.Close()
			return nil, fmt.Errorf("register gauge %s: %w", g.name, err)
		}
	}

	policy := admission.NewPolicy(cfg.Admission)
	worker := backend.New(
		backend.WithMetrics(m),
		backend.WithLogger(log.WithComponent("backend")),
	)

	ops := map[synapse.Task]operation.Operation{
		synapse.TaskTextToSpeechClone: operation.NewTextToSpeechClone(worker, cfg.Worker.BaseURL, cfg.Worker.Timeout, policy, log.WithTask(string(synapse.TaskTextToSpeechClone))),
		synapse.TaskAvailableTasks:    operation.NewAvailableTasks(gw.registry, policy),
	}
	for task, op := range ops {
		if err := gw.registry.Register(task, op); err != nil {
			_ = gw.Close()
			return nil, fmt.Errorf("register %s: %w", task, err)
		}
	}
	gw.registry.Seal()

	execOpts := []dispatch.Option{
		dispatch.WithScheduler(gw.scheduler),
		dispatch.WithEvents(hub),
		dispatch.WithMetrics(m),
		dispatch.WithLogger(log.WithComponent("dispatch")),
	}
	deps := api.Deps{
		Tasks:     gw.registry,
		Events:    hub,
		Scheduler: gw.scheduler,
	}
	if store != nil {
		execOpts = append(execOpts, dispatch.WithRecorder(store))
		deps.History = store
	}
	if m != nil {
		deps.Metrics = m.Handler()
	}
	deps.Executor = dispatch.New(gw.registry, execOpts...)

	tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
	for _, t := range cfg.API.Auth.Tokens {
		tokens = append(tokens, auth.TokenConfig{
			Token:  t.Token,
			Caller: t.Caller,
			Scopes: t.Scopes,
		})
	}

	server, err := api.New(api.Config{
		Listen:       cfg.API.Listen,
		ServiceName:  cfg.Service.Name,
		Version:      version,
		APIKey:       cfg.API.Auth.APIKey,
		Tokens:       tokens,
		CORSOrigins:  cfg.API.CORSOrigins,
		MaxBodyBytes: cfg.API.MaxBodyBytes,
		MetricsPath:  cfg.Metrics.Path,
		WriteTimeout: cfg.Worker.Timeout + 30*time.Second,
	}, deps, log.WithComponent("api"))
	if err != nil {
		_ = gw.Close()
		return nil, err
	}
	gw.server = server

	return gw, nil
}
