package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/config"
	"github.com/jittakal/satbqueue/internal/config/dto"
	apperrors "github.com/jittakal/satbqueue/internal/errors"
	"github.com/jittakal/satbqueue/internal/markqueue"
	"github.com/jittakal/satbqueue/internal/marking"
	"github.com/jittakal/satbqueue/internal/mutator"
	"github.com/jittakal/satbqueue/internal/observability"
	"github.com/jittakal/satbqueue/internal/report"
	"github.com/jittakal/satbqueue/internal/server"
	"github.com/jittakal/satbqueue/internal/validator"
	"github.com/jittakal/satbqueue/internal/workload"
	pkgreport "github.com/jittakal/satbqueue/pkg/report"
)

const defaultConfigPath = "config/application.yaml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

// resolveConfigPath picks the configuration file.
// Priority: CLI flag > CONFIG_PATH env var > default path
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return defaultConfigPath
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.NewLoader().Load(resolveConfigPath(*configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting SATB marking simulator",
		zap.String("name", cfg.Application.Name),
		zap.String("version", cfg.Application.Version),
		zap.String("environment", cfg.Application.Environment),
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Marking infrastructure
	safepoint := mutator.NewSafepoint()
	threads := mutator.NewRegistry(safepoint, logger)
	marker := marking.NewMarker(marking.NewBitmap(cfg.Marking.HeapObjects), metrics)

	qs, err := markqueue.NewQueueSet(markqueue.Config{
		BufferCapacity:            cfg.Queue.BufferCapacity,
		ProcessCompletedThreshold: cfg.Queue.ProcessCompletedThreshold,
		EnqueueThresholdPercent:   cfg.Queue.EnqueueThresholdPercent,
		FilterBeforeEnqueue:       cfg.Queue.FilterBeforeEnqueue,
	}, threads, marker.Filter(), logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create queue set: %w", err)
	}

	drainer, err := marking.NewDrainer(qs, marker, marking.DrainerConfig{
		Workers:      cfg.Marking.Workers,
		PollInterval: cfg.Marking.PollInterval(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create drainer: %w", err)
	}

	coordinator, err := marking.NewCoordinator(qs, safepoint, marker, drainer, marking.CoordinatorConfig{
		ConcurrentPhase: cfg.Marking.ConcurrentPhase(),
		Threads:         threads,
	}, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}

	reporter, err := report.New(cfg.Report, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Error("Failed to close reporter", zap.Error(err))
		}
	}()

	// Health and metrics endpoints
	checker := server.NewQueueSetChecker(qs)
	httpServer := server.NewServer(cfg.Observability, checker, registry, logger)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := drainer.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start drainer: %w", err)
	}

	mutatorCtx, cancelMutators := context.WithCancel(context.Background())
	wg, err := startMutators(mutatorCtx, cfg, threads, qs, logger)
	if err != nil {
		cancelMutators()
		drainer.Stop()
		return err
	}

	checker.SetReady(true)
	logger.Info("Simulator started successfully",
		zap.Int("mutators", cfg.Workload.Mutators),
		zap.Int("shared_writers", cfg.Workload.SharedWriters),
		zap.String("report_sink", cfg.Report.Sink),
	)

	runErr := runCycles(ctx, coordinator, reporter, validator.NewCycleReportValidator(), cfg.Marking, logger)

	// Graceful shutdown
	logger.Info("Initiating graceful shutdown")
	checker.SetReady(false)

	cancelMutators()
	wg.Wait()

	drainer.Stop()
	if n := drainer.DrainAll(); n > 0 {
		logger.Info("Drained remaining buffers", zap.Int("buffers", n))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	stats := qs.Stats()
	logger.Info("Simulator stopped successfully",
		zap.Int64("buffers_enqueued", stats.BuffersEnqueued),
		zap.Int64("buffers_processed", stats.BuffersProcessed),
		zap.Int64("buffers_abandoned", stats.BuffersAbandoned),
		zap.Int64("entries_processed", stats.EntriesProcessed),
	)
	return runErr
}

// startMutators launches the per-thread mutators and the shared writers.
// Each one gets its own generator.
func startMutators(
	ctx context.Context,
	cfg *dto.ApplicationConfig,
	threads *mutator.Registry,
	qs *markqueue.QueueSet,
	logger *zap.Logger,
) (*sync.WaitGroup, error) {
	genConfig := workload.Config{
		HeapObjects: cfg.Marking.HeapObjects,
		NullPercent: cfg.Workload.NullPercent,
		BatchSize:   cfg.Workload.BatchSize,
	}

	var wg sync.WaitGroup
	launch := func(shared bool) error {
		gen, err := workload.NewGenerator(genConfig)
		if err != nil {
			return fmt.Errorf("failed to create workload generator: %w", err)
		}
		m := mutator.NewMutator(threads, qs, gen, cfg.Workload.Pause(), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if shared {
				_ = m.RunShared(ctx)
				return
			}
			_ = m.Run(ctx)
		}()
		return nil
	}

	for i := 0; i < cfg.Workload.Mutators; i++ {
		if err := launch(false); err != nil {
			wg.Wait()
			return nil, err
		}
	}
	for i := 0; i < cfg.Workload.SharedWriters; i++ {
		if err := launch(true); err != nil {
			wg.Wait()
			return nil, err
		}
	}
	return &wg, nil
}

// cycleRunner runs one mark cycle.
type cycleRunner interface {
	RunCycle(ctx context.Context, abandon bool) pkgreport.CycleReport
}

// runCycles runs mark cycles every cfg.CycleInterval until ctx is done or
// cfg.MaxCycles cycles have completed. Every cfg.AbandonEvery-th cycle is
// abandoned.
func runCycles(
	ctx context.Context,
	runner cycleRunner,
	reporter pkgreport.Reporter,
	v *validator.CycleReportValidator,
	cfg dto.MarkingConfig,
	logger *zap.Logger,
) error {
	ticker := time.NewTicker(cfg.CycleInterval())
	defer ticker.Stop()

	for cycle := int64(1); ; cycle++ {
		if ctx.Err() != nil {
			return nil
		}

		abandon := cfg.AbandonEvery > 0 && cycle%int64(cfg.AbandonEvery) == 0
		r := runner.RunCycle(ctx, abandon)
		publish(ctx, reporter, v, r, logger)

		if cfg.MaxCycles > 0 && cycle >= int64(cfg.MaxCycles) {
			logger.Info("Reached max cycles", zap.Int("max_cycles", cfg.MaxCycles))
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// publish validates r and hands it to reporter, retrying once on a
// retryable failure. The report of the last cycle is still published after
// ctx is cancelled.
func publish(
	ctx context.Context,
	reporter pkgreport.Reporter,
	v *validator.CycleReportValidator,
	r pkgreport.CycleReport,
	logger *zap.Logger,
) {
	if err := v.Validate(&r); err != nil {
		logger.Warn("Invalid cycle report",
			zap.String("cycle_id", r.ID),
			zap.Int64("sequence", r.Sequence),
			zap.Error(err),
		)
		return
	}

	ctx = context.WithoutCancel(ctx)

	err := reporter.Report(ctx, r)
	if err != nil && apperrors.IsRetryable(err) {
		logger.Warn("Retrying cycle report",
			zap.String("cycle_id", r.ID),
			zap.Error(err),
		)
		err = reporter.Report(ctx, r)
	}
	if err != nil {
		logger.Error("Failed to publish cycle report",
			zap.String("cycle_id", r.ID),
			zap.Int64("sequence", r.Sequence),
			zap.Error(err),
		)
	}
}
