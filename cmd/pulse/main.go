package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulse-lab/project-pulse/internal/cache"
	corecfg "github.com/pulse-lab/project-pulse/internal/core/config"
	"github.com/pulse-lab/project-pulse/internal/core/stats"
	"github.com/pulse-lab/project-pulse/internal/core/storage/postgres"
	"github.com/pulse-lab/project-pulse/internal/httpapi"
	"github.com/pulse-lab/project-pulse/internal/migrations"
	"github.com/pulse-lab/project-pulse/internal/server"
	"github.com/pulse-lab/project-pulse/internal/tracker"
)

func main() {
	configPath := flag.String("config", "pulse.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	flushInterval, err := cfg.Tracker.Interval()
	if err != nil {
		slog.Error("Invalid flush interval", "value", cfg.Tracker.FlushInterval, "error", err)
		os.Exit(1)
	}
	streakLoc, err := cfg.Tracker.StreakLocation()
	if err != nil {
		slog.Error("Invalid streak timezone", "value", cfg.Tracker.StreakTimezone, "error", err)
		os.Exit(1)
	}

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Baseline Profiles
	var baselines stats.BaselineRepository = stats.StaticBaselines{}
	if cfg.Tracker.BaselineDir != "" {
		repo, err := stats.NewFileSystemBaselineRepository(cfg.Tracker.BaselineDir)
		if err != nil {
			slog.Error("Failed to load baseline profiles", "dir", cfg.Tracker.BaselineDir, "error", err)
			os.Exit(1)
		}
		baselines = repo
	}

	// 4. Initialize Tracker (cache, flush engine, scheduler, read overlay)
	aggCache := cache.New()
	ingestor := tracker.NewIngestor(aggCache)
	engine := tracker.NewFlushEngine(aggCache, dbAdapter, baselines, cfg.Tracker.BatchSize, streakLoc)
	scheduler := tracker.NewScheduler(flushInterval, engine)
	reader := tracker.NewReader(aggCache, dbAdapter, baselines, scheduler, streakLoc)

	slog.Info("Tracker initialized",
		"flush_interval", flushInterval,
		"enabled", cfg.Tracker.Enabled,
		"batch_size", cfg.Tracker.BatchSize,
		"streak_timezone", cfg.Tracker.StreakTimezone,
	)

	// 5. Initialize API
	apiSvc := httpapi.NewService(ingestor, reader, scheduler, cfg.Server.MaxBodySizeMB)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter, cfg.Server.Mode)
	apiSvc.RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedulerDone := make(chan struct{})
	if cfg.Tracker.Enabled {
		go func() {
			defer close(schedulerDone)
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		close(schedulerDone)
		slog.Info("Flush scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	// Wait for the scheduler's final flush before releasing the DB connection.
	<-schedulerDone

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
