// Package app wires the engine's components together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/powdertrack/snowengine/internal/assessment"
	"github.com/powdertrack/snowengine/internal/constants"
	"github.com/powdertrack/snowengine/internal/controllers/restserver"
	"github.com/powdertrack/snowengine/internal/cycle"
	"github.com/powdertrack/snowengine/internal/database"
	"github.com/powdertrack/snowengine/internal/log"
	"github.com/powdertrack/snowengine/internal/obscache"
	"github.com/powdertrack/snowengine/internal/summary"
	"github.com/powdertrack/snowengine/internal/telemetry"
	"github.com/powdertrack/snowengine/pkg/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %v", err)
	}
	if len(cfg.Locations) == 0 {
		return fmt.Errorf("no locations configured - at least one location with sites is required")
	}

	// Durable summary storage: TimescaleDB when configured, otherwise an
	// in-memory store that lasts the process lifetime.
	var store summary.Store
	var db *gorm.DB
	if cfg.Storage.TimescaleDB != nil && cfg.Storage.TimescaleDB.ConnectionString != "" {
		db, err = database.Connect(cfg.Storage.TimescaleDB.ConnectionString)
		if err != nil {
			return fmt.Errorf("could not connect to database: %v", err)
		}
		gormStore, err := summary.NewGormStore(db)
		if err != nil {
			return fmt.Errorf("could not initialize summary store: %v", err)
		}
		store = gormStore

		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}()
	} else {
		log.Warn("no database configured; snow summaries will not survive restarts")
		store = summary.NewMemoryStore()
	}

	var cache *obscache.Cache
	if cfg.Storage.ObsCache != nil && cfg.Storage.ObsCache.Path != "" {
		retention := constants.ObservationRetention
		if cfg.Storage.ObsCache.RetentionDays > 0 {
			retention = time.Duration(cfg.Storage.ObsCache.RetentionDays) * 24 * time.Hour
		}
		cache, err = obscache.Open(cfg.Storage.ObsCache.Path, retention, a.logger)
		if err != nil {
			return fmt.Errorf("could not open observation cache: %v", err)
		}
		defer cache.Close()
	}

	fetcher := telemetry.NewClient(telemetry.ClientConfig{
		Endpoint:      cfg.Engine.TelemetryEndpoint,
		ForecastHours: cfg.Engine.ForecastHours,
	}, a.logger)

	scorer := assessment.NewScorer(assessment.DefaultScorerConfig(), a.logger)

	cycleCtrl, err := cycle.NewController(ctx, &wg, cycle.Options{
		Locations:          cfg.Locations,
		Fetcher:            fetcher,
		Store:              store,
		Scorer:             scorer,
		Cache:              cache,
		DB:                 db,
		Interval:           cfg.Engine.CycleInterval,
		MaxConcurrentSites: cfg.Engine.MaxConcurrentSites,
		InterLocationDelay: cfg.Engine.InterLocationDelay,
	}, a.logger)
	if err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := cycleCtrl.Start(); err != nil {
			log.Errorf("cycle controller error: %v", err)
		}
	}()

	if cfg.REST != nil {
		restCtrl, err := restserver.NewController(ctx, &wg, *cfg.REST, cycleCtrl.Results(), a.logger)
		if err != nil {
			return err
		}
		if err := restCtrl.StartController(); err != nil {
			return err
		}
	}

	log.Info("application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
