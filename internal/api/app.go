// Package api assembles the CAD engine HTTP service from its subsystems.
package api

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/meshforge/cad-engine/internal/artifact"
	"github.com/meshforge/cad-engine/internal/cache"
	"github.com/meshforge/cad-engine/internal/config"
	"github.com/meshforge/cad-engine/internal/convert"
	"github.com/meshforge/cad-engine/internal/domain"
	"github.com/meshforge/cad-engine/internal/kernel"
	"github.com/meshforge/cad-engine/internal/metrics"
	"github.com/meshforge/cad-engine/internal/monitoring"
	"github.com/meshforge/cad-engine/internal/observability"
	"github.com/meshforge/cad-engine/internal/storage"
)

// App owns every long-lived dependency of a running API instance: the kernel
// session, the job store, the cache, the artifact store, and the janitor.
type App struct {
	Config  *config.Config
	Logger  *observability.Logger
	Service *convert.Service
	Jobs    *storage.JobRepository
	DB      *sql.DB

	kernel    kernel.Kernel
	cache     cache.Client
	artifacts artifact.Store
	janitor   *convert.Janitor
}

// NewApp builds and starts the service's dependencies. On error everything
// already started is torn down again.
func NewApp(cfg *config.Config, logger *observability.Logger) (*App, error) {
	k, err := kernel.New(cfg.Kernel, logger)
	if err != nil {
		return nil, fmt.Errorf("start kernel: %w", err)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		k.Close()
		return nil, fmt.Errorf("open job store: %w", err)
	}
	if err := storage.RunMigrations(db, cfg.Database.Driver); err != nil {
		db.Close()
		k.Close()
		return nil, fmt.Errorf("migrate job store: %w", err)
	}
	jobs := storage.NewJobRepository(db)

	var cacheClient cache.Client
	if cfg.Cache.Enabled {
		switch cfg.Cache.Driver {
		case "redis":
			rc, err := cache.NewRedisClient(cache.RedisConfig{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
				PoolSize: cfg.Cache.Redis.PoolSize,
			})
			if err != nil {
				db.Close()
				k.Close()
				return nil, fmt.Errorf("connect artifact cache: %w", err)
			}
			cacheClient = rc
		default:
			cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
		}
	}

	artifacts, err := artifact.New(cfg.Artifact, logger)
	if err != nil {
		if cacheClient != nil {
			cacheClient.Close()
		}
		db.Close()
		k.Close()
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	audit := monitoring.NewAuditLogger(logger)

	pipeline := convert.NewPipeline(convert.PipelineConfig{
		WorkDir:           cfg.Conversion.WorkDir,
		MaxFileSizeBytes:  cfg.MaxFileSizeBytes(),
		LinearDeflection:  cfg.Conversion.LinearDeflection,
		AngularDeflection: cfg.Conversion.AngularDeflection,
	}, k, logger)
	pipeline.OnTransition = func(id uuid.UUID, from, to domain.State) {
		audit.LogTransition(context.Background(), id, from, to)
	}

	service := convert.NewService(pipeline, convert.ServiceOptions{
		Cache:     cacheClient,
		CacheTTL:  cfg.Cache.TTL,
		Jobs:      jobs,
		Artifacts: artifacts,
		Metrics:   metrics.NewRecorder(),
		Audit:     audit,
	}, logger)

	janitor := convert.NewJanitor(cfg.Conversion.WorkDir, cfg.Conversion.StaleAfter, cfg.Conversion.JanitorInterval, logger)
	janitor.Start()

	logger.Info().
		Str("engine", service.Engine()).
		Str("database", cfg.Database.Driver).
		Bool("cache", cfg.Cache.Enabled).
		Str("artifact_backend", cfg.Artifact.Backend).
		Msg("service assembled")

	return &App{
		Config:    cfg,
		Logger:    logger,
		Service:   service,
		Jobs:      jobs,
		DB:        db,
		kernel:    k,
		cache:     cacheClient,
		artifacts: artifacts,
		janitor:   janitor,
	}, nil
}

// Close shuts the dependencies down in reverse start order.
func (a *App) Close() {
	a.janitor.Stop()

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("cache close failed")
		}
	}

	if err := a.kernel.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("kernel close failed")
	}

	if err := a.DB.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("job store close failed")
	}
}
