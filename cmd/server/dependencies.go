package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dealroom/api/internal/app"
	"github.com/dealroom/api/internal/config"
	"github.com/dealroom/api/internal/infra/http/handler"
	"github.com/dealroom/api/internal/infra/http/routes"
	"github.com/dealroom/api/internal/infra/jobs"
	"github.com/dealroom/api/internal/infra/postgres"
	"github.com/dealroom/api/internal/infra/presets"
	"github.com/dealroom/api/internal/infra/redis"
	"github.com/dealroom/api/internal/infra/websocket"
	"github.com/dealroom/api/pkg/logger"
	"github.com/dealroom/api/pkg/migrations"
	"github.com/dealroom/api/pkg/validator"
)

// dependencies holds the backends and the service built on them.
type dependencies struct {
	log       *logger.Logger
	db        *postgres.DB
	redis     *redis.Client
	jobClient *jobs.Client
	worker    *jobs.Worker
	retention *jobs.RetentionJob
	hub       *websocket.Hub
	service   *app.PermissionService
	validator *validator.Validator
}

func newDependencies(ctx context.Context, cfg *config.Config, log *logger.Logger) (*dependencies, error) {
	d := &dependencies{log: log}

	s3cfg := cfg.Permissions.S3
	resolver, err := presets.LoadResolver(ctx, cfg.Permissions.PresetsFile, presets.S3Config{
		Region:     s3cfg.Region,
		Endpoint:   s3cfg.Endpoint,
		AccessKey:  s3cfg.AccessKey,
		SecretKey:  s3cfg.SecretKey,
		RoleARN:    s3cfg.RoleARN,
		ExternalID: s3cfg.ExternalID,
	})
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	if !resolver.Presets().Has(cfg.Permissions.DefaultPreset) {
		return nil, fmt.Errorf("default preset %q is not defined", cfg.Permissions.DefaultPreset)
	}
	log.Info("permission tables loaded",
		"presets", len(resolver.Presets().Names()),
		"keys", len(resolver.Catalog().Keys()),
		"source", presetSource(cfg.Permissions.PresetsFile),
	)

	d.db, err = postgres.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("database connected")

	if cfg.Database.AutoMigrate {
		if err := migrations.NewRunner(d.db.DB, migrations.Files(), log).Up(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	d.redis, err = redis.New(&cfg.Redis, log)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("redis connected")

	participantRepo := postgres.NewParticipantPermissionRepository(d.db)
	auditRepo := postgres.NewAuditRepository(d.db)

	opts := []app.PermissionServiceOption{
		app.WithDefaultPreset(cfg.Permissions.DefaultPreset),
		app.WithAuditRepository(auditRepo),
	}

	if cfg.Permissions.CacheTTL > 0 {
		cache, err := redis.NewParticipantCache(d.redis, cfg.Permissions.CacheTTL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create participant cache: %w", err)
		}
		opts = append(opts, app.WithStateCache(cache))
	}

	if cfg.Worker.Enabled {
		jobCfg := jobs.ClientConfig{
			RedisAddr:     cfg.Redis.Addr(),
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
		}
		d.jobClient = jobs.NewClient(jobCfg, log)
		d.worker = jobs.NewWorker(jobs.WorkerConfig{
			Client:      jobCfg,
			Concurrency: cfg.Worker.Concurrency,
		}, auditRepo, log)
		opts = append(opts, app.WithAuditRecorder(d.jobClient))
	} else {
		opts = append(opts, app.WithAuditRecorder(app.NewRepositoryAuditRecorder(auditRepo)))
	}

	if cfg.Audit.RetentionDays > 0 {
		d.retention, err = jobs.NewRetentionJob(jobs.RetentionConfig{
			Schedule:  cfg.Audit.RetentionSchedule,
			Retention: cfg.Audit.Retention(),
		}, auditRepo, log)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create audit retention: %w", err)
		}
	}

	if cfg.Stream.Enabled {
		d.hub = websocket.NewHub(log, websocket.WithMaxSubscriptions(cfg.Stream.MaxSubscriptions))
		opts = append(opts, app.WithChangeNotifier(d.hub))
	}

	d.service = app.NewPermissionService(participantRepo, resolver, log, opts...)
	d.validator = validator.New(resolver)
	return d, nil
}

// Handlers builds the HTTP handlers.
func (d *dependencies) Handlers(cfg *config.Config) routes.Handlers {
	h := routes.Handlers{
		Health: handler.NewHealthHandler(
			handler.WithDependency("database", d.db),
			handler.WithDependency("redis", d.redis),
		),
		Catalog:    handler.NewCatalogHandler(d.service, d.log),
		Permission: handler.NewPermissionHandler(d.service, d.validator, d.log),
	}
	if d.hub != nil {
		h.Stream = websocket.NewHandler(d.hub, cfg.CORS.AllowedOrigins, d.log)
	}
	return h
}

// StartPoolStats exports redis pool gauges until the returned func is called.
func (d *dependencies) StartPoolStats(ctx context.Context, interval time.Duration) func() {
	return redis.StartPoolStatsCollector(ctx, d.redis, interval)
}

// Close releases the backends in reverse order of creation.
func (d *dependencies) Close() {
	if d.jobClient != nil {
		closeWithLog(d.jobClient, "job client", d.log)
	}
	if d.redis != nil {
		closeWithLog(d.redis, "redis", d.log)
	}
	if d.db != nil {
		closeWithLog(d.db, "database", d.log)
	}
}

func presetSource(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
