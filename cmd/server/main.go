package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dealroom/api/internal/config"
	"github.com/dealroom/api/internal/infra/http"
	"github.com/dealroom/api/internal/infra/http/routes"
	"github.com/dealroom/api/pkg/logger"
)

// Command line flags.
var (
	showRoutes  = flag.Bool("routes", false, "Print all registered routes and exit")
	routeFormat = flag.String("route-format", "table", "Route output format: table, json, simple")
)

const poolStatsInterval = 15 * time.Second

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().Error("failed to load configuration", "error", err)
		return 1
	}

	log := newLogger(cfg.Log)
	log.SetDefault()

	// The route table needs no backends.
	if *showRoutes {
		server := http.NewServer(cfg, log)
		routes.Register(server.Router(), routes.Handlers{})
		if err := http.PrintRoutes(os.Stdout, http.CollectRoutes(server.Router()), *routeFormat); err != nil {
			log.Error("failed to print routes", "error", err)
			return 1
		}
		return 0
	}

	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := newDependencies(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize dependencies", "error", err)
		return 1
	}
	defer deps.Close()

	server := http.NewServer(cfg, log)
	routes.Register(server.Router(), deps.Handlers(cfg))

	stopPoolStats := deps.StartPoolStats(ctx, poolStatsInterval)
	defer stopPoolStats()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	if deps.worker != nil {
		g.Go(func() error { return deps.worker.Run(gctx) })
	}
	if deps.retention != nil {
		g.Go(func() error { return deps.retention.Run(gctx) })
	}
	if deps.hub != nil {
		g.Go(func() error {
			deps.hub.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	log.Info("application started",
		"http_addr", cfg.Server.Addr(),
		"worker", deps.worker != nil,
		"audit_retention", deps.retention != nil,
		"stream", deps.hub != nil,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("application stopped with error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

func newLogger(cfg config.LogConfig) *logger.Logger {
	sampling := logger.DefaultSamplingConfig()
	sampling.Enabled = cfg.SamplingEnabled
	sampling.Threshold = uint64(cfg.SamplingThreshold)
	sampling.Rate = cfg.SamplingRate
	if cfg.SamplingEnabled {
		logger.RegisterMetrics(nil)
	}

	return logger.New(logger.Config{
		Level:    cfg.Level,
		Format:   cfg.Format,
		Output:   os.Stdout,
		Sampling: sampling,
	})
}
