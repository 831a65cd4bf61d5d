package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dealroom/api/pkg/domain/audit"
	"github.com/dealroom/api/pkg/logger"
)

// WorkerConfig holds the configuration for the job worker.
type WorkerConfig struct {
	Client      ClientConfig
	Concurrency int
}

// Worker processes background jobs.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *logger.Logger
}

// NewWorker creates a worker that stores audit events through repo.
func NewWorker(cfg WorkerConfig, repo audit.Repository, log *logger.Logger) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	server := asynq.NewServer(
		cfg.Client.redisOpt(),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueAudit: 5,
				"default":  1,
			},
			Logger: newAsynqLogger(log),
		},
	)

	mux := asynq.NewServeMux()
	NewAuditTaskHandler(repo, log).RegisterHandlers(mux)

	return &Worker{
		server: server,
		mux:    mux,
		logger: log.With("component", "job_worker"),
	}
}

// Run runs the worker until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("starting job worker")
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("worker error: %w", err)
	}

	<-ctx.Done()
	w.logger.Info("stopping job worker")
	w.server.Shutdown()
	return nil
}

// asynqLogger routes asynq's internal logging through the service logger.
type asynqLogger struct {
	log *logger.Logger
}

func newAsynqLogger(log *logger.Logger) asynq.Logger {
	return &asynqLogger{log: log.With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) { l.log.Error(fmt.Sprint(args...)) }
