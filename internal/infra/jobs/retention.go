package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dealroom/api/internal/metrics"
	"github.com/dealroom/api/pkg/logger"
)

const purgeTimeout = 5 * time.Minute

// AuditPurger deletes audit events older than a cutoff.
type AuditPurger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionConfig configures the audit retention job.
type RetentionConfig struct {
	// Schedule is a standard five field cron expression or a descriptor
	// such as "@daily".
	Schedule string
	// Retention is how long audit events are kept.
	Retention time.Duration
}

// RetentionJob periodically deletes expired audit events.
type RetentionJob struct {
	schedule  cron.Schedule
	retention time.Duration
	purger    AuditPurger
	logger    *logger.Logger
	now       func() time.Time
}

// NewRetentionJob validates cfg and builds the job.
func NewRetentionJob(cfg RetentionConfig, purger AuditPurger, log *logger.Logger) (*RetentionJob, error) {
	if cfg.Retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.Schedule, err)
	}
	return &RetentionJob{
		schedule:  schedule,
		retention: cfg.Retention,
		purger:    purger,
		logger:    log.With("component", "audit_retention"),
		now:       time.Now,
	}, nil
}

// Run triggers a purge on every schedule tick until ctx is cancelled.
// Overlapping ticks are skipped.
func (j *RetentionJob) Run(ctx context.Context) error {
	cl := &cronLogger{log: j.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	))
	c.Schedule(j.schedule, cron.FuncJob(func() {
		runCtx, cancel := context.WithTimeout(ctx, purgeTimeout)
		defer cancel()
		_, _ = j.Purge(runCtx)
	}))

	j.logger.Info("starting audit retention",
		"retention", j.retention.String(),
		"next_run", j.schedule.Next(j.now()),
	)
	c.Start()

	<-ctx.Done()
	j.logger.Info("stopping audit retention")
	<-c.Stop().Done()
	return nil
}

// Purge deletes every event older than the retention window. On error the
// count still reports the rows removed by batches that committed.
func (j *RetentionJob) Purge(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)

	deleted, err := j.purger.DeleteBefore(ctx, cutoff)
	metrics.RecordAuditPurge(deleted, err)
	if err != nil {
		j.logger.Error("audit retention failed", "cutoff", cutoff, "deleted", deleted, "error", err)
		return deleted, fmt.Errorf("purge audit events: %w", err)
	}

	j.logger.Info("audit retention completed", "cutoff", cutoff, "deleted", deleted)
	return deleted, nil
}

// cronLogger routes cron's internal logging through the service logger.
type cronLogger struct {
	log *logger.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
