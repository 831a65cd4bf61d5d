package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dealroom/api/pkg/domain/audit"
	"github.com/dealroom/api/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func (c ClientConfig) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	return &Client{
		client: asynq.NewClient(cfg.redisOpt()),
		logger: log.With("component", "job_client"),
	}
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Record enqueues an audit event for the worker to persist.
func (c *Client) Record(ctx context.Context, event *audit.Event) error {
	task, err := NewAuditTask(event)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		c.logger.Error("failed to enqueue audit event",
			"participant_id", event.ParticipantID.String(),
			"action", string(event.Action),
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Debug("audit event queued",
		"task_id", info.ID,
		"action", string(event.Action),
		"queue", info.Queue,
	)
	return nil
}
