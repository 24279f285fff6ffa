package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dotstark/ragserve/internal/config"
)

// QueueIndexing serializes full rebuilds away from short-lived work.
const QueueIndexing = "indexing"

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueReindex schedules a full rebuild of the tenant's vectors. The
// task id collapses repeated triggers for the same tenant into one pending
// rebuild; a trigger arriving while one is already queued is a no-op.
func (c *Client) EnqueueReindex(ctx context.Context, tenantID string) error {
	err := c.enqueue(ctx, TypeReindexTenant, ReindexTenantPayload{TenantID: tenantID},
		asynq.TaskID(fmt.Sprintf("reindex:%s", tenantID)),
		asynq.Queue(QueueIndexing),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func (c *Client) EnqueueAnalysis(ctx context.Context, tenantID string, limit int) error {
	return c.enqueue(ctx, TypeAnalysisRun, AnalysisRunPayload{TenantID: tenantID, Limit: limit},
		asynq.MaxRetry(2),
		asynq.Timeout(5*time.Minute),
	)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return err
		}
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
