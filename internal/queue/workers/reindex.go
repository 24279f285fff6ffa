// Package workers holds the background task handlers run by the worker
// process.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/dotstark/ragserve/internal/indexer"
	"github.com/dotstark/ragserve/internal/queue"
)

type ReindexWorker struct {
	indexer *indexer.Indexer
}

func NewReindexWorker(ix *indexer.Indexer) *ReindexWorker {
	return &ReindexWorker{indexer: ix}
}

// ProcessTask rebuilds one tenant's vectors. Tasks are delivered at least
// once; a duplicate delivery just repeats the rebuild, which is idempotent.
func (w *ReindexWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ReindexTenantPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal reindex payload: %w", err)
	}
	if payload.TenantID == "" {
		return fmt.Errorf("reindex task missing tenant id")
	}

	stats, err := w.indexer.Reindex(ctx, payload.TenantID, payload.ExtraURLs...)
	if err != nil {
		return fmt.Errorf("reindex tenant %s: %w", payload.TenantID, err)
	}

	slog.Info("reindex task completed",
		"tenant_id", payload.TenantID,
		"documents", stats.Documents,
		"pages", stats.Pages,
		"chunks", stats.Chunks,
	)
	return nil
}
