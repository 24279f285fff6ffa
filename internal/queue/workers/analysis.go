package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/dotstark/ragserve/internal/history"
	"github.com/dotstark/ragserve/internal/queue"
)

type AnalysisWorker struct {
	store *history.Store
}

func NewAnalysisWorker(store *history.Store) *AnalysisWorker {
	return &AnalysisWorker{store: store}
}

// ProcessTask aggregates a tenant's most frequent questions from the
// stored transcripts.
func (w *AnalysisWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.AnalysisRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal analysis payload: %w", err)
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = 10
	}

	top, err := w.store.TopQuestions(ctx, payload.TenantID, limit)
	if err != nil {
		return fmt.Errorf("analyze tenant %s: %w", payload.TenantID, err)
	}

	for i, q := range top {
		slog.Info("top question", "tenant_id", payload.TenantID, "rank", i+1, "question", q.Question, "count", q.Count)
	}
	return nil
}
