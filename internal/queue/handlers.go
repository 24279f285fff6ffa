package queue

import (
	"github.com/hibiken/asynq"
)

// HandlersRegistry collects the task handlers (tenant re-index, analysis
// runs) the worker binary serves.
type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

// Register binds a task type, e.g. TypeReindexTenant, to its handler.
func (hr *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	hr.mux.Handle(taskType, handler)
}

func (hr *HandlersRegistry) Mux() *asynq.ServeMux {
	return hr.mux
}
