package vectorindex

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dotstark/ragserve/internal/config"
)

// NewBackend picks the configured vector store implementation.
func NewBackend(cfg config.VectorConfig, db *pgxpool.Pool) (Backend, error) {
	switch cfg.Backend {
	case "pgvector":
		return NewPgVectorBackend(db, cfg.Dimension), nil
	case "qdrant":
		return NewQdrantBackend(cfg.QdrantHost, cfg.QdrantPort, cfg.IndexName, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}
