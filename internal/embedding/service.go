// Package embedding converts chunk texts and chat queries into dense
// vectors via the configured LLM gateway.
package embedding

import (
	"context"
	"fmt"

	"github.com/dotstark/ragserve/internal/llm"
)

// Embedder is the capability consumed by the indexer and the answerer.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Service struct {
	gateway   llm.Gateway
	model     string
	dimension int
}

// NewService builds an embedder that requests vectors of the given
// dimension, matching the vector index the embeddings land in.
func NewService(gw llm.Gateway, model string, dimension int) *Service {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &Service{gateway: gw, model: model, dimension: dimension}
}

// Embed returns one vector per input text, preserving order. Inputs are
// batched in groups of 100 to respect provider API limits.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const batchSize = 100
	var all [][]float32

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Model:      s.model,
			Input:      texts[i:end],
			Dimensions: s.dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/batchSize, err)
		}

		all = append(all, resp.Embeddings...)
	}

	return all, nil
}

func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}
