package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dotstark/ragserve/internal/embedding"
	"github.com/dotstark/ragserve/internal/llm"
	"github.com/dotstark/ragserve/internal/vectorindex"
)

// FixedResponseSource marks answers served from the fixed-response table
// instead of retrieved chunks.
const FixedResponseSource = "Fixed Response"

const defaultTopK = 8

const systemPrompt = `You are a helpful customer support assistant. Answer the user's question using only the provided context from the knowledge base. If the context does not contain the answer, say you don't have that information and suggest contacting support. Keep answers concise and friendly.`

// Retriever is the read side of the vector index.
type Retriever interface {
	Query(ctx context.Context, tenantID string, vector []float32, topK int) ([]vectorindex.Match, error)
}

// Answer is the assembled reply plus the deduplicated sources behind it.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

type Answerer struct {
	fixed    *FixedResponses
	embedder embedding.Embedder
	index    Retriever
	gateway  llm.Gateway
	model    string
	topK     int
}

func NewAnswerer(fixed *FixedResponses, embedder embedding.Embedder, index Retriever, gateway llm.Gateway, model string, topK int) *Answerer {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Answerer{
		fixed:    fixed,
		embedder: embedder,
		index:    index,
		gateway:  gateway,
		model:    model,
		topK:     topK,
	}
}

// Ask answers one question for a tenant. The fixed-response table is
// checked first and short-circuits retrieval entirely; otherwise the
// question is embedded, the tenant's chunks are retrieved and the model
// composes a grounded reply. history carries prior turns of the same
// conversation, oldest first.
func (a *Answerer) Ask(ctx context.Context, tenantID, question string, history []llm.Message) (*Answer, error) {
	if answer, ok := a.fixed.Lookup(question); ok {
		slog.Debug("fixed response hit", "tenant_id", tenantID)
		return &Answer{Text: answer, Sources: []string{FixedResponseSource}}, nil
	}

	vector, err := a.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	matches, err := a.index.Query(ctx, tenantID, vector, a.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	contextBlock, sources := assembleContext(matches)

	messages := []llm.Message{{Role: "system", Content: systemPrompt}}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question),
	})

	resp, err := a.gateway.Chat(ctx, llm.ChatRequest{
		Model:    a.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Answer{Text: resp.Content, Sources: sources}, nil
}

// assembleContext joins match previews into one prompt block and collects
// their sources, deduplicated in retrieval order.
func assembleContext(matches []vectorindex.Match) (string, []string) {
	if len(matches) == 0 {
		return "(no relevant information found)", nil
	}

	var blocks []string
	var sources []string
	seen := map[string]bool{}
	for _, m := range matches {
		blocks = append(blocks, m.Meta.ContentPreview)
		if m.Meta.Source != "" && !seen[m.Meta.Source] {
			seen[m.Meta.Source] = true
			sources = append(sources, m.Meta.Source)
		}
	}
	return strings.Join(blocks, "\n\n---\n\n"), sources
}
