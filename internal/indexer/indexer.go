// Package indexer rebuilds a tenant's slice of the vector index from its
// knowledge base: stored documents plus registered web sources.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/dotstark/ragserve/internal/crawler"
	"github.com/dotstark/ragserve/internal/embedding"
	"github.com/dotstark/ragserve/internal/vectorindex"
	"github.com/dotstark/ragserve/pkg/chunker"
	"github.com/dotstark/ragserve/pkg/textextract"
)

// previewLength bounds the chunk text stored in vector metadata.
const previewLength = 500

// Index is the slice of the vector index manager the orchestrator drives.
type Index interface {
	EnsureIndex(ctx context.Context) error
	DeleteAll(ctx context.Context, tenantID string) error
	Upsert(ctx context.Context, tenantID string, records []vectorindex.Record) error
}

// Files reads a tenant's knowledge base from object storage.
type Files interface {
	ListDocuments(ctx context.Context, tenantID string) ([]string, error)
	DownloadDocument(ctx context.Context, tenantID, name string) ([]byte, error)
	ReadURLs(ctx context.Context, tenantID string) ([]string, error)
}

// Fetcher crawls registered web sources.
type Fetcher interface {
	FetchAll(ctx context.Context, urls []string) []crawler.Page
}

// Stats summarizes one re-index run.
type Stats struct {
	Documents int           `json:"documents"`
	Pages     int           `json:"pages"`
	Chunks    int           `json:"chunks"`
	Duration  time.Duration `json:"-"`
}

type Indexer struct {
	index    Index
	files    Files
	fetcher  Fetcher
	embedder embedding.Embedder
	chunking chunker.Options
}

func New(index Index, files Files, fetcher Fetcher, embedder embedding.Embedder) *Indexer {
	return &Indexer{
		index:    index,
		files:    files,
		fetcher:  fetcher,
		embedder: embedder,
		chunking: chunker.DefaultOptions(),
	}
}

type sourceText struct {
	source string
	text   string
}

// Reindex rebuilds the tenant's vectors from scratch. The tenant's old
// vectors are dropped first, so a run that acquires nothing leaves the
// tenant with an empty knowledge base rather than stale answers.
//
// extraURLs are crawled in addition to the tenant's registered web
// sources, without being persisted to the registry.
//
// Per-document failures (download, unsupported format, extraction) are
// logged and skipped; embedding or index write failures abort the run.
func (ix *Indexer) Reindex(ctx context.Context, tenantID string, extraURLs ...string) (*Stats, error) {
	start := time.Now()
	slog.Info("reindex started", "tenant_id", tenantID)

	if err := ix.index.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	if err := ix.index.DeleteAll(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("clear tenant vectors: %w", err)
	}

	texts := ix.acquireDocuments(ctx, tenantID)
	stats := &Stats{Documents: len(texts)}

	pages := ix.acquirePages(ctx, tenantID, extraURLs)
	stats.Pages = len(pages)
	texts = append(texts, pages...)

	records, err := ix.buildRecords(ctx, tenantID, texts)
	if err != nil {
		return nil, err
	}
	stats.Chunks = len(records)

	if len(records) > 0 {
		if err := ix.index.Upsert(ctx, tenantID, records); err != nil {
			return nil, fmt.Errorf("upsert vectors: %w", err)
		}
	}

	stats.Duration = time.Since(start)
	slog.Info("reindex finished",
		"tenant_id", tenantID,
		"documents", stats.Documents,
		"pages", stats.Pages,
		"chunks", stats.Chunks,
		"duration", stats.Duration,
	)
	return stats, nil
}

func (ix *Indexer) acquireDocuments(ctx context.Context, tenantID string) []sourceText {
	names, err := ix.files.ListDocuments(ctx, tenantID)
	if err != nil {
		slog.Warn("list documents failed", "tenant_id", tenantID, "error", err)
		return nil
	}

	var texts []sourceText
	for _, name := range names {
		ext := path.Ext(name)
		if !textextract.Supported(ext) {
			slog.Warn("skipping unsupported document", "tenant_id", tenantID, "name", name)
			continue
		}

		data, err := ix.files.DownloadDocument(ctx, tenantID, name)
		if err != nil {
			slog.Warn("download failed, skipping document", "tenant_id", tenantID, "name", name, "error", err)
			continue
		}

		text, err := textextract.Extract(data, ext)
		if err != nil {
			slog.Warn("extraction failed, skipping document", "tenant_id", tenantID, "name", name, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		texts = append(texts, sourceText{source: name, text: text})
	}
	return texts
}

func (ix *Indexer) acquirePages(ctx context.Context, tenantID string, extraURLs []string) []sourceText {
	urls, err := ix.files.ReadURLs(ctx, tenantID)
	if err != nil {
		slog.Warn("read url registry failed", "tenant_id", tenantID, "error", err)
	}
	seen := map[string]bool{}
	for _, u := range urls {
		seen[u] = true
	}
	for _, u := range extraURLs {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil
	}

	var texts []sourceText
	for _, page := range ix.fetcher.FetchAll(ctx, urls) {
		texts = append(texts, sourceText{source: page.URL, text: page.Text})
	}
	return texts
}

func (ix *Indexer) buildRecords(ctx context.Context, tenantID string, texts []sourceText) ([]vectorindex.Record, error) {
	var chunks []string
	var metas []vectorindex.Metadata
	for _, st := range texts {
		for _, c := range chunker.Split(st.text, ix.chunking) {
			chunks = append(chunks, c.Content)
			metas = append(metas, vectorindex.Metadata{
				TenantID:       tenantID,
				Source:         st.source,
				ContentPreview: preview(c.Content),
			})
		}
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors, err := ix.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedded %d of %d chunks", len(vectors), len(chunks))
	}

	records := make([]vectorindex.Record, len(chunks))
	for i := range chunks {
		records[i] = vectorindex.Record{
			Key:    uuid.NewString(),
			Vector: vectors[i],
			Meta:   metas[i],
		}
	}
	return records, nil
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength])
}
