package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotstark/ragserve/internal/crawler"
	"github.com/dotstark/ragserve/internal/vectorindex"
)

type fakeIndex struct {
	ensured   int
	cleared   []string
	upserted  []vectorindex.Record
	upsertErr error
}

func (f *fakeIndex) EnsureIndex(context.Context) error { f.ensured++; return nil }

func (f *fakeIndex) DeleteAll(_ context.Context, tenantID string) error {
	f.cleared = append(f.cleared, tenantID)
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, _ string, records []vectorindex.Record) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, records...)
	return nil
}

type fakeFiles struct {
	docs    map[string][]byte
	urls    []string
	broken  map[string]bool
	listErr error
}

func (f *fakeFiles) ListDocuments(context.Context, string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var names []string
	for name := range f.docs {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeFiles) DownloadDocument(_ context.Context, _, name string) ([]byte, error) {
	if f.broken[name] {
		return nil, errors.New("object gone")
	}
	return f.docs[name], nil
}

func (f *fakeFiles) ReadURLs(context.Context, string) ([]string, error) {
	return f.urls, nil
}

type fakeFetcher struct {
	pages []crawler.Page
}

func (f *fakeFetcher) FetchAll(context.Context, []string) []crawler.Page {
	return f.pages
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(i), 1}
	}
	return vecs, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func longText(sentence string) string {
	return strings.Repeat(sentence+" ", 120)
}

func TestReindexBuildsTenantRecords(t *testing.T) {
	index := &fakeIndex{}
	files := &fakeFiles{
		docs: map[string][]byte{
			"handbook.txt": []byte(longText("The handbook explains the refund policy.")),
			"pricing.csv":  []byte("plan,price\nbasic,10\npro,40\n"),
		},
		urls: []string{"https://example.com/faq"},
	}
	fetcher := &fakeFetcher{pages: []crawler.Page{
		{URL: "https://example.com/faq", Text: longText("Answers to frequent questions.")},
	}}

	ix := New(index, files, fetcher, &fakeEmbedder{})
	stats, err := ix.Reindex(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, 1, index.ensured)
	assert.Equal(t, []string{"t1"}, index.cleared, "old vectors are dropped before the rebuild")
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, stats.Chunks, len(index.upserted))
	require.NotEmpty(t, index.upserted)

	keys := map[string]bool{}
	sources := map[string]bool{}
	for _, r := range index.upserted {
		assert.Equal(t, "t1", r.Meta.TenantID)
		assert.False(t, keys[r.Key], "record keys must be unique")
		keys[r.Key] = true
		sources[r.Meta.Source] = true
		assert.NotEmpty(t, r.Meta.ContentPreview)
		assert.LessOrEqual(t, len([]rune(r.Meta.ContentPreview)), previewLength)
	}
	assert.True(t, sources["handbook.txt"])
	assert.True(t, sources["https://example.com/faq"])
}

func TestReindexSkipsFailingDocuments(t *testing.T) {
	index := &fakeIndex{}
	files := &fakeFiles{
		docs: map[string][]byte{
			"good.txt":       []byte(longText("Recoverable knowledge.")),
			"gone.txt":       []byte("unused"),
			"image.png":      []byte{0x89, 0x50},
			"corrupt.docx":   []byte("not a zip"),
			"also-good.txt":  []byte(longText("More recoverable knowledge.")),
			"placeholder.md": []byte("unsupported extension"),
		},
		broken: map[string]bool{"gone.txt": true},
	}

	ix := New(index, files, &fakeFetcher{}, &fakeEmbedder{})
	stats, err := ix.Reindex(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Documents, "only the readable supported documents survive")
	assert.NotEmpty(t, index.upserted)
}

func TestReindexEmptyKnowledgeBase(t *testing.T) {
	index := &fakeIndex{}
	embedder := &fakeEmbedder{}

	ix := New(index, &fakeFiles{}, &fakeFetcher{}, embedder)
	stats, err := ix.Reindex(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, []string{"t1"}, index.cleared, "stale vectors are still cleared")
	assert.Zero(t, stats.Chunks)
	assert.Empty(t, index.upserted)
	assert.Zero(t, embedder.calls, "nothing to embed")
}

func TestReindexAbortsOnEmbeddingFailure(t *testing.T) {
	index := &fakeIndex{}
	files := &fakeFiles{docs: map[string][]byte{
		"doc.txt": []byte(longText("Some content.")),
	}}

	ix := New(index, files, &fakeFetcher{}, &fakeEmbedder{err: errors.New("quota")})
	_, err := ix.Reindex(context.Background(), "t1")
	require.Error(t, err)
	assert.Empty(t, index.upserted)
}

func TestReindexAbortsOnUpsertFailure(t *testing.T) {
	index := &fakeIndex{upsertErr: fmt.Errorf("index write refused")}
	files := &fakeFiles{docs: map[string][]byte{
		"doc.txt": []byte(longText("Some content.")),
	}}

	ix := New(index, files, &fakeFetcher{}, &fakeEmbedder{})
	_, err := ix.Reindex(context.Background(), "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index write refused")
}
