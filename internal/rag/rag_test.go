package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotstark/ragserve/internal/llm"
	"github.com/dotstark/ragserve/internal/vectorindex"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0}
	}
	return vecs, nil
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type fakeRetriever struct {
	matches []vectorindex.Match
	gotTopK int
}

func (f *fakeRetriever) Query(_ context.Context, _ string, _ []float32, topK int) ([]vectorindex.Match, error) {
	f.gotTopK = topK
	return f.matches, nil
}

type fakeGateway struct {
	lastReq llm.ChatRequest
	reply   string
}

func (f *fakeGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	return &llm.ChatResponse{Content: f.reply}, nil
}

func (f *fakeGateway) Embed(context.Context, llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, nil
}

func writeFixedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixed_responses.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "hello", NormalizeQuery("Hello!!"))
	assert.Equal(t, "whats your refund policy", NormalizeQuery("  What's   your refund POLICY? "))
	assert.Equal(t, "", NormalizeQuery("?!..."))
}

func TestLoadFixedResponsesMixedShapes(t *testing.T) {
	path := writeFixedFile(t, `{
		"Hello": "Hi there! How can I help?",
		"What are your hours?": {"answer": "We are open 9 to 5."}
	}`)

	fr, err := LoadFixedResponses(path)
	require.NoError(t, err)
	assert.Equal(t, 2, fr.Len())

	answer, ok := fr.Lookup("hello")
	require.True(t, ok)
	assert.Equal(t, "Hi there! How can I help?", answer)

	answer, ok = fr.Lookup("WHAT are your HOURS???")
	require.True(t, ok)
	assert.Equal(t, "We are open 9 to 5.", answer)

	_, ok = fr.Lookup("unrelated question")
	assert.False(t, ok)
}

func TestLoadFixedResponsesMissingFile(t *testing.T) {
	fr, err := LoadFixedResponses(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Zero(t, fr.Len())
}

func TestAskFixedResponseSkipsRetrieval(t *testing.T) {
	path := writeFixedFile(t, `{"hello": "Hi!"}`)
	fr, err := LoadFixedResponses(path)
	require.NoError(t, err)

	embedder := &countingEmbedder{}
	gateway := &fakeGateway{reply: "should not be used"}
	a := NewAnswerer(fr, embedder, &fakeRetriever{}, gateway, "gpt-4o-mini", 8)

	answer, err := a.Ask(context.Background(), "t1", "Hello!", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi!", answer.Text)
	assert.Equal(t, []string{FixedResponseSource}, answer.Sources)
	assert.Zero(t, embedder.calls, "fixed responses must not spend an embedding call")
	assert.Empty(t, gateway.lastReq.Messages, "fixed responses must not reach the model")
}

func TestAskRetrievesAndDeduplicatesSources(t *testing.T) {
	fr, err := LoadFixedResponses("")
	require.NoError(t, err)

	retriever := &fakeRetriever{matches: []vectorindex.Match{
		{Meta: vectorindex.Metadata{TenantID: "t1", Source: "manual.pdf", ContentPreview: "Refunds take 5 days."}},
		{Meta: vectorindex.Metadata{TenantID: "t1", Source: "faq.txt", ContentPreview: "Contact support for refunds."}},
		{Meta: vectorindex.Metadata{TenantID: "t1", Source: "manual.pdf", ContentPreview: "Refunds require a receipt."}},
	}}
	gateway := &fakeGateway{reply: "Refunds take 5 business days."}
	a := NewAnswerer(fr, &countingEmbedder{}, retriever, gateway, "gpt-4o-mini", 8)

	answer, err := a.Ask(context.Background(), "t1", "How long do refunds take?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Refunds take 5 business days.", answer.Text)
	assert.Equal(t, []string{"manual.pdf", "faq.txt"}, answer.Sources)
	assert.Equal(t, 8, retriever.gotTopK)

	prompt := gateway.lastReq.Messages[len(gateway.lastReq.Messages)-1].Content
	assert.Contains(t, prompt, "Refunds take 5 days.")
	assert.Contains(t, prompt, "How long do refunds take?")
}

func TestAskIncludesHistory(t *testing.T) {
	fr, err := LoadFixedResponses("")
	require.NoError(t, err)

	gateway := &fakeGateway{reply: "As I said, 5 days."}
	a := NewAnswerer(fr, &countingEmbedder{}, &fakeRetriever{}, gateway, "gpt-4o-mini", 8)

	history := []llm.Message{
		{Role: "user", Content: "How long do refunds take?"},
		{Role: "assistant", Content: "Refunds take 5 business days."},
	}
	_, err = a.Ask(context.Background(), "t1", "Are you sure?", history)
	require.NoError(t, err)

	require.Len(t, gateway.lastReq.Messages, 4)
	assert.Equal(t, "system", gateway.lastReq.Messages[0].Role)
	assert.Equal(t, "How long do refunds take?", gateway.lastReq.Messages[1].Content)
	assert.Equal(t, "assistant", gateway.lastReq.Messages[2].Role)
}

func TestAskEmptyIndex(t *testing.T) {
	fr, err := LoadFixedResponses("")
	require.NoError(t, err)

	gateway := &fakeGateway{reply: "I don't have that information."}
	a := NewAnswerer(fr, &countingEmbedder{}, &fakeRetriever{}, gateway, "gpt-4o-mini", 8)

	answer, err := a.Ask(context.Background(), "t1", "What is the meaning of life?", nil)
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.Contains(t, gateway.lastReq.Messages[1].Content, "no relevant information found")
}
