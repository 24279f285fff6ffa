package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecent(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.AppendExchange(ctx, "t1", "user-1", "How do refunds work?", "They take 5 days."))
	require.NoError(t, store.AppendExchange(ctx, "t1", "user-1", "Thanks!", "You're welcome."))

	msgs, err := store.Recent(ctx, "t1", "user-1")
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "How do refunds work?", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "You're welcome.", msgs[3].Content)
}

func TestRecentWindowBounded(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, store.AppendExchange(ctx, "t1", "u", "question", "answer"))
	}

	msgs, err := store.Recent(ctx, "t1", "u")
	require.NoError(t, err)
	assert.Len(t, msgs, recentWindow)
}

func TestRecentMissingConversation(t *testing.T) {
	store := NewStore(t.TempDir())

	msgs, err := store.Recent(context.Background(), "t1", "stranger")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConversationsIsolatedPerTenant(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.AppendExchange(ctx, "t1", "u", "q1", "a1"))
	require.NoError(t, store.AppendExchange(ctx, "t2", "u", "q2", "a2"))

	msgs, err := store.Recent(ctx, "t1", "u")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "q1", msgs[0].Content)
}

func TestTopQuestions(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.AppendExchange(ctx, "t1", "u1", "What are your hours?", "9 to 5."))
	require.NoError(t, store.AppendExchange(ctx, "t1", "u2", "what are your HOURS??", "9 to 5."))
	require.NoError(t, store.AppendExchange(ctx, "t1", "u2", "Do you ship abroad?", "Yes."))
	require.NoError(t, store.AppendExchange(ctx, "t2", "u9", "Other tenant question", "n/a"))

	top, err := store.TopQuestions(ctx, "t1", 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, QuestionCount{Question: "what are your hours", Count: 2}, top[0])
	assert.Equal(t, QuestionCount{Question: "do you ship abroad", Count: 1}, top[1])
}

func TestTopQuestionsLimit(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	for _, q := range []string{"a?", "b?", "c?", "d?"} {
		require.NoError(t, store.AppendExchange(ctx, "t1", "u", q, "ok"))
	}

	top, err := store.TopQuestions(ctx, "t1", 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestConversationCount(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	n, err := store.ConversationCount(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.AppendExchange(ctx, "t1", "u1", "q", "a"))
	require.NoError(t, store.AppendExchange(ctx, "t1", "u2", "q", "a"))

	n, err = store.ConversationCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
