package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/herodotus/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "herodotus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHistoryStore_AddAndGet(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(openTestDB(t))

	require.NoError(t, h.AddMessage(ctx, "s1", "human", "hello"))
	require.NoError(t, h.AddMessage(ctx, "s1", "ai", "hi there"))
	require.NoError(t, h.AddMessage(ctx, "s2", "human", "other session"))

	msgs, err := h.GetHistory(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "ai", msgs[1].Role)

	last, err := h.GetHistory(ctx, "s1", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "hi there", last[0].Content)
}

func TestHistoryStore_DuplicateMessageIgnored(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(openTestDB(t))

	require.NoError(t, h.AddMessage(ctx, "s", "human", "same"))
	require.NoError(t, h.AddMessage(ctx, "s", "human", "same"))

	msgs, err := h.GetHistory(ctx, "s", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestHistoryStore_RetriedExchangeStoredOnce(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(openTestDB(t))

	require.NoError(t, h.AddExchange(ctx, "s", "what is go?", "a language"))
	require.NoError(t, h.AddExchange(ctx, "s", "what is go?", "a programming language"))

	msgs, err := h.GetHistory(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "what is go?", msgs[0].Content)
	assert.Equal(t, "a programming language", msgs[1].Content)
}

func TestHistoryStore_RepeatedQuestionAppends(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(openTestDB(t))

	require.NoError(t, h.AddExchange(ctx, "s", "who won at Salamis?", "the Greeks"))
	require.NoError(t, h.AddExchange(ctx, "s", "who led them?", "Themistocles"))
	require.NoError(t, h.AddExchange(ctx, "s", "who won at Salamis?", "the Greek fleet"))

	msgs, err := h.GetHistory(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	var contents []string
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{
		"who won at Salamis?", "the Greeks",
		"who led them?", "Themistocles",
		"who won at Salamis?", "the Greek fleet",
	}, contents)
}

func TestHistoryStore_ClearAndSessions(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(openTestDB(t))
	require.NoError(t, h.AddMessage(ctx, "b", "human", "x"))
	require.NoError(t, h.AddMessage(ctx, "a", "human", "y"))

	sessions, err := h.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sessions)

	require.NoError(t, h.Clear(ctx, "a"))
	msgs, err := h.GetHistory(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

// letterEmbedder embeds text as counts of a few letters.
type letterEmbedder struct{ calls int }

func (e *letterEmbedder) vec(s string) []float32 {
	s = strings.ToLower(s)
	return []float32{
		float32(strings.Count(s, "a")),
		float32(strings.Count(s, "b")),
		float32(strings.Count(s, "c")),
	}
}

func (e *letterEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vec(t)
	}
	return out, nil
}

func (e *letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vec(text), nil
}

func TestVectorStore_SimilaritySearch(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t), &letterEmbedder{})

	ids, err := vs.AddDocuments(ctx, []schema.Document{
		{PageContent: "aaaa", Metadata: map[string]any{"source": "a.txt"}},
		{PageContent: "bbbb", Metadata: map[string]any{"source": "b.txt"}},
		{PageContent: "aab"},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	docs, err := vs.SimilaritySearch(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "aaaa", docs[0].PageContent)
	assert.Equal(t, "aab", docs[1].PageContent)
	assert.InDelta(t, 1.0, docs[0].Score, 1e-6)
	assert.Equal(t, "a.txt", docs[0].Metadata["source"])

	docs, err = vs.SimilaritySearch(ctx, "a", 10, vectorstores.WithScoreThreshold(0.99))
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = vs.SimilaritySearch(ctx, "a", 10, vectorstores.WithFilters(map[string]any{"source": "b.txt"}))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "bbbb", docs[0].PageContent)
}

func TestVectorStore_DeduplicatesAndNamespaces(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t), &letterEmbedder{})

	first, err := vs.AddDocuments(ctx, []schema.Document{{PageContent: "abc"}})
	require.NoError(t, err)
	again, err := vs.AddDocuments(ctx, []schema.Document{{PageContent: "abc"}})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = vs.AddDocuments(ctx, []schema.Document{{PageContent: "abc"}}, vectorstores.WithNameSpace("memory"))
	require.NoError(t, err)

	n, err := vs.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = vs.Count(ctx, "memory")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVectorStore_SameContentAcrossSessions(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t), &letterEmbedder{})
	ns := vectorstores.WithNameSpace("memory")
	exchange := "Q: hi\nA: hello"

	alice, err := vs.AddDocuments(ctx, []schema.Document{{PageContent: exchange, Metadata: map[string]any{"session": "alice"}}}, ns)
	require.NoError(t, err)
	bob, err := vs.AddDocuments(ctx, []schema.Document{{PageContent: exchange, Metadata: map[string]any{"session": "bob"}}}, ns)
	require.NoError(t, err)
	assert.NotEqual(t, alice, bob)

	docs, err := vs.SimilaritySearch(ctx, "hi", 10, ns, vectorstores.WithFilters(map[string]any{"session": "bob"}))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "bob", docs[0].Metadata["session"])

	removed, err := vs.Delete(ctx, "memory", map[string]any{"session": "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	docs, err = vs.SimilaritySearch(ctx, "hi", 10, ns, vectorstores.WithFilters(map[string]any{"session": "bob"}))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestVectorStore_DeleteByMetadata(t *testing.T) {
	ctx := context.Background()
	vs := NewVectorStore(openTestDB(t), &letterEmbedder{})
	ns := vectorstores.WithNameSpace("memory")

	_, err := vs.AddDocuments(ctx, []schema.Document{
		{PageContent: "aa", Metadata: map[string]any{"session": "s1"}},
		{PageContent: "bb", Metadata: map[string]any{"session": "s2"}},
		{PageContent: "cc", Metadata: map[string]any{"session": "s1"}},
	}, ns)
	require.NoError(t, err)

	removed, err := vs.Delete(ctx, "memory", map[string]any{"session": "s1"})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	docs, err := vs.SimilaritySearch(ctx, "aa", 10, ns)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "bb", docs[0].PageContent)
}

func TestVectorStore_NoEmbedder(t *testing.T) {
	vs := NewVectorStore(openTestDB(t), nil)
	_, err := vs.SimilaritySearch(context.Background(), "q", 1)
	assert.ErrorIs(t, err, ErrNoEmbedder)
}

func TestWorkflowStore_CRUD(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflows.json")
	s := NewWorkflowStore(path)

	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	step := config.Settings{Model: "gpt-4o", Agents: config.AgentToggles{RAG: true}}
	saved, err := s.Save(Workflow{Name: "research", Steps: []config.Settings{step}})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := s.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "research", got.Name)
	assert.Equal(t, "gpt-4o", got.Steps[0].Model)

	// A fresh store reads the same file.
	list, err = NewWorkflowStore(path).List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Delete(saved.ID))
	_, err = s.Get(saved.ID)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
	assert.ErrorIs(t, s.Delete(saved.ID), ErrWorkflowNotFound)
}

func TestWorkflowStore_Validation(t *testing.T) {
	s := NewWorkflowStore(filepath.Join(t.TempDir(), "wf.json"))

	_, err := s.Save(Workflow{Name: "", Steps: []config.Settings{{}}})
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
	_, err = s.Save(Workflow{Name: "empty"})
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
}

func TestWorkflowStore_RejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"1","name":"","steps":[]}]`), 0644))

	_, err := NewWorkflowStore(path).List()
	assert.True(t, errors.Is(err, ErrInvalidWorkflow))
}
