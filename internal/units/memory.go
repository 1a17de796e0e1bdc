package units

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/internal/store"
	"github.com/rahul/herodotus/pkg/config"
)

const (
	memoryRole = `You are an assistant that manages conversation memory. Use the conversation so far and related
earlier exchanges to answer consistently. Keep track of important facts and preferences the user has stated.`

	summaryRole = `Summarize the following conversation. Keep names, decisions, open questions and user preferences.`

	keyPointsRole = `Extract the key facts from the following conversation.
Respond with JSON only: {"points": ["...", "..."]}`
)

// MemoryNamespace holds recalled exchanges in the vector store.
const MemoryNamespace = "memory"

// DefaultSession is used when no session is configured.
const DefaultSession = "default"

// History is the conversation log the memory unit reads and appends to.
type History interface {
	AddExchange(ctx context.Context, session, question, answer string) error
	GetHistory(ctx context.Context, session string, limit int) ([]store.Message, error)
	Clear(ctx context.Context, session string) error
}

// Forgetter removes vector documents matching metadata filters.
type Forgetter interface {
	Delete(ctx context.Context, namespace string, filters map[string]any) (int, error)
}

// Memory answers with the conversation history of a session and records
// each exchange.
type Memory struct {
	caller
	History      History
	Vectors      vectorstores.VectorStore
	Components   config.MemoryComponents
	Session      string
	HistoryLimit int
}

func NewMemory(d Deps, history History, vectors vectorstores.VectorStore, components config.MemoryComponents, session string) *Memory {
	if session == "" {
		session = DefaultSession
	}
	return &Memory{
		caller:       newCaller(NameMemory, memoryRole, d),
		History:      history,
		Vectors:      vectors,
		Components:   components,
		Session:      session,
		HistoryLimit: 20,
	}
}

func (m *Memory) Process(ctx context.Context, task, context string) (string, error) {
	var sections []string

	if m.Components.Conversation || m.Components.Summary {
		transcript, err := m.transcript(ctx)
		if err != nil {
			return "", err
		}
		if transcript != "" {
			if m.Components.Summary {
				summary, err := m.complete(ctx, m.prompt("summary", summaryRole), transcript)
				if err != nil {
					return "", err
				}
				sections = append(sections, "Conversation summary:\n"+summary)
			} else {
				sections = append(sections, "Conversation so far:\n"+transcript)
			}
		}
	}

	if m.Components.Vector && m.Vectors != nil {
		recalled, err := m.recall(ctx, task)
		if err != nil {
			return "", err
		}
		if recalled != "" {
			sections = append(sections, "Related earlier exchanges:\n"+recalled)
		}
	}

	sections = append(sections, "Task: "+task)
	answer, err := m.complete(ctx, m.role, withContext(strings.Join(sections, "\n\n"), task, context))
	if err != nil {
		return "", err
	}

	if err := m.remember(ctx, task, answer); err != nil {
		return "", err
	}
	return answer, nil
}

// remember stores the exchange. Retrying the latest question replaces its
// answer in the history instead of appending a copy.
func (m *Memory) remember(ctx context.Context, task, answer string) error {
	if m.History != nil && (m.Components.Conversation || m.Components.Summary) {
		if err := m.History.AddExchange(ctx, m.Session, task, answer); err != nil {
			return agent.NewUnitError(m.name, "", "save exchange", err)
		}
	}
	if m.Components.Vector && m.Vectors != nil {
		doc := schema.Document{
			PageContent: fmt.Sprintf("Q: %s\nA: %s", task, answer),
			Metadata:    map[string]any{"session": m.Session},
		}
		if _, err := m.Vectors.AddDocuments(ctx, []schema.Document{doc}, vectorstores.WithNameSpace(MemoryNamespace)); err != nil {
			return agent.NewUnitError(m.name, "", "store exchange vector", err)
		}
	}
	return nil
}

func (m *Memory) recall(ctx context.Context, task string) (string, error) {
	docs, err := m.Vectors.SimilaritySearch(ctx, task, 3,
		vectorstores.WithNameSpace(MemoryNamespace),
		vectorstores.WithFilters(map[string]any{"session": m.Session}),
	)
	if err != nil {
		return "", agent.NewUnitError(m.name, "", "recall", err)
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.PageContent)
	}
	return strings.Join(parts, "\n---\n"), nil
}

func (m *Memory) transcript(ctx context.Context) (string, error) {
	if m.History == nil {
		return "", nil
	}
	msgs, err := m.History.GetHistory(ctx, m.Session, m.HistoryLimit)
	if err != nil {
		return "", agent.NewUnitError(m.name, "", "load history", err)
	}
	var b strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return strings.TrimSpace(b.String()), nil
}

// Summarize returns a model summary of the session, or "" when it is empty.
func (m *Memory) Summarize(ctx context.Context) (string, error) {
	transcript, err := m.transcript(ctx)
	if err != nil || transcript == "" {
		return "", err
	}
	return m.complete(ctx, m.prompt("summary", summaryRole), transcript)
}

// KeyPoints extracts the key facts of the session.
func (m *Memory) KeyPoints(ctx context.Context) ([]string, error) {
	transcript, err := m.transcript(ctx)
	if err != nil || transcript == "" {
		return nil, err
	}
	var out struct {
		Points []string `json:"points"`
	}
	if err := m.completeJSON(ctx, m.prompt("key_points", keyPointsRole), transcript, &out); err != nil {
		return nil, err
	}
	return out.Points, nil
}

// Clear forgets the session's history and recalled exchanges.
func (m *Memory) Clear(ctx context.Context) error {
	if m.History != nil {
		if err := m.History.Clear(ctx, m.Session); err != nil {
			return err
		}
	}
	if f, ok := m.Vectors.(Forgetter); ok {
		if _, err := f.Delete(ctx, MemoryNamespace, map[string]any{"session": m.Session}); err != nil {
			return err
		}
	}
	return nil
}
