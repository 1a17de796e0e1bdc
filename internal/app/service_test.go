package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/internal/llm"
	"github.com/rahul/herodotus/internal/llm/llmtest"
	"github.com/rahul/herodotus/internal/store"
	"github.com/rahul/herodotus/internal/tools"
	"github.com/rahul/herodotus/internal/units"
	"github.com/rahul/herodotus/pkg/config"
)

type vowelEmbedder struct{}

func (vowelEmbedder) vec(s string) []float32 {
	out := make([]float32, 5)
	for i, v := range "aeiou" {
		out[i] = float32(strings.Count(strings.ToLower(s), string(v)))
	}
	return out
}

func (e vowelEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vec(t)
	}
	return out, nil
}

func (e vowelEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vec(text), nil
}

type fixture struct {
	svc       *Service
	completer *llmtest.Completer
	history   *store.HistoryStore
	vectors   *store.VectorStore
	workflows *store.WorkflowStore
}

func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Providers = map[string]config.ProviderConfig{
		"openai": {APIKey: "test-key", Model: "test-model", Enabled: true},
	}

	db, err := store.Open(filepath.Join(dir, "herodotus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		completer: llmtest.New(replies...),
		history:   store.NewHistoryStore(db),
		vectors:   store.NewVectorStore(db, vowelEmbedder{}),
		workflows: store.NewWorkflowStore(filepath.Join(dir, "workflows.json")),
	}
	f.svc = New(cfg, Deps{
		Completers: func(string, config.ProviderConfig) (llm.Completer, error) { return f.completer, nil },
		History:    f.history,
		Vectors:    f.vectors,
		Workflows:  f.workflows,
	})
	return f
}

func TestBuildRegistry_PriorityOrder(t *testing.T) {
	f := newFixture(t)
	all := config.AgentToggles{RAG: true, Tool: true, Memory: true, Router: true, Reasoning: true}

	reg, err := f.svc.BuildRegistry(config.Settings{Agents: all})
	require.NoError(t, err)
	assert.Equal(t, []string{"rag", "tool", "memory", "router", "reasoning"}, reg.Names())
}

func TestBuildRegistry_DefaultsToRAG(t *testing.T) {
	f := newFixture(t)
	reg, err := f.svc.BuildRegistry(config.Settings{})
	require.NoError(t, err)
	assert.Equal(t, []string{"rag"}, reg.Names())
}

func TestBuildRegistry_DisabledUnitsAbsent(t *testing.T) {
	f := newFixture(t)
	reg, err := f.svc.BuildRegistry(config.Settings{Agents: config.AgentToggles{Reasoning: true, Tool: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tool", "reasoning"}, reg.Names())

	_, err = reg.Get("memory")
	assert.ErrorIs(t, err, agent.ErrNotFound)
}

func TestDescriptors(t *testing.T) {
	descs := Descriptors(config.Settings{
		Agents:     config.AgentToggles{Memory: true, Reasoning: true},
		Techniques: []string{"cot"},
	})
	require.Len(t, descs, 5)

	var enabled []string
	for _, d := range descs {
		if d.Enabled {
			enabled = append(enabled, d.Name)
		}
	}
	assert.Equal(t, []string{"memory", "reasoning"}, enabled)
	assert.Equal(t, []string{"cot"}, descs[4].Config["techniques"])
}

func TestProcessSteps_SkipsPlanning(t *testing.T) {
	f := newFixture(t, "Xerxes lashed the sea.")

	out, err := f.svc.ProcessSteps(context.Background(), "What did Xerxes do at the Hellespont?",
		config.Settings{Agents: config.AgentToggles{Reasoning: true}},
		[]agent.Step{{Unit: "reasoning", Task: "recall the bridge story"}})
	require.NoError(t, err)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "reasoning", out.Steps[0].Unit)
	assert.Equal(t, "Xerxes lashed the sea.", out.Output)
	assert.Len(t, f.completer.Calls(), 1)
}

func TestToolsFor(t *testing.T) {
	f := newFixture(t)
	f.svc.deps.Tools = tools.NewRegistry()
	f.svc.deps.Tools.Register(tools.NewCodeTool())
	f.svc.deps.Tools.Register(tools.NewShellTool(t.TempDir()))
	f.svc.deps.Tools.Register(tools.NewScraperTool())

	reg := f.svc.toolsFor(config.ToolComponents{Web: true, Code: true})
	var names []string
	for _, tool := range reg.List() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"code", "scraper"}, names)
}

func TestProcess_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Process(ctx, "   ", config.Settings{})
	assert.ErrorIs(t, err, ErrEmptyTask)
	assert.ErrorIs(t, err, config.ErrInvalidSettings)

	_, err = f.svc.Process(ctx, "task", config.Settings{Temperature: 5})
	assert.ErrorIs(t, err, config.ErrInvalidSettings)
	assert.Empty(t, f.completer.Calls())
}

func TestProcess_SingleUnit(t *testing.T) {
	f := newFixture(t, "Marathon was fought in 490 BC.")
	out, err := f.svc.Process(context.Background(), "When was Marathon?", config.Settings{
		Agents:     config.AgentToggles{Reasoning: true},
		Techniques: []string{"cot"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Marathon was fought in 490 BC.", out.Output)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "reasoning", out.Steps[0].Unit)

	calls := f.completer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "test-model", calls[0].Config.Model)
	assert.Equal(t, 0.7, calls[0].Config.Temperature)
}

func TestProcess_ChainsAndCombines(t *testing.T) {
	f := newFixture(t, "memory answer", "reasoned answer", "combined")
	out, err := f.svc.Process(context.Background(), "question", config.Settings{
		Agents: config.AgentToggles{Memory: true, Reasoning: true},
		Memory: config.MemoryComponents{Conversation: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "combined", out.Output)
	assert.Equal(t, []string{"memory answer", "reasoned answer"}, out.Steps.Outputs())

	calls := f.completer.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[1].User, "memory answer")

	msgs, err := f.history.GetHistory(context.Background(), "default", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestProcess_RAGWithoutComponentsRetrieves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "lydia.txt")
	require.NoError(t, os.WriteFile(path, []byte("Croesus was king of Lydia."), 0644))
	_, err := f.svc.Ingest(ctx, []string{path})
	require.NoError(t, err)

	f.completer.Respond = func(system, user string) (string, bool) {
		if strings.Contains(system, "based on the provided documents") {
			return "Croesus ruled Lydia.", true
		}
		return "{}", true
	}

	out, err := f.svc.Process(ctx, "Who was Croesus?", config.Settings{Agents: config.AgentToggles{RAG: true}})
	require.NoError(t, err)
	assert.Equal(t, "Croesus ruled Lydia.", out.Output)

	calls := f.completer.Calls()
	last := calls[len(calls)-1]
	assert.Contains(t, last.User, "Croesus was king of Lydia.")
	assert.Equal(t, 1, f.completer.CallsContaining("search query optimizer"))
	assert.Equal(t, 1, f.completer.CallsContaining("hypothetical document"))
}

func TestProcess_ToolWithoutComponentsGetsDefaultTools(t *testing.T) {
	f := newFixture(t)
	f.svc.deps.Tools = tools.NewRegistry()
	f.svc.deps.Tools.Register(tools.NewCodeTool())
	f.svc.deps.Tools.Register(tools.NewShellTool(t.TempDir()))

	settings, err := f.svc.Settings(config.Settings{Agents: config.AgentToggles{Tool: true}})
	require.NoError(t, err)
	reg, err := f.svc.BuildRegistry(settings)
	require.NoError(t, err)

	u, err := reg.Get(units.NameTool)
	require.NoError(t, err)
	var names []string
	for _, tool := range u.(*units.Tool).Tools.List() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"code"}, names)
}

func TestProcess_MemoryWithoutComponentsRecordsHistory(t *testing.T) {
	f := newFixture(t, "Solon warned him.")
	_, err := f.svc.Process(context.Background(), "Who warned Croesus?", config.Settings{
		Agents:  config.AgentToggles{Memory: true},
		Session: "lydia",
	})
	require.NoError(t, err)

	msgs, err := f.history.GetHistory(context.Background(), "lydia", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestProcess_NoCombineReturnsLastOutput(t *testing.T) {
	f := newFixture(t, "first", "second")
	out, err := f.svc.Process(context.Background(), "question", config.Settings{
		Agents:    config.AgentToggles{Memory: true, Reasoning: true},
		NoCombine: config.Bool(true),
		Session:   "cli",
	})
	require.NoError(t, err)
	assert.Equal(t, "second", out.Output)
	assert.Len(t, f.completer.Calls(), 2)
}

func TestProcess_PlannedSteps(t *testing.T) {
	f := newFixture(t, `{"steps": [{"agent": "reasoning", "task": "think"}]}`, "thought")
	out, err := f.svc.Process(context.Background(), "question", config.Settings{
		Agents: config.AgentToggles{Memory: true, Reasoning: true},
		Plan:   config.Bool(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "thought", out.Output)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "think", out.Steps[0].Task)
}

func TestProcess_UnitFailure(t *testing.T) {
	f := newFixture(t)
	f.completer.Push(llmtest.Reply{Err: errors.New("upstream 503")})

	_, err := f.svc.Process(context.Background(), "q", config.Settings{Agents: config.AgentToggles{Reasoning: true}})
	assert.ErrorIs(t, err, agent.ErrUnitFailed)
}

func TestExecuteWorkflow_ChainsOutputs(t *testing.T) {
	f := newFixture(t, "draft", "final")
	reasoning := config.Settings{Agents: config.AgentToggles{Reasoning: true}}
	wf, err := f.workflows.Save(store.Workflow{Name: "two pass", Steps: []config.Settings{reasoning, reasoning}})
	require.NoError(t, err)

	res, err := f.svc.ExecuteWorkflow(context.Background(), wf.ID, "write a haiku")
	require.NoError(t, err)
	assert.Equal(t, "final", res.Output)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, "draft", res.Steps[0].Output)

	calls := f.completer.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].User, "Task: write a haiku")
	assert.NotContains(t, calls[0].User, "previous step")
	assert.Contains(t, calls[1].User, "Task: write a haiku")
	assert.Contains(t, calls[1].User, "Context from the previous step:\ndraft")
}

func TestExecuteWorkflow_AbortsOnFailure(t *testing.T) {
	f := newFixture(t)
	f.completer.Push(llmtest.Reply{Err: errors.New("boom")}, llmtest.Reply{Text: "never"})
	reasoning := config.Settings{Agents: config.AgentToggles{Reasoning: true}}
	wf, err := f.workflows.Save(store.Workflow{Name: "w", Steps: []config.Settings{reasoning, reasoning}})
	require.NoError(t, err)

	_, err = f.svc.ExecuteWorkflow(context.Background(), wf.ID, "t")
	assert.ErrorIs(t, err, agent.ErrUnitFailed)
	assert.Len(t, f.completer.Calls(), 1)
}

func TestExecuteWorkflow_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ExecuteWorkflow(context.Background(), "missing", "t")
	assert.ErrorIs(t, err, store.ErrWorkflowNotFound)
}

func TestIngestAndClearMemory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "histories.txt")
	require.NoError(t, os.WriteFile(path, []byte("Croesus asked the oracle at Delphi."), 0644))
	n, err := f.svc.Ingest(ctx, []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, f.history.AddExchange(ctx, "s", "q", "a"))
	require.NoError(t, f.svc.ClearMemory(ctx, "s"))
	msgs, err := f.history.GetHistory(ctx, "s", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	f.svc.deps.Vectors = nil
	_, err = f.svc.Ingest(ctx, []string{path})
	assert.ErrorIs(t, err, ErrNoVectorStore)
}
