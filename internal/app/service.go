// Package app wires configuration, stores, tools and units into the one
// construction path shared by the CLI, the HTTP API, the chat gateways and
// the MCP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores"
	"go.uber.org/zap"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/internal/governance"
	"github.com/rahul/herodotus/internal/llm"
	"github.com/rahul/herodotus/internal/observability"
	"github.com/rahul/herodotus/internal/store"
	"github.com/rahul/herodotus/internal/tools"
	"github.com/rahul/herodotus/internal/units"
	"github.com/rahul/herodotus/pkg/config"
)

var (
	// ErrEmptyTask is returned when a run is requested without a task.
	ErrEmptyTask = fmt.Errorf("%w: task is required", config.ErrInvalidSettings)

	// ErrNoVectorStore is returned by Ingest when no embedder is available.
	ErrNoVectorStore = errors.New("vector store unavailable: no embedding provider configured")
)

// CompleterFactory builds a text-generation collaborator for a provider.
type CompleterFactory func(name string, p config.ProviderConfig) (llm.Completer, error)

// Deps are the collaborators a Service is built from. Open fills them from
// the config; tests inject their own.
type Deps struct {
	Completers CompleterFactory
	History    *store.HistoryStore
	Vectors    *store.VectorStore
	Workflows  *store.WorkflowStore
	Tools      *tools.Registry
	Policy     governance.PolicyEngine
	Prompts    *agent.PromptManager
	Logger     *observability.Logger
	Status     *observability.Status
}

// Service runs tasks and workflows.
type Service struct {
	cfg  *config.Config
	deps Deps

	closers []func() error
}

func New(cfg *config.Config, deps Deps) *Service {
	if deps.Completers == nil {
		deps.Completers = llm.New
	}
	if deps.Tools == nil {
		deps.Tools = tools.NewRegistry()
	}
	if deps.Policy == nil {
		deps.Policy = governance.AllowAll{}
	}
	if deps.Logger == nil {
		deps.Logger = observability.Nop()
	}
	if deps.Status == nil {
		deps.Status = observability.NewStatus()
	}
	return &Service{cfg: cfg, deps: deps}
}

// Open builds a Service with sqlite stores, the full tool set and the
// configured governance policy.
func Open(cfg *config.Config, logger *observability.Logger) (*Service, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	db, err := store.Open(cfg.Memory.Path)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	policy, err := governance.FromConfig(cfg.Governance)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry, render, err := defaultTools(cfg.App.Workspace, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	deps := Deps{
		History:   store.NewHistoryStore(db),
		Workflows: store.NewWorkflowStore(cfg.App.Workflows),
		Tools:     registry,
		Policy:    policy,
		Prompts:   agent.NewPromptManager(cfg.App.Prompts),
		Logger:    logger,
	}
	if embedder, err := defaultEmbedder(cfg); err != nil {
		logger.Zap().Warn("vector store disabled", zap.Error(err))
	} else {
		deps.Vectors = store.NewVectorStore(db, embedder)
	}

	s := New(cfg, deps)
	s.closers = append(s.closers, render.Close, db.Close)
	return s, nil
}

func defaultEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	name, p := cfg.GetDefaultProvider()
	if name == "" {
		return nil, errors.New("no enabled provider")
	}
	if p.APIKey == "" {
		return nil, fmt.Errorf("provider %s has no api key", name)
	}
	return llm.NewEmbedder(name, p)
}

// Close releases the browser and the database.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func (s *Service) Config() *config.Config { return s.cfg }

func (s *Service) History() *store.HistoryStore { return s.deps.History }

func (s *Service) Workflows() *store.WorkflowStore { return s.deps.Workflows }

func (s *Service) Logger() *observability.Logger { return s.deps.Logger }

func (s *Service) Status() observability.Snapshot { return s.deps.Status.Snapshot() }

// vectors returns the vector store, or a nil interface when there is none.
func (s *Service) vectors() vectorstores.VectorStore {
	if s.deps.Vectors == nil {
		return nil
	}
	return s.deps.Vectors
}

func (s *Service) history() units.History {
	if s.deps.History == nil {
		return nil
	}
	return s.deps.History
}

// Settings layers override over the configured defaults and validates the
// result.
func (s *Service) Settings(override config.Settings) (config.Settings, error) {
	merged := s.cfg.Defaults.Merge(override)
	if err := merged.Validate(); err != nil {
		return config.Settings{}, err
	}
	return merged, nil
}

// unitDeps resolves the provider for settings and builds the shared unit
// collaborators.
func (s *Service) unitDeps(settings config.Settings) (units.Deps, error) {
	name, p, err := s.cfg.Provider(settings)
	if err != nil {
		return units.Deps{}, err
	}
	completer, err := s.deps.Completers(name, p)
	if err != nil {
		return units.Deps{}, fmt.Errorf("provider %s: %w", name, err)
	}
	cc := llm.FromSettings(settings)
	cc.Model = p.Model
	return units.Deps{
		Completer: completer,
		Config:    cc,
		Prompts:   s.deps.Prompts,
		Logger:    s.deps.Logger,
	}, nil
}

// BuildRegistry constructs the enabled units in priority order. The router
// routes over the rag, tool and memory units enabled alongside it. With no
// unit enabled the default RAG unit is registered.
func (s *Service) BuildRegistry(settings config.Settings) (*agent.Registry, error) {
	d, err := s.unitDeps(settings)
	if err != nil {
		return nil, err
	}
	return s.buildRegistry(d, settings), nil
}

// Descriptors lists every unit in priority order, marking the ones the
// settings enable.
func Descriptors(settings config.Settings) []agent.Descriptor {
	a := settings.Agents
	return []agent.Descriptor{
		{Name: units.NameRAG, Enabled: a.RAG, Config: map[string]any{"rag": settings.RAG}},
		{Name: units.NameTool, Enabled: a.Tool, Config: map[string]any{"tool": settings.Tool}},
		{Name: units.NameMemory, Enabled: a.Memory, Config: map[string]any{"memory": settings.Memory}},
		{Name: units.NameRouter, Enabled: a.Router, Config: map[string]any{"router": settings.Router}},
		{Name: units.NameReasoning, Enabled: a.Reasoning, Config: map[string]any{"techniques": settings.Techniques}},
	}
}

func (s *Service) buildRegistry(d units.Deps, settings config.Settings) *agent.Registry {
	reg := agent.NewRegistry()
	// sub is filled before the router is reached.
	sub := agent.NewRegistry()

	for _, desc := range Descriptors(settings) {
		if !desc.Enabled {
			continue
		}
		switch desc.Name {
		case units.NameRAG:
			u := units.NewRAG(d, s.vectors(), settings.RAG)
			reg.Add(u)
			sub.Add(u)
		case units.NameTool:
			u := units.NewTool(d, s.toolsFor(settings.Tool), s.deps.Policy)
			u.Session = settings.Session
			reg.Add(u)
			sub.Add(u)
		case units.NameMemory:
			u := units.NewMemory(d, s.history(), s.vectors(), settings.Memory, settings.Session)
			reg.Add(u)
			sub.Add(u)
		case units.NameRouter:
			u := units.NewRouter(d, sub, settings.Router)
			u.Session = settings.Session
			reg.Add(u)
		case units.NameReasoning:
			reg.Add(units.NewReasoning(d, settings.Techniques))
		}
	}

	if reg.Len() == 0 {
		reg.Add(units.NewRAG(d, s.vectors(), settings.RAG))
	}
	return reg
}

var unitDescriptions = map[string]string{
	units.NameRAG:       "answers from ingested documents",
	units.NameTool:      "runs one tool: code, shell, web search and scraping, workspace files",
	units.NameMemory:    "answers using the conversation history of the session",
	units.NameRouter:    "plans sub-steps over the other agents",
	units.NameReasoning: "step-by-step reasoning with prompting techniques",
}

// Process runs task through a pipeline built from the merged settings.
func (s *Service) Process(ctx context.Context, task string, override config.Settings) (*agent.Outcome, error) {
	return s.run(ctx, task, override, agent.RunOptions{})
}

// ProcessSteps runs explicit steps instead of planning.
func (s *Service) ProcessSteps(ctx context.Context, task string, override config.Settings, steps []agent.Step) (*agent.Outcome, error) {
	return s.run(ctx, task, override, agent.RunOptions{Steps: steps})
}

func (s *Service) run(ctx context.Context, task string, override config.Settings, opts agent.RunOptions) (*agent.Outcome, error) {
	if strings.TrimSpace(task) == "" {
		return nil, ErrEmptyTask
	}
	settings, err := s.Settings(override)
	if err != nil {
		return nil, err
	}
	d, err := s.unitDeps(settings)
	if err != nil {
		return nil, err
	}
	return s.orchestrator(d, settings).Run(ctx, task, agent.RunOptions{
		Steps:       opts.Steps,
		UsePlanner:  settings.Planning(),
		SkipCombine: !settings.Combining(),
		Context:     opts.Context,
	})
}

func (s *Service) orchestrator(d units.Deps, settings config.Settings) *agent.Orchestrator {
	planner := &agent.LLMPlanner{
		Completer:    d.Completer,
		Config:       d.Config,
		Prompt:       s.deps.Prompts.Planner(),
		Descriptions: unitDescriptions,
		Logger:       s.deps.Logger,
		Session:      settings.Session,
	}
	combiner := &agent.LLMCombiner{
		Completer: d.Completer,
		Config:    d.Config,
		Prompt:    s.deps.Prompts.Combiner(),
	}

	o := agent.NewOrchestrator(s.buildRegistry(d, settings), planner, combiner)
	o.Logger = s.deps.Logger
	o.Status = s.deps.Status
	o.Session = settings.Session
	return o
}

// Ingest adds files to the document store used by the RAG unit.
func (s *Service) Ingest(ctx context.Context, paths []string) (int, error) {
	if s.deps.Vectors == nil {
		return 0, ErrNoVectorStore
	}
	return units.Ingest(ctx, s.deps.Vectors, paths)
}

// Memory returns a memory unit for session built from the default settings.
func (s *Service) Memory(session string) (*units.Memory, error) {
	settings := s.cfg.Defaults
	d, err := s.unitDeps(settings)
	if err != nil {
		return nil, err
	}
	return units.NewMemory(d, s.history(), s.vectors(), settings.Memory, session), nil
}

// ClearMemory forgets a session without needing a model provider.
func (s *Service) ClearMemory(ctx context.Context, session string) error {
	m := units.NewMemory(units.Deps{Logger: s.deps.Logger}, s.history(), s.vectors(), config.MemoryComponents{}, session)
	return m.Clear(ctx)
}

// Heartbeat records liveness every interval until ctx is done.
func (s *Service) Heartbeat(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.deps.Status.Heartbeat()
			s.deps.Logger.LogHeartbeat()
		}
	}
}
