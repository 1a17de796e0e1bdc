// Package units holds the capability units a pipeline is built from. Each
// unit wraps one or more model calls behind agent.Unit.
package units

import (
	"context"
	"strings"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/internal/llm"
	"github.com/rahul/herodotus/internal/observability"
)

// Unit names, in builder priority order.
const (
	NameRAG       = "rag"
	NameTool      = "tool"
	NameMemory    = "memory"
	NameRouter    = "router"
	NameReasoning = "reasoning"
)

// Deps are the collaborators every unit needs.
type Deps struct {
	Completer llm.Completer
	Config    llm.CompletionConfig
	Prompts   *agent.PromptManager
	Logger    *observability.Logger
}

// caller performs completions on behalf of one unit and turns failures into
// *agent.UnitError.
type caller struct {
	name    string
	role    string
	prompts *agent.PromptManager
	llm     llm.Completer
	cfg     llm.CompletionConfig
	logger  *observability.Logger
}

func newCaller(name, builtinRole string, d Deps) caller {
	return caller{
		name:    name,
		role:    d.Prompts.Get(name, builtinRole),
		prompts: d.Prompts,
		llm:     d.Completer,
		cfg:     d.Config,
		logger:  d.Logger,
	}
}

func (c caller) Name() string { return c.name }

// prompt returns the component prompt <unit>_<component>, overridable like
// the role prompt.
func (c caller) prompt(component, builtin string) string {
	return c.prompts.Get(c.name+"_"+component, builtin)
}

func (c caller) complete(ctx context.Context, system, user string) (string, error) {
	out, err := c.llm.Complete(ctx, system, user, c.cfg)
	if err != nil {
		return "", agent.NewUnitError(c.name, "", "completion failed", err)
	}
	if c.logger != nil {
		c.logger.LogLLM(c.name, system, user, out)
	}
	return out, nil
}

// completeJSON asks for a structured reply and decodes it into v.
func (c caller) completeJSON(ctx context.Context, system, user string, v any) error {
	raw, err := c.complete(ctx, system, user)
	if err != nil {
		return err
	}
	if err := agent.DecodeJSON(raw, v); err != nil {
		return agent.NewUnitError(c.name, agent.KindInvalidResponse, "", err)
	}
	return nil
}

func (c caller) debugf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Zap().Sugar().Debugf(c.name+": "+format, args...)
	}
}

// withContext appends the previous step's output to a user prompt. The first
// step receives the task itself as context, which is not repeated.
func withContext(prompt, task, context string) string {
	context = strings.TrimSpace(context)
	if context == "" || context == strings.TrimSpace(task) {
		return prompt
	}
	return prompt + "\n\nContext from the previous step:\n" + context
}
