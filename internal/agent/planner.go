package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/herodotus/internal/llm"
	"github.com/rahul/herodotus/internal/observability"
)

// Planner proposes the steps for a task. Implementations never fail: a plan
// that cannot be produced or trusted is replaced by FallbackPlan.
type Planner interface {
	Plan(ctx context.Context, task string, available []string) []Step
}

// FallbackPlan sends the whole task to every available unit in order.
func FallbackPlan(task string, available []string) []Step {
	steps := make([]Step, 0, len(available))
	for _, name := range available {
		steps = append(steps, Step{Unit: name, Task: task})
	}
	return steps
}

// StaticPlanner always returns the fallback plan.
type StaticPlanner struct{}

func (StaticPlanner) Plan(_ context.Context, task string, available []string) []Step {
	return FallbackPlan(task, available)
}

const plannerPrompt = `You are a routing agent. Decide which agents should handle the task, in which order, and what each one should do.

Available agents:
%s

Reply with JSON only, in this exact shape:
{"steps": [{"agent": "<agent name>", "task": "<what this agent should do>"}]}

Use only the agent names listed above.`

var errEmptyPlan = errors.New("plan has no steps")

// LLMPlanner asks the model for a plan and validates it against the
// available units.
type LLMPlanner struct {
	Completer    llm.Completer
	Config       llm.CompletionConfig
	Prompt       string            // replaces the built-in system prompt; a %s receives the agent list
	Descriptions map[string]string // optional one-line description per unit
	Logger       *observability.Logger
	Session      string
}

func (p *LLMPlanner) Plan(ctx context.Context, task string, available []string) []Step {
	steps, err := p.plan(ctx, task, available)
	if err != nil {
		steps = FallbackPlan(task, available)
	}
	if p.Logger != nil {
		p.Logger.LogPlan(p.Session, steps, err != nil)
		if err != nil {
			p.Logger.Zap().Sugar().Debugf("planner fell back: %v", err)
		}
	}
	return steps
}

func (p *LLMPlanner) plan(ctx context.Context, task string, available []string) ([]Step, error) {
	if len(available) == 0 {
		return nil, errEmptyPlan
	}

	var lines []string
	for _, name := range available {
		if d := p.Descriptions[name]; d != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", name, d))
		} else {
			lines = append(lines, "- "+name)
		}
	}
	agents := strings.Join(lines, "\n")
	var system string
	switch {
	case p.Prompt == "":
		system = fmt.Sprintf(plannerPrompt, agents)
	case strings.Contains(p.Prompt, "%s"):
		system = fmt.Sprintf(p.Prompt, agents)
	default:
		system = p.Prompt + "\n\nAvailable agents:\n" + agents
	}

	raw, err := p.Completer.Complete(ctx, system, task, p.Config)
	if err != nil {
		return nil, err
	}

	var plan struct {
		Steps []Step `json:"steps"`
	}
	if err := DecodeJSON(raw, &plan); err != nil {
		return nil, err
	}
	if len(plan.Steps) == 0 {
		return nil, errEmptyPlan
	}

	known := make(map[string]bool, len(available))
	for _, name := range available {
		known[name] = true
	}
	for i, s := range plan.Steps {
		if !known[s.Unit] {
			return nil, fmt.Errorf("%w: step %d names %q", ErrMalformedResponse, i, s.Unit)
		}
		if strings.TrimSpace(s.Task) == "" {
			plan.Steps[i].Task = task
		}
	}
	return plan.Steps, nil
}
