package units

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/internal/observability"
	"github.com/rahul/herodotus/pkg/config"
)

const (
	routerRole = `You are a routing agent. Break the task into steps and hand each step to the most suitable agent.`

	promptRole = `You are a prompt engineer. Rewrite the task as a clear, specific prompt that states the goal, constraints and expected output.
Respond with JSON only: {"prompt": "..."}`

	evaluationRole = `You are a quality reviewer. Evaluate how well the result completes the task.
Respond with JSON only:
{"completion": 0.0-1.0, "quality": 0.0-1.0, "contributions": {"<agent>": "..."}, "suggestions": ["..."]}`

	outputRole = `You are an output editor. Format the result into a clear, well-structured answer to the task.
Do not add facts that are not in the result.`
)

// Router plans over a sub-registry and runs the plan as a nested pipeline.
type Router struct {
	caller
	Sub        *agent.Registry
	Components config.RouterComponents
	Planner    agent.Planner
	Combiner   agent.Combiner
	Session    string
}

// NewRouter builds a router whose planner and combiner use the same model
// as the router itself.
func NewRouter(d Deps, sub *agent.Registry, components config.RouterComponents) *Router {
	r := &Router{caller: newCaller(NameRouter, routerRole, d), Sub: sub, Components: components}
	r.Planner = &agent.LLMPlanner{
		Completer: d.Completer,
		Config:    d.Config,
		Prompt:    d.Prompts.Planner(),
		Logger:    d.Logger,
	}
	r.Combiner = &agent.LLMCombiner{
		Completer: d.Completer,
		Config:    d.Config,
		Prompt:    d.Prompts.Combiner(),
	}
	return r
}

func (r *Router) Process(ctx context.Context, task, context string) (string, error) {
	if r.Sub == nil || r.Sub.Len() == 0 {
		return "", agent.NewUnitError(r.name, agent.KindExternalFailure, "no agents to route to", nil)
	}

	prompt := withContext(task, task, context)
	if r.Components.Prompt {
		prompt = r.optimize(ctx, prompt)
	}

	o := agent.NewOrchestrator(r.Sub, r.Planner, r.Combiner)
	o.Logger = r.logger
	o.Session = r.Session
	out, err := o.Run(ctx, prompt, agent.RunOptions{UsePlanner: true})
	if err != nil {
		kind := agent.Classify(err)
		var ue *agent.UnitError
		if errors.As(err, &ue) {
			kind = ue.Kind
		}
		return "", agent.NewUnitError(r.name, kind, "routed pipeline", err)
	}

	result := out.Output
	if r.Components.Evaluation {
		r.evaluate(ctx, task, out)
	}
	if r.Components.Output {
		formatted, err := r.complete(ctx, r.prompt("output", outputRole), "Task: "+task+"\n\nResult:\n"+result)
		if err != nil {
			return "", err
		}
		result = formatted
	}
	return result, nil
}

// optimize rewrites the task prompt. The original prompt is kept when the
// model's reply is unusable.
func (r *Router) optimize(ctx context.Context, prompt string) string {
	var out struct {
		Prompt string `json:"prompt"`
	}
	if err := r.completeJSON(ctx, r.prompt("prompt", promptRole), "Task: "+prompt, &out); err != nil {
		r.debugf("prompt optimization skipped: %v", err)
		return prompt
	}
	if p := strings.TrimSpace(out.Prompt); p != "" {
		return p
	}
	return prompt
}

// evaluate logs a quality report for the routed run. It never fails the run.
func (r *Router) evaluate(ctx context.Context, task string, out *agent.Outcome) {
	steps, _ := json.MarshalIndent(out.Steps, "", "  ")
	user := "Task: " + task + "\n\nSteps:\n" + string(steps) + "\n\nResult:\n" + out.Output

	var report map[string]any
	if err := r.completeJSON(ctx, r.prompt("evaluation", evaluationRole), user, &report); err != nil {
		r.debugf("evaluation skipped: %v", err)
		return
	}
	if r.logger != nil {
		r.logger.Log(observability.Event{
			Type:    observability.EventTypeEvaluation,
			Session: r.Session,
			Unit:    r.name,
			Data:    report,
		})
	}
}
