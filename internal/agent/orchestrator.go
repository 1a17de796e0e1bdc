package agent

import (
	"context"

	"github.com/rahul/herodotus/internal/observability"
)

// RunOptions selects where the steps of a run come from and whether the
// outputs are merged.
type RunOptions struct {
	Steps       []Step // explicit steps win over planning
	UsePlanner  bool
	SkipCombine bool
	Context     string // context for the first step; defaults to the task
}

// Outcome is the result of a full run.
type Outcome struct {
	Steps  Result `json:"steps"`
	Output string `json:"result"`
}

// Orchestrator plans, executes and combines one task.
type Orchestrator struct {
	Registry *Registry
	Planner  Planner
	Executor *Executor
	Combiner Combiner

	Logger  *observability.Logger
	Status  *observability.Status
	Session string
}

func NewOrchestrator(reg *Registry, planner Planner, combiner Combiner) *Orchestrator {
	return &Orchestrator{
		Registry: reg,
		Planner:  planner,
		Executor: NewExecutor(reg),
		Combiner: combiner,
	}
}

// Run executes task through the registry. Errors are *PipelineError values.
func (o *Orchestrator) Run(ctx context.Context, task string, opts RunOptions) (*Outcome, error) {
	if o.Status != nil {
		o.Status.Begin(task)
	}
	out, err := o.run(ctx, task, opts)
	if o.Status != nil {
		o.Status.End(err)
	}
	return out, err
}

func (o *Orchestrator) run(ctx context.Context, task string, opts RunOptions) (*Outcome, error) {
	steps := opts.Steps
	if len(steps) == 0 {
		available := o.Registry.Names()
		if opts.UsePlanner && o.Planner != nil {
			o.setRole(observability.RolePlanning, "")
			steps = o.Planner.Plan(ctx, task, available)
		} else {
			steps = FallbackPlan(task, available)
		}
	}

	exec := NewExecutor(o.Registry)
	if o.Executor != nil {
		copied := *o.Executor
		exec = &copied
	}
	if exec.Logger == nil {
		exec.Logger = o.Logger
	}
	if exec.Status == nil {
		exec.Status = o.Status
	}
	if exec.Session == "" {
		exec.Session = o.Session
	}

	initial := opts.Context
	if initial == "" {
		initial = task
	}
	result, err := exec.ExecuteFrom(ctx, task, initial, steps)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Steps: result}
	if opts.SkipCombine || o.Combiner == nil {
		outcome.Output = result.Last()
		return outcome, nil
	}

	o.setRole(observability.RoleCombining, "")
	merged, err := o.Combiner.Combine(ctx, result.Outputs())
	if err != nil {
		return nil, &PipelineError{Kind: UnitFailed, Unit: "combiner", Err: AsUnitError("combiner", err)}
	}
	if o.Logger != nil && len(result) > 1 {
		o.Logger.Log(observability.Event{
			Type:    observability.EventTypeCombine,
			Session: o.Session,
			Data:    map[string]int{"inputs": len(result)},
		})
	}
	outcome.Output = merged
	return outcome, nil
}

func (o *Orchestrator) setRole(role observability.Role, unit string) {
	if o.Status != nil {
		o.Status.Set(role, unit)
	}
}
