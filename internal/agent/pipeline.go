package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rahul/herodotus/internal/observability"
)

// DefaultUnit runs when a pipeline is executed with no steps.
const DefaultUnit = "rag"

var (
	ErrUnknownUnit   = errors.New("unknown unit")
	ErrUnitFailed    = errors.New("unit failed")
	ErrEmptyRegistry = errors.New("no units registered")
)

// FailureKind classifies a pipeline failure.
type FailureKind string

const (
	UnknownUnit   FailureKind = "unknown_unit"
	UnitFailed    FailureKind = "unit_failed"
	EmptyRegistry FailureKind = "empty_registry"
)

// PipelineError is returned by Executor.Execute. It matches ErrUnknownUnit,
// ErrUnitFailed or ErrEmptyRegistry with errors.Is, and unwraps to the
// failing unit's *UnitError.
type PipelineError struct {
	Kind FailureKind
	Unit string
	Err  error
}

func (e *PipelineError) Error() string {
	switch e.Kind {
	case UnknownUnit:
		return fmt.Sprintf("pipeline: unknown unit %q", e.Unit)
	case EmptyRegistry:
		return "pipeline: no units registered"
	default:
		return fmt.Sprintf("pipeline: %v", e.Err)
	}
}

func (e *PipelineError) Unwrap() error { return e.Err }

func (e *PipelineError) Is(target error) bool {
	switch target {
	case ErrUnknownUnit:
		return e.Kind == UnknownUnit
	case ErrUnitFailed:
		return e.Kind == UnitFailed
	case ErrEmptyRegistry:
		return e.Kind == EmptyRegistry
	}
	return false
}

// Step names a unit and the sub-task it should receive. An empty Task means
// the pipeline's task.
type Step struct {
	Unit string `json:"agent"`
	Task string `json:"task"`
}

// StepResult is the output of one executed step.
type StepResult struct {
	Unit   string `json:"agent"`
	Task   string `json:"task"`
	Output string `json:"result"`
}

// Result holds one entry per executed step, in order.
type Result []StepResult

// Outputs returns the step outputs in order.
func (r Result) Outputs() []string {
	out := make([]string, len(r))
	for i, s := range r {
		out[i] = s.Output
	}
	return out
}

// Last returns the context left after the final step.
func (r Result) Last() string {
	if len(r) == 0 {
		return ""
	}
	return r[len(r)-1].Output
}

// Executor runs steps sequentially, threading each output into the next
// step as context.
type Executor struct {
	Registry    *Registry
	DefaultUnit string

	Logger  *observability.Logger
	Status  *observability.Status
	Session string
}

func NewExecutor(reg *Registry) *Executor {
	return &Executor{Registry: reg, DefaultUnit: DefaultUnit}
}

// Execute validates every step against the registry and then runs them in
// order. Any failure aborts the pipeline and no partial result is returned.
func (e *Executor) Execute(ctx context.Context, task string, steps []Step) (Result, error) {
	return e.ExecuteFrom(ctx, task, task, steps)
}

// ExecuteFrom is Execute with an explicit context for the first step.
func (e *Executor) ExecuteFrom(ctx context.Context, task, initial string, steps []Step) (Result, error) {
	if len(steps) == 0 {
		if e.Registry.Len() == 0 {
			return nil, &PipelineError{Kind: EmptyRegistry, Err: ErrEmptyRegistry}
		}
		def := e.DefaultUnit
		if def == "" {
			def = DefaultUnit
		}
		steps = []Step{{Unit: def, Task: task}}
	}

	units := make([]Unit, len(steps))
	for i, step := range steps {
		u, err := e.Registry.Get(step.Unit)
		if err != nil {
			return nil, &PipelineError{Kind: UnknownUnit, Unit: step.Unit, Err: err}
		}
		units[i] = u
	}

	result := make(Result, 0, len(steps))
	current := initial
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, &PipelineError{
				Kind: UnitFailed,
				Unit: step.Unit,
				Err:  NewUnitError(step.Unit, "", "cancelled before start", err),
			}
		}

		sub := step.Task
		if sub == "" {
			sub = task
		}

		e.setStatus(step.Unit)
		e.logStep(step.Unit, i, "started")

		out, err := units[i].Process(ctx, sub, current)
		if err != nil {
			e.logStep(step.Unit, i, "failed")
			return nil, &PipelineError{Kind: UnitFailed, Unit: step.Unit, Err: AsUnitError(step.Unit, err)}
		}
		e.logStep(step.Unit, i, "completed")

		result = append(result, StepResult{Unit: step.Unit, Task: sub, Output: out})
		current = out
	}
	return result, nil
}

func (e *Executor) setStatus(unit string) {
	if e.Status != nil {
		e.Status.Set(observability.RoleExecuting, unit)
	}
}

func (e *Executor) logStep(unit string, index int, status string) {
	if e.Logger != nil {
		e.Logger.LogStep(e.Session, unit, index, status)
	}
}
