package app

import (
	"context"
	"fmt"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/internal/store"
)

// WorkflowStep is the outcome of one workflow step.
type WorkflowStep struct {
	Index  int          `json:"index"`
	Steps  agent.Result `json:"steps"`
	Output string       `json:"result"`
}

// WorkflowResult is the outcome of a full workflow run.
type WorkflowResult struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Steps  []WorkflowStep `json:"steps"`
	Output string         `json:"result"`
}

// ExecuteWorkflow runs every step of the workflow as a full pipeline over
// the same task. Each step starts from the previous step's output. The
// first failure aborts the workflow.
func (s *Service) ExecuteWorkflow(ctx context.Context, id, task string) (*WorkflowResult, error) {
	if s.deps.Workflows == nil {
		return nil, store.ErrWorkflowNotFound
	}
	wf, err := s.deps.Workflows.Get(id)
	if err != nil {
		return nil, err
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	res := &WorkflowResult{ID: wf.ID, Name: wf.Name}
	previous := ""
	for i, settings := range wf.Steps {
		out, err := s.run(ctx, task, settings, agent.RunOptions{Context: previous})
		if err != nil {
			return nil, fmt.Errorf("workflow %s step %d: %w", wf.Name, i+1, err)
		}
		res.Steps = append(res.Steps, WorkflowStep{Index: i, Steps: out.Steps, Output: out.Output})
		previous = out.Output
	}
	res.Output = previous
	return res, nil
}
