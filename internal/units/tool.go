package units

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/internal/governance"
	"github.com/rahul/herodotus/internal/tools"
)

const toolRole = `You are a tool-using assistant. Pick the single tool that best completes the task and fill in its parameters.
Respond with JSON only: {"tool": "<name>", "parameters": {...}}

Available tools:
%s`

// ErrPolicyDenied is wrapped by tool unit errors when governance blocks a call.
var ErrPolicyDenied = errors.New("tool call denied by policy")

// Tool lets the model pick and run one tool from a registry.
type Tool struct {
	caller
	Tools   *tools.Registry
	Policy  governance.PolicyEngine
	Session string
}

func NewTool(d Deps, registry *tools.Registry, policy governance.PolicyEngine) *Tool {
	if policy == nil {
		policy = governance.AllowAll{}
	}
	return &Tool{caller: newCaller(NameTool, toolRole, d), Tools: registry, Policy: policy}
}

type toolChoice struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

func (t *Tool) Process(ctx context.Context, task, context string) (string, error) {
	if t.Tools == nil || t.Tools.Len() == 0 {
		return "", agent.NewUnitError(t.name, agent.KindExternalFailure, "no tools enabled", nil)
	}

	var system string
	if strings.Contains(t.role, "%s") {
		system = fmt.Sprintf(t.role, t.Tools.Describe())
	} else {
		system = t.role + "\n\nAvailable tools:\n" + t.Tools.Describe()
	}

	var choice toolChoice
	if err := t.completeJSON(ctx, system, withContext("Task: "+task, task, context), &choice); err != nil {
		return "", err
	}
	tool, ok := t.Tools.Get(choice.Tool)
	if !ok {
		return "", agent.NewUnitError(t.name, agent.KindInvalidResponse, fmt.Sprintf("unknown tool %q", choice.Tool), nil)
	}

	if choice.Parameters == nil {
		choice.Parameters = map[string]any{}
	}
	args, err := json.Marshal(choice.Parameters)
	if err != nil {
		return "", agent.NewUnitError(t.name, agent.KindInvalidResponse, "encode parameters", err)
	}

	decision, err := t.Policy.Evaluate(ctx, governance.Request{
		Unit:      t.name,
		Tool:      tool.Name(),
		Arguments: string(args),
		Session:   t.Session,
	})
	if err != nil {
		return "", agent.NewUnitError(t.name, "", "policy evaluation", err)
	}
	if t.logger != nil {
		t.logger.LogPolicy(t.name, tool.Name(), string(decision.Effect), decision.Reason)
	}
	if !decision.Allowed() {
		return "", agent.NewUnitError(t.name, agent.KindExternalFailure, decision.Reason, ErrPolicyDenied)
	}

	if t.logger != nil {
		t.logger.LogToolCall(t.name, tool.Name(), string(args))
	}
	out, err := tool.Execute(ctx, string(args))
	if err != nil {
		return "", agent.NewUnitError(t.name, "", "tool "+tool.Name(), err)
	}
	if t.logger != nil {
		t.logger.LogToolResult(t.name, tool.Name(), out)
	}
	return out, nil
}
