// Package mcptools exposes the pipeline as MCP tools.
//
// Each tool is a struct holding its Backend, with Definition returning the
// mcp.Tool schema and Handle serving calls. Failures are reported as tool
// errors so the calling model can read them.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/internal/app"
	"github.com/rahul/herodotus/internal/store"
	"github.com/rahul/herodotus/pkg/config"
)

// Backend is what the tools need from the service.
type Backend interface {
	Process(ctx context.Context, task string, settings config.Settings) (*agent.Outcome, error)
	ExecuteWorkflow(ctx context.Context, id, task string) (*app.WorkflowResult, error)
	Workflows() *store.WorkflowStore
}

// RunPipelineTool handles run_pipeline.
type RunPipelineTool struct {
	backend Backend
}

func NewRunPipelineTool(b Backend) *RunPipelineTool { return &RunPipelineTool{backend: b} }

func (t *RunPipelineTool) Definition() mcp.Tool {
	return mcp.NewTool("run_pipeline",
		mcp.WithDescription("Run a task through the herodotus agent pipeline and return the combined answer."),
		mcp.WithString("task",
			mcp.Required(),
			mcp.Description("The task or question to process"),
		),
		mcp.WithArray("agents",
			mcp.Description("Units to enable: rag, tool, memory, router, reasoning. Defaults to the configured units."),
			mcp.WithStringItems(),
		),
		mcp.WithArray("techniques",
			mcp.Description("Reasoning techniques, e.g. cot, tot, react"),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("plan",
			mcp.Description("Let the model plan which units run"),
		),
		mcp.WithString("session",
			mcp.Description("Memory session id"),
		),
	)
}

func (t *RunPipelineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task := strings.TrimSpace(req.GetString("task", ""))
	if task == "" {
		return mcp.NewToolResultError("'task' is required"), nil
	}

	agents, err := toggles(stringsArg(req, "agents"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	settings := config.Settings{
		Agents:     agents,
		Techniques: stringsArg(req, "techniques"),
		Plan:       boolArg(req, "plan"),
		Session:    req.GetString("session", ""),
	}

	out, err := t.backend.Process(ctx, task, settings)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pipeline failed: %v", err)), nil
	}
	return mcp.NewToolResultText(out.Output), nil
}

// ListWorkflowsTool handles list_workflows.
type ListWorkflowsTool struct {
	backend Backend
}

func NewListWorkflowsTool(b Backend) *ListWorkflowsTool { return &ListWorkflowsTool{backend: b} }

func (t *ListWorkflowsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_workflows",
		mcp.WithDescription("List the saved workflows with their ids and step counts."),
	)
}

func (t *ListWorkflowsTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wfs, err := t.backend.Workflows().List()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if len(wfs) == 0 {
		return mcp.NewToolResultText("No workflows saved."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d workflows:\n\n", len(wfs))
	for _, wf := range wfs {
		fmt.Fprintf(&b, "- %s %q (%d steps)\n", wf.ID, wf.Name, len(wf.Steps))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// RunWorkflowTool handles run_workflow.
type RunWorkflowTool struct {
	backend Backend
}

func NewRunWorkflowTool(b Backend) *RunWorkflowTool { return &RunWorkflowTool{backend: b} }

func (t *RunWorkflowTool) Definition() mcp.Tool {
	return mcp.NewTool("run_workflow",
		mcp.WithDescription("Run a saved workflow over a task. Returns the final output and each step's result as JSON."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Workflow id from list_workflows"),
		),
		mcp.WithString("task",
			mcp.Required(),
			mcp.Description("The task every step works on"),
		),
	)
}

func (t *RunWorkflowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	task := strings.TrimSpace(req.GetString("task", ""))
	if id == "" || task == "" {
		return mcp.NewToolResultError("'id' and 'task' are required"), nil
	}

	res, err := t.backend.ExecuteWorkflow(ctx, id, task)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow failed: %v", err)), nil
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// boolArg returns nil when key is absent so the configured default applies.
func boolArg(req mcp.CallToolRequest, key string) *bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return nil
	}
	return config.Bool(v)
}

// stringsArg reads an array of strings, also accepting a comma separated string.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	switch v := req.GetArguments()[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		out = append(out, v...)
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func toggles(names []string) (config.AgentToggles, error) {
	var a config.AgentToggles
	for _, name := range names {
		switch strings.ToLower(name) {
		case "rag":
			a.RAG = true
		case "tool":
			a.Tool = true
		case "memory":
			a.Memory = true
		case "router":
			a.Router = true
		case "reasoning":
			a.Reasoning = true
		default:
			return a, fmt.Errorf("unknown agent %q", name)
		}
	}
	return a, nil
}
