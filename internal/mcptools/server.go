package mcptools

import (
	"github.com/mark3labs/mcp-go/server"
)

const instructions = `herodotus runs tasks through a pipeline of capability units (rag, tool, memory, router, reasoning).
Use run_pipeline for one-off tasks and list_workflows / run_workflow for saved multi-step workflows.`

// NewServer registers every tool on a new MCP server.
func NewServer(backend Backend, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"herodotus",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	run := NewRunPipelineTool(backend)
	s.AddTool(run.Definition(), run.Handle)

	list := NewListWorkflowsTool(backend)
	s.AddTool(list.Definition(), list.Handle)

	workflow := NewRunWorkflowTool(backend)
	s.AddTool(workflow.Definition(), workflow.Handle)

	return s
}

// ServeStdio serves the tools over stdin/stdout until the client disconnects.
func ServeStdio(backend Backend, version string) error {
	return server.ServeStdio(NewServer(backend, version))
}
