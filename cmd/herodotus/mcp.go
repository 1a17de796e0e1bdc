package main

import (
	"github.com/spf13/cobra"

	"github.com/rahul/herodotus/internal/app"
	"github.com/rahul/herodotus/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pipeline as MCP tools over stdio",
	Long:  "Expose run_pipeline, list_workflows and run_workflow to an MCP client. Logs go to stderr; stdout carries the protocol.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			return mcptools.ServeStdio(svc, version)
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
