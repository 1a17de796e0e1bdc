package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rahul/herodotus/internal/app"
	"github.com/rahul/herodotus/internal/store"
	"github.com/rahul/herodotus/pkg/config"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage saved multi-step workflows",
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved workflows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			wfs, err := svc.Workflows().List()
			if err != nil {
				return err
			}
			if len(wfs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No workflows saved.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTEPS\tCREATED")
			for _, wf := range wfs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", wf.ID, wf.Name, len(wf.Steps), wf.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		})
	},
}

var (
	workflowFile  string
	workflowSteps []string
	workflowID    string
)

var workflowSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save a workflow from a steps file or inline step settings",
	Example: `  herodotus workflow save research --file steps.yaml
  herodotus workflow save polish --step '{"agents":{"reasoning":true}}' --step '{"agents":{"reasoning":true},"reasoning_techniques":["reflection"]}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := readSteps(workflowFile, workflowSteps)
		if err != nil {
			return err
		}
		for i, step := range steps {
			if err := step.Validate(); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		return withService(func(svc *app.Service) error {
			wf, err := svc.Workflows().Save(store.Workflow{ID: workflowID, Name: args[0], Steps: steps})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved workflow %s (%s, %d steps)\n", wf.ID, wf.Name, len(wf.Steps))
			return nil
		})
	},
}

var workflowDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			if err := svc.Workflows().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted workflow %s\n", args[0])
			return nil
		})
	},
}

var workflowRunCmd = &cobra.Command{
	Use:   "run <id> <task>",
	Short: "Run a saved workflow over a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		task := strings.Join(args[1:], " ")
		return withService(func(svc *app.Service) error {
			res, err := svc.ExecuteWorkflow(cmd.Context(), args[0], task)
			if err != nil {
				return err
			}
			if runJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return printAnswer(cmd.OutOrStdout(), res.Output, runRender)
		})
	},
}

func init() {
	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(workflowListCmd, workflowSaveCmd, workflowDeleteCmd, workflowRunCmd)

	workflowSaveCmd.Flags().StringVarP(&workflowFile, "file", "f", "", "yaml or json file holding a list of step settings")
	workflowSaveCmd.Flags().StringArrayVar(&workflowSteps, "step", nil, "step settings as json (repeatable)")
	workflowSaveCmd.Flags().StringVar(&workflowID, "id", "", "replace the workflow with this id")

	workflowRunCmd.Flags().BoolVar(&runRender, "render", false, "render the answer as markdown")
	workflowRunCmd.Flags().BoolVar(&runJSON, "json", false, "print every step as json")
}

// readSteps loads step settings from a file, then appends inline steps.
func readSteps(file string, inline []string) ([]config.Settings, error) {
	var steps []config.Settings
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		// YAML is a superset of JSON, so one decoder covers both.
		if err := yaml.Unmarshal(data, &steps); err != nil {
			return nil, fmt.Errorf("decode %s: %w", file, err)
		}
	}
	for i, raw := range inline {
		var s config.Settings
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, s)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: at least one step is required", store.ErrInvalidWorkflow)
	}
	return steps, nil
}
