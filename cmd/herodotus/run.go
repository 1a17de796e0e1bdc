package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/internal/app"
	"github.com/rahul/herodotus/pkg/config"
)

// settingsFlags collects the per-run settings from the command line.
type settingsFlags struct {
	s          config.Settings
	techniques map[string]*bool
	plan       bool
	noCombine  bool
	cmd        *cobra.Command
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	f.cmd = cmd
	fl := cmd.Flags()
	s := &f.s

	fl.StringVar(&s.Provider, "provider", "", "provider name from the config")
	fl.StringVar(&s.Model, "model", "", "model name")
	fl.StringVar(&s.APIKey, "api-key", "", "provider api key")
	fl.StringVar(&s.BaseURL, "base-url", "", "provider base url")

	fl.Float64Var(&s.Temperature, "temperature", 0, "sampling temperature (0-2)")
	fl.IntVar(&s.MaxTokens, "max-tokens", 0, "maximum tokens per completion")
	fl.Float64Var(&s.TopP, "top-p", 0, "nucleus sampling (0-1)")
	fl.IntVar(&s.TopK, "top-k", 0, "top-k sampling")
	fl.Float64Var(&s.PresencePenalty, "presence-penalty", 0, "presence penalty")
	fl.Float64Var(&s.FrequencyPenalty, "frequency-penalty", 0, "frequency penalty")

	fl.BoolVar(&s.Agents.RAG, "use-rag", false, "enable the rag unit")
	fl.BoolVar(&s.Agents.Tool, "use-tool", false, "enable the tool unit")
	fl.BoolVar(&s.Agents.Memory, "use-memory", false, "enable the memory unit")
	fl.BoolVar(&s.Agents.Router, "use-router", false, "enable the router unit")
	fl.BoolVar(&s.Agents.Reasoning, "use-reasoning", false, "enable the reasoning unit")

	fl.BoolVar(&s.RAG.Embedding, "rag-embedding", false, "rag: search with a hypothetical document")
	fl.BoolVar(&s.RAG.Database, "rag-database", false, "rag: retrieve from the document store")
	fl.BoolVar(&s.RAG.Retrieval, "rag-retrieval", false, "rag: rewrite queries and tune retrieval")
	fl.BoolVar(&s.RAG.Rerank, "rag-rerank", false, "rag: rerank retrieved documents")

	fl.BoolVar(&s.Tool.Code, "tool-code", false, "tool: go code interpreter")
	fl.BoolVar(&s.Tool.Shell, "tool-shell", false, "tool: shell commands")
	fl.BoolVar(&s.Tool.Web, "tool-web", false, "tool: web search and scraping")
	fl.BoolVar(&s.Tool.File, "tool-file", false, "tool: workspace files")

	fl.BoolVar(&s.Memory.Conversation, "memory-conversation", false, "memory: conversation history")
	fl.BoolVar(&s.Memory.Summary, "memory-summary", false, "memory: summarized history")
	fl.BoolVar(&s.Memory.Vector, "memory-vector", false, "memory: semantic recall")

	fl.BoolVar(&s.Router.Prompt, "router-prompt", false, "router: optimize the prompt first")
	fl.BoolVar(&s.Router.Evaluation, "router-evaluation", false, "router: evaluate the answer")
	fl.BoolVar(&s.Router.Output, "router-output", false, "router: format the final output")

	f.techniques = make(map[string]*bool, len(config.Techniques))
	for _, t := range config.Techniques {
		f.techniques[t] = fl.Bool(strings.ReplaceAll(t, "_", "-"), false, "reasoning technique "+t)
	}

	fl.BoolVar(&f.plan, "plan", false, "let the model plan which units run")
	fl.BoolVar(&f.noCombine, "no-combine", false, "return the last step's output instead of combining")
	fl.StringVar(&s.Session, "session", "", "memory session id")
}

// settings returns the flags as an override for the configured defaults.
func (f *settingsFlags) settings() config.Settings {
	s := f.s
	s.Techniques = nil
	for _, t := range config.Techniques {
		if *f.techniques[t] {
			s.Techniques = append(s.Techniques, t)
		}
	}
	// Unset switches leave the configured defaults alone.
	if f.cmd.Flags().Changed("plan") {
		s.Plan = config.Bool(f.plan)
	}
	if f.cmd.Flags().Changed("no-combine") {
		s.NoCombine = config.Bool(f.noCombine)
	}
	return s
}

var (
	runFlags    settingsFlags
	runWorkflow string
	runRender   bool
	runJSON     bool
	runVerbose  bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task through the pipeline",
	Example: `  herodotus run "Who was Croesus?" --use-rag --use-reasoning --cot
  herodotus run "Summarize our chat" --use-memory --memory-summary --session me
  herodotus run "Write a haiku about Marathon" --workflow 1f0c...`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task := strings.Join(args, " ")
		return withService(func(svc *app.Service) error {
			if runWorkflow != "" {
				res, err := svc.ExecuteWorkflow(cmd.Context(), runWorkflow, task)
				if err != nil {
					return err
				}
				if runJSON {
					return printJSON(cmd.OutOrStdout(), res)
				}
				if runVerbose {
					for _, step := range res.Steps {
						printSteps(cmd.ErrOrStderr(), fmt.Sprintf("workflow step %d", step.Index+1), step.Steps)
					}
				}
				return printAnswer(cmd.OutOrStdout(), res.Output, runRender)
			}

			out, err := svc.Process(cmd.Context(), task, runFlags.settings())
			if err != nil {
				return err
			}
			if runJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			if runVerbose {
				printSteps(cmd.ErrOrStderr(), "pipeline", out.Steps)
			}
			return printAnswer(cmd.OutOrStdout(), out.Output, runRender)
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runFlags.register(runCmd)
	runCmd.Flags().StringVarP(&runWorkflow, "workflow", "w", "", "run a saved workflow instead")
	runCmd.Flags().BoolVar(&runRender, "render", false, "render the answer as markdown")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full outcome as json")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "print every step to stderr")
}

func printSteps(w io.Writer, title string, steps agent.Result) {
	fmt.Fprintf(w, "== %s ==\n", title)
	for i, s := range steps {
		fmt.Fprintf(w, "[%d] %s: %s\n%s\n\n", i+1, s.Unit, s.Task, s.Output)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAnswer(w io.Writer, answer string, render bool) error {
	if render {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			if out, err := r.Render(answer); err == nil {
				_, err = io.WriteString(w, out)
				return err
			}
		}
		fmt.Fprintln(os.Stderr, "markdown rendering unavailable, printing plain text")
	}
	_, err := fmt.Fprintln(w, answer)
	return err
}
