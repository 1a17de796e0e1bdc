package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellTool runs commands with bash inside Dir.
type ShellTool struct {
	Dir     string
	Timeout time.Duration
}

func NewShellTool(dir string) *ShellTool {
	return &ShellTool{Dir: dir, Timeout: 2 * time.Minute}
}

func (s *ShellTool) Name() string {
	return "shell"
}

func (s *ShellTool) Description() string {
	return "Execute a shell command in the workspace and return its combined output. Destructive commands are blocked by policy."
}

func (s *ShellTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (s *ShellTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Command string `json:"command"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Command) == "" {
		return "", fmt.Errorf("empty command")
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", args.Command)
	cmd.Dir = s.Dir
	output, err := cmd.CombinedOutput()

	result := strings.TrimSpace(string(output))
	if result == "" {
		result = "(no output)"
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("command timed out: %w", ctx.Err())
	}
	// Non-zero exits are reported as output.
	if err != nil {
		return truncate(fmt.Sprintf("Command failed with error: %v\nOutput: %s", err, result)), nil
	}
	return truncate(result), nil
}
