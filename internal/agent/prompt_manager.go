package agent

import (
	"os"
	"path/filepath"
	"strings"
)

// PromptManager resolves role prompts. A file <dir>/<name>.md replaces the
// built-in prompt for name; a shared identity.md, when present, is prepended
// to every prompt.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// Get returns the prompt for name, or builtin when no override exists.
func (pm *PromptManager) Get(name, builtin string) string {
	if pm == nil || pm.Directory == "" {
		return builtin
	}

	prompt := builtin
	if data, err := os.ReadFile(filepath.Join(pm.Directory, name+".md")); err == nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			prompt = s
		}
	}

	if name == "identity" || prompt == "" {
		return prompt
	}
	if data, err := os.ReadFile(filepath.Join(pm.Directory, "identity.md")); err == nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			return s + "\n\n---\n\n" + prompt
		}
	}
	return prompt
}

// Planner returns the planner system prompt, or "" for the built-in one.
func (pm *PromptManager) Planner() string {
	return pm.Get("planner", "")
}

// Combiner returns the combiner system prompt, or "" for the built-in one.
func (pm *PromptManager) Combiner() string {
	return pm.Get("combiner", "")
}
