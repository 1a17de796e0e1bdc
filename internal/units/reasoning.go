package units

import (
	"context"
	"strings"

	"github.com/rahul/herodotus/pkg/config"
)

const reasoningRole = `You are a reasoning assistant. Analyse the problem and answer it using the following techniques:`

var techniqueInstructions = map[string]string{
	"zero_shot":        "Zero-shot: reason directly from the question without examples.",
	"few_shot":         "Few-shot: recall a few similar solved examples and reason by analogy.",
	"one_shot":         "One-shot: recall one similar solved example and reason by analogy.",
	"cot":              "Chain of thought: show your reasoning step by step.",
	"least_to_most":    "Least-to-most: split the problem into sub-problems and solve them from the simplest up.",
	"self_consistency": "Self-consistency: work through three independent reasoning paths and keep the most consistent conclusion.",
	"react":            "ReAct: alternate Thought, Action and Observation until you reach a conclusion.",
	"reflection":       "Reflection: draft an answer, critique its assumptions, then give the improved answer.",
	"tot":              "Tree of thoughts: explore up to three branches, up to three levels deep, evaluate each and pick the best path.",
}

// Reasoning answers with the selected prompting techniques.
type Reasoning struct {
	caller
	Techniques []string
}

func NewReasoning(d Deps, techniques []string) *Reasoning {
	return &Reasoning{caller: newCaller(NameReasoning, reasoningRole, d), Techniques: techniques}
}

// SystemPrompt lists the selected techniques in canonical order. With none
// selected it falls back to chain of thought.
func (r *Reasoning) SystemPrompt() string {
	selected := make(map[string]bool, len(r.Techniques))
	for _, t := range r.Techniques {
		selected[t] = true
	}

	var b strings.Builder
	b.WriteString(r.role)
	n := 0
	for _, t := range config.Techniques {
		if selected[t] {
			b.WriteString("\n- " + techniqueInstructions[t])
			n++
		}
	}
	if n == 0 {
		b.WriteString("\n- " + techniqueInstructions["cot"])
	}
	return b.String()
}

func (r *Reasoning) Process(ctx context.Context, task, context string) (string, error) {
	return r.complete(ctx, r.SystemPrompt(), withContext("Task: "+task, task, context))
}
