package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rahul/herodotus/internal/llm"
)

// Combiner merges the outputs of several steps into one answer.
type Combiner interface {
	Combine(ctx context.Context, results []string) (string, error)
}

const combinerPrompt = `You merge several processing results into one coherent answer.

- Remove duplicated information.
- Keep every distinct piece of information.
- Keep a logical order.
- Write fluent, natural prose.`

// LLMCombiner merges results with one model call. Zero and one results are
// handled without calling the model.
type LLMCombiner struct {
	Completer llm.Completer
	Config    llm.CompletionConfig
	Prompt    string
}

func (c *LLMCombiner) Combine(ctx context.Context, results []string) (string, error) {
	switch len(results) {
	case 0:
		return "", nil
	case 1:
		return results[0], nil
	}

	payload, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", NewUnitError("combiner", KindExternalFailure, "encode results", err)
	}
	system := c.Prompt
	if system == "" {
		system = combinerPrompt
	}

	out, err := c.Completer.Complete(ctx, system, "Merge the following results:\n\n"+string(payload), c.Config)
	if err != nil {
		return "", NewUnitError("combiner", "", "", err)
	}
	return out, nil
}

// ConcatCombiner joins results with blank lines.
type ConcatCombiner struct{}

func (ConcatCombiner) Combine(_ context.Context, results []string) (string, error) {
	return strings.Join(results, "\n\n"), nil
}
