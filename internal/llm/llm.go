// Package llm adapts hosted text-generation APIs to the single call shape the
// agents need: a system prompt, a user prompt and sampling parameters in,
// one string out.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rahul/herodotus/pkg/config"
	"github.com/tmc/langchaingo/embeddings"
)

// Completer is the text-generation collaborator.
type Completer interface {
	Complete(ctx context.Context, system, user string, cfg CompletionConfig) (string, error)
}

// CompletionConfig carries per-call sampling parameters. Zero values are left
// to the provider's defaults.
type CompletionConfig struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	TopK             int
	PresencePenalty  float64
	FrequencyPenalty float64
}

// FromSettings extracts the sampling parameters of a settings block.
func FromSettings(s config.Settings) CompletionConfig {
	return CompletionConfig{
		Model:            s.Model,
		Temperature:      s.Temperature,
		MaxTokens:        s.MaxTokens,
		TopP:             s.TopP,
		TopK:             s.TopK,
		PresencePenalty:  s.PresencePenalty,
		FrequencyPenalty: s.FrequencyPenalty,
	}
}

// ErrEmptyResponse is returned when the provider answers without any choice.
var ErrEmptyResponse = errors.New("llm: empty response")

// defaultRetries applies when a provider leaves max_retries unset.
const defaultRetries = 2

// New builds a completer for the named provider. Every completer is wrapped
// with bounded retries; the agents themselves never retry.
func New(name string, p config.ProviderConfig) (Completer, error) {
	var (
		c   Completer
		err error
	)
	switch name {
	case "openai", "openrouter", "compatible":
		c, err = NewOpenAI(p)
	case "gemini":
		c, err = NewGemini(context.Background(), p)
	default:
		return nil, fmt.Errorf("provider %s not supported", name)
	}
	if err != nil {
		return nil, err
	}

	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout for provider %s: %w", name, err)
		}
		c = WithTimeout(c, d)
	}
	retries := defaultRetries
	if p.MaxRetries != nil {
		retries = *p.MaxRetries
	}
	return WithRetry(c, retries+1, 500*time.Millisecond), nil
}

// NewEmbedder builds the embedder used by the vector store for the named provider.
func NewEmbedder(name string, p config.ProviderConfig) (embeddings.Embedder, error) {
	switch name {
	case "openai", "openrouter", "compatible":
		return NewOpenAIEmbedder(p)
	case "gemini":
		return NewGeminiEmbedder(context.Background(), p)
	default:
		return nil, fmt.Errorf("provider %s has no embedding support", name)
	}
}
