package llm

import (
	"context"

	"github.com/rahul/herodotus/pkg/config"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChain completes through any langchaingo model.
type LangChain struct {
	Model    llms.Model
	// MapError turns provider errors into *llms.Error when set.
	MapError func(error) error
}

func NewLangChain(model llms.Model) *LangChain {
	return &LangChain{Model: model}
}

// NewOpenAI returns a completer for OpenAI or any OpenAI-compatible endpoint.
func NewOpenAI(p config.ProviderConfig) (*LangChain, error) {
	model, err := openai.New(openAIOptions(p)...)
	if err != nil {
		return nil, err
	}
	return &LangChain{Model: model, MapError: openai.MapError}, nil
}

// NewOpenAIEmbedder returns a langchaingo embedder over the OpenAI embeddings API.
func NewOpenAIEmbedder(p config.ProviderConfig) (embeddings.Embedder, error) {
	opts := openAIOptions(p)
	model := p.EmbeddingModel
	if model == "" {
		model = "text-embedding-ada-002"
	}
	opts = append(opts, openai.WithEmbeddingModel(model))

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(client)
}

func openAIOptions(p config.ProviderConfig) []openai.Option {
	opts := []openai.Option{
		openai.WithToken(p.APIKey),
	}
	if p.Model != "" {
		opts = append(opts, openai.WithModel(p.Model))
	}
	if p.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(p.BaseURL))
	}
	if p.OrgID != "" {
		opts = append(opts, openai.WithOrganization(p.OrgID))
	}
	return opts
}

func (l *LangChain) Complete(ctx context.Context, system, user string, cfg CompletionConfig) (string, error) {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, user))

	resp, err := l.Model.GenerateContent(ctx, messages, callOptions(cfg)...)
	if err != nil {
		if l.MapError != nil {
			return "", l.MapError(err)
		}
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

func callOptions(cfg CompletionConfig) []llms.CallOption {
	var opts []llms.CallOption
	if cfg.Model != "" {
		opts = append(opts, llms.WithModel(cfg.Model))
	}
	if cfg.Temperature != 0 {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens != 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.TopP != 0 {
		opts = append(opts, llms.WithTopP(cfg.TopP))
	}
	if cfg.TopK != 0 {
		opts = append(opts, llms.WithTopK(cfg.TopK))
	}
	if cfg.PresencePenalty != 0 {
		opts = append(opts, llms.WithPresencePenalty(cfg.PresencePenalty))
	}
	if cfg.FrequencyPenalty != 0 {
		opts = append(opts, llms.WithFrequencyPenalty(cfg.FrequencyPenalty))
	}
	return opts
}
