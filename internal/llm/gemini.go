package llm

import (
	"context"
	"fmt"

	"github.com/rahul/herodotus/pkg/config"
	"google.golang.org/genai"
)

const (
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultGeminiEmbedding = "gemini-embedding-001"
)

// Gemini completes through the Google GenAI API.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, p config.ProviderConfig) (*Gemini, error) {
	client, err := newGenAIClient(ctx, p)
	if err != nil {
		return nil, err
	}
	model := p.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func newGenAIClient(ctx context.Context, p config.ProviderConfig) (*genai.Client, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client, nil
}

func (g *Gemini) Complete(ctx context.Context, system, user string, cfg CompletionConfig) (string, error) {
	model := g.model
	if cfg.Model != "" {
		model = cfg.Model
	}

	gc := &genai.GenerateContentConfig{}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if cfg.Temperature != 0 {
		gc.Temperature = genai.Ptr(float32(cfg.Temperature))
	}
	if cfg.TopP != 0 {
		gc.TopP = genai.Ptr(float32(cfg.TopP))
	}
	if cfg.TopK != 0 {
		gc.TopK = genai.Ptr(float32(cfg.TopK))
	}
	if cfg.MaxTokens != 0 {
		gc.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	if cfg.PresencePenalty != 0 {
		gc.PresencePenalty = genai.Ptr(float32(cfg.PresencePenalty))
	}
	if cfg.FrequencyPenalty != 0 {
		gc.FrequencyPenalty = genai.Ptr(float32(cfg.FrequencyPenalty))
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(user), gc)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Text(), nil
}

// GeminiEmbedder satisfies langchaingo's embeddings.Embedder over GenAI.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(ctx context.Context, p config.ProviderConfig) (*GeminiEmbedder, error) {
	client, err := newGenAIClient(ctx, p)
	if err != nil {
		return nil, err
	}
	model := p.EmbeddingModel
	if model == "" {
		model = defaultGeminiEmbedding
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *GeminiEmbedder) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("GenAI returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vecs[i] = emb.Values
	}
	return vecs, nil
}
