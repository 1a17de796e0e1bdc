package config

import (
	"errors"
	"fmt"
	"slices"
)

const DefaultModel = "gpt-3.5-turbo"

// ErrInvalidSettings wraps every Validate failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Reasoning techniques understood by the reasoning unit, in prompt order.
var Techniques = []string{
	"zero_shot",
	"few_shot",
	"one_shot",
	"cot",
	"least_to_most",
	"self_consistency",
	"react",
	"reflection",
	"tot",
}

// Settings is the per-invocation configuration every surface (CLI, HTTP,
// gateways, MCP, workflow steps) hands to the construction path. Zero values
// mean "not set" and are filled from the configured defaults by Merge.
type Settings struct {
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	OrgID    string `json:"org_id,omitempty" yaml:"org_id,omitempty"`

	Temperature      float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens        int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TopP             float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK             int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	PresencePenalty  float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`

	Agents     AgentToggles     `json:"agents" yaml:"agents"`
	RAG        RAGComponents    `json:"rag" yaml:"rag"`
	Tool       ToolComponents   `json:"tool" yaml:"tool"`
	Memory     MemoryComponents `json:"memory" yaml:"memory"`
	Router     RouterComponents `json:"router" yaml:"router"`
	Techniques []string         `json:"reasoning_techniques,omitempty" yaml:"reasoning_techniques,omitempty"`

	// Plan and NoCombine are pointers so a request can switch off what the
	// defaults switch on.
	Plan      *bool  `json:"plan,omitempty" yaml:"plan,omitempty"`
	NoCombine *bool  `json:"no_combine,omitempty" yaml:"no_combine,omitempty"`
	Session   string `json:"session,omitempty" yaml:"session,omitempty"`
}

// Planning reports whether the model plans the steps.
func (s Settings) Planning() bool { return s.Plan != nil && *s.Plan }

// Combining reports whether step outputs are combined into one answer.
func (s Settings) Combining() bool { return s.NoCombine == nil || !*s.NoCombine }

// Bool returns a pointer to v, for the optional switches of Settings.
func Bool(v bool) *bool { return &v }

type AgentToggles struct {
	RAG       bool `json:"rag" yaml:"rag"`
	Tool      bool `json:"tool" yaml:"tool"`
	Memory    bool `json:"memory" yaml:"memory"`
	Router    bool `json:"router" yaml:"router"`
	Reasoning bool `json:"reasoning" yaml:"reasoning"`
}

// Any reports whether at least one agent is switched on.
func (a AgentToggles) Any() bool {
	return a.RAG || a.Tool || a.Memory || a.Router || a.Reasoning
}

type RAGComponents struct {
	Embedding bool `json:"embedding" yaml:"embedding"`
	Database  bool `json:"database" yaml:"database"`
	Retrieval bool `json:"retrieval" yaml:"retrieval"`
	Rerank    bool `json:"rerank" yaml:"rerank"`
}

type ToolComponents struct {
	Code  bool `json:"code" yaml:"code"`
	Shell bool `json:"shell" yaml:"shell"`
	Web   bool `json:"web" yaml:"web"`
	File  bool `json:"file" yaml:"file"`
}

type MemoryComponents struct {
	Conversation bool `json:"conversation" yaml:"conversation"`
	Summary      bool `json:"summary" yaml:"summary"`
	Vector       bool `json:"vector" yaml:"vector"`
}

type RouterComponents struct {
	Output     bool `json:"output" yaml:"output"`
	Evaluation bool `json:"evaluation" yaml:"evaluation"`
	Prompt     bool `json:"prompt" yaml:"prompt"`
}

// DefaultSettings mirrors the historical CLI defaults. Shell stays off until
// asked for.
func DefaultSettings() Settings {
	return Settings{
		Temperature: 0.7,
		MaxTokens:   2000,
		TopP:        1.0,
		RAG:         RAGComponents{Embedding: true, Database: true, Retrieval: true, Rerank: true},
		Tool:        ToolComponents{Code: true, Web: true, File: true},
		Memory:      MemoryComponents{Conversation: true},
		Session:     "default",
	}
}

// Merge layers o over s. Scalars override when set. When o switches on any
// agent, its toggles and techniques replace those of s, and each component
// block o sets replaces the matching block of s; a block o leaves empty keeps
// the configured components.
func (s Settings) Merge(o Settings) Settings {
	out := s
	setString(&out.Provider, o.Provider)
	setString(&out.Model, o.Model)
	setString(&out.APIKey, o.APIKey)
	setString(&out.BaseURL, o.BaseURL)
	setString(&out.OrgID, o.OrgID)
	setString(&out.Session, o.Session)
	if o.Temperature != 0 {
		out.Temperature = o.Temperature
	}
	if o.MaxTokens != 0 {
		out.MaxTokens = o.MaxTokens
	}
	if o.TopP != 0 {
		out.TopP = o.TopP
	}
	if o.TopK != 0 {
		out.TopK = o.TopK
	}
	if o.PresencePenalty != 0 {
		out.PresencePenalty = o.PresencePenalty
	}
	if o.FrequencyPenalty != 0 {
		out.FrequencyPenalty = o.FrequencyPenalty
	}
	if o.Agents.Any() {
		out.Agents = o.Agents
		setBlock(&out.RAG, o.RAG)
		setBlock(&out.Tool, o.Tool)
		setBlock(&out.Memory, o.Memory)
		setBlock(&out.Router, o.Router)
		out.Techniques = slices.Clone(o.Techniques)
	}
	if o.Plan != nil {
		out.Plan = Bool(*o.Plan)
	}
	if o.NoCombine != nil {
		out.NoCombine = Bool(*o.NoCombine)
	}
	return out
}

func setBlock[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks ranges and names; it does not require an API key, which is
// resolved against the provider config later.
func (s Settings) Validate() error {
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be between 0 and 2, got %v", ErrInvalidSettings, s.Temperature)
	}
	if s.TopP < 0 || s.TopP > 1 {
		return fmt.Errorf("%w: top_p must be between 0 and 1, got %v", ErrInvalidSettings, s.TopP)
	}
	if s.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must not be negative", ErrInvalidSettings)
	}
	if s.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative", ErrInvalidSettings)
	}
	for _, t := range s.Techniques {
		if !slices.Contains(Techniques, t) {
			return fmt.Errorf("%w: unknown reasoning technique %q", ErrInvalidSettings, t)
		}
	}
	return nil
}
