package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig                 `json:"app" yaml:"app"`
	Gateways   map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Providers  map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Memory     MemoryConfig              `json:"memory" yaml:"memory"`
	Server     ServerConfig              `json:"server" yaml:"server"`
	Logging    LoggingConfig             `json:"logging" yaml:"logging"`
	Governance GovernanceConfig          `json:"governance" yaml:"governance"`
	Defaults   Settings                  `json:"defaults" yaml:"defaults"`
}

type AppConfig struct {
	Name      string `json:"name" yaml:"name"`
	Workspace string `json:"workspace" yaml:"workspace"`
	Prompts   string `json:"prompts" yaml:"prompts"`
	Workflows string `json:"workflows" yaml:"workflows"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey         string `json:"api_key" yaml:"api_key"`
	Model          string `json:"model" yaml:"model"`
	EmbeddingModel string `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty"`
	BaseURL        string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	OrgID          string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
	Timeout        string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries     *int   `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	Enabled        bool   `json:"enabled" yaml:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // console or json
	LLMLog string `json:"llm_log" yaml:"llm_log"`
}

type GovernanceConfig struct {
	DeniedTools    []string `json:"denied_tools" yaml:"denied_tools"`
	DeniedPatterns []string `json:"denied_patterns" yaml:"denied_patterns"`
	// ToolPatterns maps a tool name to argument patterns denied for that tool only.
	ToolPatterns map[string][]string `json:"tool_patterns,omitempty" yaml:"tool_patterns,omitempty"`
}

// Default returns a config usable without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a JSON or YAML config file, chosen by extension.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "herodotus"
	}
	if c.App.Workspace == "" {
		c.App.Workspace = "./workspace"
	}
	if c.App.Prompts == "" {
		c.App.Prompts = "./prompts"
	}
	if c.App.Workflows == "" {
		c.App.Workflows = "./workflows.json"
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "sqlite"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "./herodotus.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:5000"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.LLMLog == "" {
		c.Logging.LLMLog = filepath.Join("logs", "llm.jsonl")
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	if len(c.Providers) == 0 {
		// No file config: fall back to the OpenAI environment variables.
		c.Providers["openai"] = ProviderConfig{Model: DefaultModel, Enabled: true}
	}
	for name, p := range c.Providers {
		c.Providers[name] = p.withEnv(name)
	}
	c.Defaults = DefaultSettings().Merge(c.Defaults)
}

func (p ProviderConfig) withEnv(name string) ProviderConfig {
	switch name {
	case "gemini":
		if p.APIKey == "" {
			p.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	default:
		if p.APIKey == "" {
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if p.BaseURL == "" {
			p.BaseURL = os.Getenv("OPENAI_API_BASE")
		}
		if p.OrgID == "" {
			p.OrgID = os.Getenv("OPENAI_ORG_ID")
		}
	}
	return p
}

// GetDefaultProvider returns the first enabled provider by name.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// Provider resolves the provider a Settings block asks for, applying the
// per-request overrides (api key, base url, org, model).
func (c *Config) Provider(s Settings) (string, ProviderConfig, error) {
	name, p := s.Provider, ProviderConfig{}
	if name == "" {
		name, p = c.GetDefaultProvider()
	} else {
		var ok bool
		p, ok = c.Providers[name]
		if !ok {
			p = ProviderConfig{Enabled: true}.withEnv(name)
		}
	}
	if name == "" {
		return "", ProviderConfig{}, fmt.Errorf("%w: no enabled provider found in config", ErrInvalidSettings)
	}
	if s.APIKey != "" {
		p.APIKey = s.APIKey
	}
	if s.BaseURL != "" {
		p.BaseURL = s.BaseURL
	}
	if s.OrgID != "" {
		p.OrgID = s.OrgID
	}
	if s.Model != "" {
		p.Model = s.Model
	}
	if p.APIKey == "" {
		return "", ProviderConfig{}, fmt.Errorf("%w: api key is required for provider %s", ErrInvalidSettings, name)
	}
	return name, p, nil
}

// GetGatewayConfig returns the named gateway config if enabled.
func (c *Config) GetGatewayConfig(name string) (GatewayConfig, bool) {
	gw, ok := c.Gateways[name]
	if ok && gw.Enabled && gw.Token != "" {
		return gw, true
	}
	return GatewayConfig{}, false
}
