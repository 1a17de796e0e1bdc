package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{
		"providers": {"openai": {"api_key": "sk-test", "model": "gpt-4o", "enabled": true}},
		"defaults": {"temperature": 0.2, "agents": {"tool": true}, "tool": {"shell": true}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "openai", name)
	assert.Equal(t, "sk-test", p.APIKey)
	assert.Equal(t, 0.2, cfg.Defaults.Temperature)
	assert.Equal(t, 2000, cfg.Defaults.MaxTokens)
	assert.True(t, cfg.Defaults.Agents.Tool)
	assert.True(t, cfg.Defaults.Tool.Shell)
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.Addr)
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
providers:
  gemini:
    api_key: g-key
    model: gemini-2.0-flash
    enabled: true
gateways:
  telegram:
    token: abc
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "gemini", name)
	assert.Equal(t, "gemini-2.0-flash", p.Model)

	gw, ok := cfg.GetGatewayConfig("telegram")
	assert.True(t, ok)
	assert.Equal(t, "abc", gw.Token)

	_, ok = cfg.GetGatewayConfig("discord")
	assert.False(t, ok)
}

func TestProvider_RequestOverrides(t *testing.T) {
	cfg := &Config{Providers: map[string]ProviderConfig{
		"openai": {APIKey: "file-key", Model: "gpt-4o", Enabled: true},
	}}

	name, p, err := cfg.Provider(Settings{APIKey: "req-key", Model: "gpt-4o-mini", BaseURL: "http://local"})
	require.NoError(t, err)
	assert.Equal(t, "openai", name)
	assert.Equal(t, "req-key", p.APIKey)
	assert.Equal(t, "gpt-4o-mini", p.Model)
	assert.Equal(t, "http://local", p.BaseURL)
}

func TestProvider_MissingKey(t *testing.T) {
	cfg := &Config{Providers: map[string]ProviderConfig{"openai": {Enabled: true}}}
	_, _, err := cfg.Provider(Settings{})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestSettingsMerge(t *testing.T) {
	base := DefaultSettings()
	base.Agents.RAG = true

	t.Run("scalars override, agents kept when none selected", func(t *testing.T) {
		out := base.Merge(Settings{Temperature: 0.1, Model: "m"})
		assert.Equal(t, 0.1, out.Temperature)
		assert.Equal(t, "m", out.Model)
		assert.Equal(t, 2000, out.MaxTokens)
		assert.True(t, out.Agents.RAG)
		assert.True(t, out.RAG.Rerank)
	})

	t.Run("agent toggles replaced, empty component blocks keep defaults", func(t *testing.T) {
		out := base.Merge(Settings{
			Agents:     AgentToggles{Tool: true, Reasoning: true},
			Techniques: []string{"cot"},
		})
		assert.False(t, out.Agents.RAG)
		assert.True(t, out.Agents.Reasoning)
		assert.Equal(t, []string{"cot"}, out.Techniques)
		assert.Equal(t, ToolComponents{Code: true, Web: true, File: true}, out.Tool)
		assert.True(t, out.RAG.Database)
	})

	t.Run("component block set by the request replaces the default", func(t *testing.T) {
		out := base.Merge(Settings{
			Agents: AgentToggles{RAG: true},
			RAG:    RAGComponents{Database: true},
		})
		assert.Equal(t, RAGComponents{Database: true}, out.RAG)
		assert.Equal(t, MemoryComponents{Conversation: true}, out.Memory)
	})

	t.Run("plan and combine can be switched both ways", func(t *testing.T) {
		on := base
		on.Plan = Bool(true)
		on.NoCombine = Bool(true)
		assert.True(t, on.Planning())
		assert.False(t, on.Combining())

		out := on.Merge(Settings{Plan: Bool(false), NoCombine: Bool(false)})
		assert.False(t, out.Planning())
		assert.True(t, out.Combining())

		kept := on.Merge(Settings{Model: "m"})
		assert.True(t, kept.Planning())
		assert.False(t, kept.Combining())
	})
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.Techniques = []string{"astrology"}
	assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)

	s = DefaultSettings()
	s.Temperature = 3
	assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)
}
