package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/go-go-golems/planexec/pkg/prompts"
	"github.com/go-go-golems/planexec/pkg/steps/ai/types"
	"github.com/go-go-golems/planexec/pkg/tasks"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if doc != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	}
	return v
}

func noEnv(string) (string, bool) { return "", false }

func decode(t *testing.T, doc string) *Config {
	t.Helper()
	cfg := &Config{}
	require.NoError(t, newViper(t, doc).Unmarshal(cfg))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := decode(t, "")
	cfg.ApplyEnvFallbacks(noEnv)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 10, cfg.Loop.MaxIterations)
	assert.Equal(t, 5*time.Minute, cfg.Loop.Timeout)
	assert.Equal(t, tools.ToolErrorContinue, cfg.Tools.ToolErrorHandling)
	assert.Equal(t, 30*time.Second, cfg.Tools.ExecutionTimeout)
	assert.Equal(t, 3, cfg.Search.MaxResults)
	assert.True(t, cfg.Todo)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestDecodeYAML(t *testing.T) {
	cfg := decode(t, `
ai:
  provider: anthropic
  model: claude-3-5-haiku-latest
  temperature: 0.3
  max_tokens: 2048
  timeout: 30s
loop:
  max_iterations: 4
  timeout: 90s
tools:
  tool_error_handling: abort
  execution_timeout: 5s
search:
  provider: duckduckgo
  max_results: 5
mcp:
  servers:
    - name: pantry
      command: uv
      args: [run, food-mcp]
      prefix: true
prompts:
  system: You are terse.
  directive: "Do it: {{ .Request }}"
`)
	cfg.ApplyEnvFallbacks(noEnv)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "claude-3-5-haiku-latest", cfg.AI.Model)
	require.NotNil(t, cfg.AI.Temperature)
	assert.Equal(t, 0.3, *cfg.AI.Temperature)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 4, cfg.Loop.MaxIterations)
	assert.Equal(t, 90*time.Second, cfg.Loop.Timeout)
	assert.Equal(t, tools.ToolErrorAbort, cfg.Tools.ToolErrorHandling)
	require.Len(t, cfg.MCP.Servers, 1)
	assert.Equal(t, []string{"run", "food-mcp"}, cfg.MCP.Servers[0].Args)
	assert.True(t, cfg.MCP.Servers[0].Prefix)

	assert.Equal(t, "You are terse.", cfg.LoopConfig().SystemPrompt)

	r, err := cfg.Renderer()
	require.NoError(t, err)
	out, err := r.StepDirective("why", tasks.List{})
	require.NoError(t, err)
	assert.Equal(t, "Do it: why", out)
	_, err = r.PlannerInstruction("why")
	require.NoError(t, err)
}

func TestEnvFallbacks(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":    "sk-env",
		"ANTHROPIC_API_KEY": "ant-env",
		"TAVILY_API_KEY":    "tvly-env",
		"OLLAMA_HOST":       "http://gpu:11434",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := decode(t, "")
	cfg.ApplyEnvFallbacks(lookup)
	assert.Equal(t, "sk-env", cfg.AI.APIKey)
	assert.Equal(t, "tvly-env", cfg.Search.APIKey)

	cfg = decode(t, "ai:\n  provider: claude\n  api_key: explicit\n")
	cfg.ApplyEnvFallbacks(lookup)
	assert.Equal(t, "explicit", cfg.AI.APIKey)

	cfg = decode(t, "ai:\n  provider: ollama\n  model: llama3\n")
	cfg.ApplyEnvFallbacks(lookup)
	assert.Equal(t, "", cfg.AI.APIKey)
	assert.Equal(t, "http://gpu:11434", cfg.AI.BaseURL)
}

func TestEnvironmentOverridesThroughViper(t *testing.T) {
	t.Setenv("PLANEXEC_AI_MODEL", "gpt-4.1")
	v := newViper(t, "")
	v.SetEnvPrefix("planexec")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	require.NoError(t, v.Unmarshal(cfg))
	assert.Equal(t, "gpt-4.1", cfg.AI.Model)
}

func TestValidate(t *testing.T) {
	for name, doc := range map[string]string{
		"provider":   "ai:\n  provider: gemini\n",
		"iterations": "loop:\n  max_iterations: 0\n",
		"handling":   "tools:\n  tool_error_handling: explode\n",
		"mcp":        "mcp:\n  servers:\n    - name: x\n",
	} {
		cfg := decode(t, doc)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestStepSettings(t *testing.T) {
	cfg := decode(t, "ai:\n  provider: openai\n  model: gpt-4o\n  api_key: sk\n  base_url: http://proxy/v1\n  max_tokens: 100\n")
	s, err := cfg.StepSettings()
	require.NoError(t, err)

	model, err := s.Model()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
	assert.Equal(t, 100, *s.Chat.MaxResponseTokens)
	key, err := s.API.APIKey(types.ApiTypeOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "sk", key)
	assert.Equal(t, "http://proxy/v1", s.API.BaseURL(types.ApiTypeOpenAI))
	assert.Equal(t, 60*time.Second, *s.Client.Timeout)
}

func TestBuildToolbox(t *testing.T) {
	cfg := decode(t, "search:\n  provider: duckduckgo\n")
	tb, err := cfg.BuildToolbox(context.Background())
	require.NoError(t, err)
	defer func() { _ = tb.Close() }()
	assert.Equal(t, []string{"duckduckgo_search", "read_todos", "write_todos"}, tools.Names(tb.Registry))

	cfg = decode(t, "search:\n  enabled: false\ntodo_tools: false\n")
	tb, err = cfg.BuildToolbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, tb.Registry.Count())

	cfg = decode(t, "")
	cfg.ApplyEnvFallbacks(noEnv)
	_, err = cfg.BuildToolbox(context.Background())
	require.Error(t, err, "tavily without key")
}

func TestRendererRejectsUnknownOverride(t *testing.T) {
	_, err := prompts.NewRenderer(map[string]string{"nope": "x"})
	require.Error(t, err)
}
