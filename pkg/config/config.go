// Package config decodes the planexec configuration from viper and turns it
// into the settings of the engine, the tools and the loop.
package config

import (
	"os"
	"time"

	"github.com/go-go-golems/planexec/pkg/inference/planexec"
	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/go-go-golems/planexec/pkg/prompts"
	"github.com/go-go-golems/planexec/pkg/steps/ai/settings"
	"github.com/go-go-golems/planexec/pkg/steps/ai/types"
	"github.com/go-go-golems/planexec/pkg/tools/mcptools"
	"github.com/go-go-golems/planexec/pkg/tools/search"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type AIConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Temperature *float64      `mapstructure:"temperature" yaml:"temperature,omitempty"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type SearchConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Provider   string `mapstructure:"provider" yaml:"provider"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	MaxResults int    `mapstructure:"max_results" yaml:"max_results"`
}

type PromptsConfig struct {
	System    string `mapstructure:"system" yaml:"system,omitempty"`
	Planner   string `mapstructure:"planner" yaml:"planner,omitempty"`
	PlanAck   string `mapstructure:"plan_ack" yaml:"plan_ack,omitempty"`
	Directive string `mapstructure:"directive" yaml:"directive,omitempty"`
}

type MCPConfig struct {
	Servers []mcptools.ServerConfig `mapstructure:"servers" yaml:"servers,omitempty"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

type Config struct {
	AI      AIConfig            `mapstructure:"ai" yaml:"ai"`
	Loop    planexec.LoopConfig `mapstructure:"loop" yaml:"loop"`
	Tools   tools.ToolConfig    `mapstructure:"tools" yaml:"tools"`
	Todo    bool                `mapstructure:"todo_tools" yaml:"todo_tools"`
	Search  SearchConfig        `mapstructure:"search" yaml:"search"`
	Prompts PromptsConfig       `mapstructure:"prompts" yaml:"prompts,omitempty"`
	MCP     MCPConfig           `mapstructure:"mcp" yaml:"mcp,omitempty"`
	Server  ServerConfig        `mapstructure:"server" yaml:"server"`
}

// SetDefaults registers every key so that environment variables can
// override them through AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	loop := planexec.DefaultLoopConfig()
	toolCfg := tools.DefaultToolConfig()

	v.SetDefault("ai.provider", string(types.ApiTypeOpenAI))
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.max_tokens", 0)
	v.SetDefault("ai.timeout", 60*time.Second)

	v.SetDefault("loop.max_iterations", loop.MaxIterations)
	v.SetDefault("loop.timeout", loop.Timeout)
	v.SetDefault("loop.system_prompt", "")

	v.SetDefault("tools.execution_timeout", toolCfg.ExecutionTimeout)
	v.SetDefault("tools.tool_error_handling", string(toolCfg.ToolErrorHandling))
	v.SetDefault("tools.retry_config.max_retries", toolCfg.RetryConfig.MaxRetries)
	v.SetDefault("tools.retry_config.backoff_base", toolCfg.RetryConfig.BackoffBase)
	v.SetDefault("tools.retry_config.backoff_factor", toolCfg.RetryConfig.BackoffFactor)
	v.SetDefault("todo_tools", true)

	v.SetDefault("search.enabled", true)
	v.SetDefault("search.provider", search.ProviderTavily)
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", "")
	v.SetDefault("search.max_results", search.DefaultMaxResults)

	v.SetDefault("server.address", ":8080")
}

// Load decodes v, applies the well-known environment fallbacks and validates
// the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "could not decode configuration")
	}
	cfg.ApplyEnvFallbacks(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvFallbacks fills empty credentials from OPENAI_API_KEY,
// ANTHROPIC_API_KEY, TAVILY_API_KEY and OLLAMA_HOST.
func (c *Config) ApplyEnvFallbacks(lookup func(string) (string, bool)) {
	fill := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	apiType, err := types.ParseApiType(c.AI.Provider)
	if err == nil {
		switch apiType {
		case types.ApiTypeOpenAI:
			fill(&c.AI.APIKey, "OPENAI_API_KEY")
		case types.ApiTypeClaude:
			fill(&c.AI.APIKey, "ANTHROPIC_API_KEY")
		case types.ApiTypeOllama:
			fill(&c.AI.BaseURL, "OLLAMA_HOST")
		}
	}
	if c.Search.Provider == "" || c.Search.Provider == search.ProviderTavily {
		fill(&c.Search.APIKey, "TAVILY_API_KEY")
	}
}

func (c *Config) Validate() error {
	if _, err := types.ParseApiType(c.AI.Provider); err != nil {
		return err
	}
	if c.AI.Model == "" {
		return errors.New("ai.model is required")
	}
	if c.Loop.MaxIterations <= 0 {
		return errors.Errorf("loop.max_iterations must be positive, got %d", c.Loop.MaxIterations)
	}
	if _, err := tools.ParseToolErrorHandling(string(c.Tools.ToolErrorHandling)); err != nil {
		return err
	}
	if c.Search.Enabled && c.Search.MaxResults <= 0 {
		return errors.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	for i, s := range c.MCP.Servers {
		if s.Name == "" || s.Command == "" {
			return errors.Errorf("mcp server %d needs a name and a command", i)
		}
	}
	return nil
}

// StepSettings builds the engine settings of the configured provider.
func (c *Config) StepSettings() (*settings.StepSettings, error) {
	apiType, err := types.ParseApiType(c.AI.Provider)
	if err != nil {
		return nil, err
	}
	s := settings.NewStepSettings()
	model := c.AI.Model
	s.Chat.Engine = &model
	s.Chat.ApiType = &apiType
	s.Chat.Temperature = c.AI.Temperature
	if c.AI.MaxTokens > 0 {
		maxTokens := c.AI.MaxTokens
		s.Chat.MaxResponseTokens = &maxTokens
	}
	if c.AI.Timeout > 0 {
		timeout := c.AI.Timeout
		s.Client.Timeout = &timeout
	}
	if c.AI.APIKey != "" {
		s.API.SetAPIKey(apiType, c.AI.APIKey)
	}
	if c.AI.BaseURL != "" {
		s.API.SetBaseURL(apiType, c.AI.BaseURL)
	}
	return s, nil
}

// ExportOllamaHost makes a configured ollama base URL visible to the ollama
// client, which only reads OLLAMA_HOST.
func (c *Config) ExportOllamaHost() error {
	apiType, err := types.ParseApiType(c.AI.Provider)
	if err != nil || apiType != types.ApiTypeOllama || c.AI.BaseURL == "" {
		return nil
	}
	return os.Setenv("OLLAMA_HOST", c.AI.BaseURL)
}

func (c *Config) LoopConfig() planexec.LoopConfig {
	loop := c.Loop
	if c.Prompts.System != "" && loop.SystemPrompt == "" {
		loop.SystemPrompt = c.Prompts.System
	}
	return loop
}

func (c *Config) ToolConfig() tools.ToolConfig {
	return c.Tools
}

// Renderer parses the prompt templates with the configured overrides.
func (c *Config) Renderer() (*prompts.Renderer, error) {
	overrides := map[string]string{}
	if c.Prompts.Planner != "" {
		overrides[prompts.NamePlanner] = c.Prompts.Planner
	}
	if c.Prompts.PlanAck != "" {
		overrides[prompts.NamePlanAck] = c.Prompts.PlanAck
	}
	if c.Prompts.Directive != "" {
		overrides[prompts.NameDirective] = c.Prompts.Directive
	}
	return prompts.NewRenderer(overrides)
}

// SearchOptions returns nil when search is disabled.
func (c *Config) SearchOptions() *search.Options {
	if !c.Search.Enabled {
		return nil
	}
	return &search.Options{
		Provider: c.Search.Provider,
		APIKey:   c.Search.APIKey,
		BaseURL:  c.Search.BaseURL,
	}
}
