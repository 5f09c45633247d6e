package tools

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ToolConfig specifies how tool calls are executed.
type ToolConfig struct {
	ExecutionTimeout  time.Duration     `json:"execution_timeout" yaml:"execution_timeout" mapstructure:"execution_timeout"`
	AllowedTools      []string          `json:"allowed_tools" yaml:"allowed_tools" mapstructure:"allowed_tools"`
	ToolErrorHandling ToolErrorHandling `json:"tool_error_handling" yaml:"tool_error_handling" mapstructure:"tool_error_handling"`
	RetryConfig       RetryConfig       `json:"retry_config" yaml:"retry_config" mapstructure:"retry_config"`
}

// DefaultToolConfig returns a sensible default configuration
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		ExecutionTimeout:  30 * time.Second,
		AllowedTools:      nil, // nil means all tools are allowed
		ToolErrorHandling: ToolErrorContinue,
		RetryConfig: RetryConfig{
			MaxRetries:    2,
			BackoffBase:   time.Second,
			BackoffFactor: 2.0,
		},
	}
}

func (tc ToolConfig) WithExecutionTimeout(timeout time.Duration) ToolConfig {
	tc.ExecutionTimeout = timeout
	return tc
}

func (tc ToolConfig) WithAllowedTools(toolNames []string) ToolConfig {
	tc.AllowedTools = toolNames
	return tc
}

func (tc ToolConfig) WithToolErrorHandling(handling ToolErrorHandling) ToolConfig {
	tc.ToolErrorHandling = handling
	return tc
}

func (tc ToolConfig) WithRetryConfig(cfg RetryConfig) ToolConfig {
	tc.RetryConfig = cfg
	return tc
}

// RetryConfig defines retry behavior for tool execution
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	BackoffBase   time.Duration `json:"backoff_base" yaml:"backoff_base" mapstructure:"backoff_base"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor" mapstructure:"backoff_factor"`
}

// Backoff returns the wait before retry number attempt (zero based).
func (rc RetryConfig) Backoff(attempt int) time.Duration {
	factor := rc.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	d := float64(rc.BackoffBase)
	for i := 0; i < attempt; i++ {
		d *= factor
	}
	return time.Duration(d)
}

// ToolErrorHandling defines how to handle unknown tools and tool execution errors
type ToolErrorHandling string

const (
	ToolErrorContinue ToolErrorHandling = "continue" // Continue conversation with error message
	ToolErrorAbort    ToolErrorHandling = "abort"    // Stop the run on tool error
	ToolErrorRetry    ToolErrorHandling = "retry"    // Retry with exponential backoff, then continue
)

func ParseToolErrorHandling(s string) (ToolErrorHandling, error) {
	switch h := ToolErrorHandling(strings.ToLower(strings.TrimSpace(s))); h {
	case "":
		return ToolErrorContinue, nil
	case ToolErrorContinue, ToolErrorAbort, ToolErrorRetry:
		return h, nil
	default:
		return "", errors.Errorf("unknown tool error handling %q (expected continue, abort or retry)", s)
	}
}

// IsToolAllowed checks if a tool is allowed based on the configuration
func (tc *ToolConfig) IsToolAllowed(toolName string) bool {
	if tc.AllowedTools == nil {
		return true
	}

	for _, allowed := range tc.AllowedTools {
		if allowed == toolName {
			return true
		}
	}

	return false
}

// FilterTools returns only the tools that are allowed by this configuration
func (tc *ToolConfig) FilterTools(tools []ToolDefinition) []ToolDefinition {
	if tc.AllowedTools == nil {
		return tools
	}

	filtered := make([]ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		if tc.IsToolAllowed(tool.Name) {
			filtered = append(filtered, tool)
		}
	}

	return filtered
}
