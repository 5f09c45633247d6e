package types

import (
	"strings"

	"github.com/pkg/errors"
)

type ApiType string

const (
	ApiTypeOpenAI ApiType = "openai"
	ApiTypeClaude ApiType = "claude"
	ApiTypeOllama ApiType = "ollama"
)

// ParseApiType accepts the provider names used in configuration files.
// "anthropic" is an alias for claude.
func ParseApiType(s string) (ApiType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ApiTypeOpenAI, nil
	case "claude", "anthropic":
		return ApiTypeClaude, nil
	case "ollama":
		return ApiTypeOllama, nil
	default:
		return "", errors.Errorf("unknown api type %q", s)
	}
}
