package factory

import (
	"strings"

	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/go-go-golems/planexec/pkg/steps/ai/claude"
	"github.com/go-go-golems/planexec/pkg/steps/ai/ollama"
	"github.com/go-go-golems/planexec/pkg/steps/ai/openai"
	"github.com/go-go-golems/planexec/pkg/steps/ai/settings"
	"github.com/go-go-golems/planexec/pkg/steps/ai/types"
	"github.com/pkg/errors"
)

// EngineFactory creates reasoning engines from provider settings so callers
// do not need to know the concrete implementations.
type EngineFactory interface {
	// CreateEngine picks the provider from settings.Chat.ApiType.
	CreateEngine(settings *settings.StepSettings) (engine.Engine, error)
	SupportedProviders() []string
	DefaultProvider() string
}

// StandardEngineFactory supports openai, claude (alias anthropic) and ollama,
// falling back to openai when no api type is set.
type StandardEngineFactory struct{}

func NewStandardEngineFactory() *StandardEngineFactory {
	return &StandardEngineFactory{}
}

func (f *StandardEngineFactory) CreateEngine(s *settings.StepSettings) (engine.Engine, error) {
	if s == nil {
		return nil, errors.New("settings cannot be nil")
	}

	provider := f.DefaultProvider()
	if s.Chat != nil && s.Chat.ApiType != nil {
		provider = strings.ToLower(string(*s.Chat.ApiType))
	}
	apiType, err := types.ParseApiType(provider)
	if err != nil {
		supported := strings.Join(f.SupportedProviders(), ", ")
		return nil, errors.Errorf("unsupported provider %s. Supported providers: %s", provider, supported)
	}

	if err := f.validateSettings(s, apiType); err != nil {
		return nil, errors.Wrapf(err, "invalid settings for provider %s", provider)
	}

	switch apiType {
	case types.ApiTypeOpenAI:
		return openai.NewEngine(s)
	case types.ApiTypeClaude:
		return claude.NewEngine(s)
	case types.ApiTypeOllama:
		return ollama.NewEngine(s)
	default:
		return nil, errors.Errorf("provider %s is not implemented", provider)
	}
}

func (f *StandardEngineFactory) SupportedProviders() []string {
	return []string{
		string(types.ApiTypeOpenAI),
		string(types.ApiTypeClaude),
		"anthropic",
		string(types.ApiTypeOllama),
	}
}

func (f *StandardEngineFactory) DefaultProvider() string {
	return string(types.ApiTypeOpenAI)
}

func (f *StandardEngineFactory) validateSettings(s *settings.StepSettings, apiType types.ApiType) error {
	if s.Chat == nil {
		return errors.New("chat settings cannot be nil")
	}
	if _, err := s.Model(); err != nil {
		return err
	}
	if apiType == types.ApiTypeOllama {
		return nil
	}
	if s.API == nil {
		return errors.New("API settings cannot be nil")
	}
	if _, err := s.API.APIKey(apiType); err != nil {
		return err
	}
	return nil
}
