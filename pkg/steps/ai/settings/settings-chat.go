package settings

import (
	"github.com/go-go-golems/planexec/pkg/steps/ai/types"
	"github.com/huandu/go-clone"
)

// ChatSettings are the provider independent knobs of a chat completion.
// Engine is the model name.
type ChatSettings struct {
	Engine            *string        `yaml:"engine,omitempty"`
	ApiType           *types.ApiType `yaml:"api_type,omitempty"`
	MaxResponseTokens *int           `yaml:"max_response_tokens,omitempty"`
	TopP              *float64       `yaml:"top_p,omitempty"`
	Temperature       *float64       `yaml:"temperature,omitempty"`
	Stop              []string       `yaml:"stop,omitempty"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Stop: []string{},
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	if s == nil {
		return nil
	}
	return clone.Clone(s).(*ChatSettings)
}
