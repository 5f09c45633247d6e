package settings

import (
	"io"

	"github.com/go-go-golems/planexec/pkg/steps/ai/settings/claude"
	"github.com/go-go-golems/planexec/pkg/steps/ai/settings/ollama"
	"github.com/go-go-golems/planexec/pkg/steps/ai/settings/openai"
	"github.com/go-go-golems/planexec/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type factoryConfigFileWrapper struct {
	Factories *StepSettings
}

// StepSettings bundles everything an engine needs to talk to its provider.
type StepSettings struct {
	API    *APISettings     `yaml:"api,omitempty"`
	Chat   *ChatSettings    `yaml:"chat,omitempty"`
	Client *ClientSettings  `yaml:"client,omitempty"`
	OpenAI *openai.Settings `yaml:"openai,omitempty"`
	Claude *claude.Settings `yaml:"claude,omitempty"`
	Ollama *ollama.Settings `yaml:"ollama,omitempty"`
}

func NewStepSettings() *StepSettings {
	return &StepSettings{
		API:    NewAPISettings(),
		Chat:   NewChatSettings(),
		Client: NewClientSettings(),
		OpenAI: openai.NewSettings(),
		Claude: claude.NewSettings(),
		Ollama: ollama.NewSettings(),
	}
}

// NewStepSettingsFromYAML decodes a document of the form
//
//	factories:
//	  chat:
//	    engine: gpt-4o-mini
func NewStepSettingsFromYAML(s io.Reader) (*StepSettings, error) {
	settings_ := factoryConfigFileWrapper{
		Factories: NewStepSettings(),
	}
	if err := yaml.NewDecoder(s).Decode(&settings_); err != nil {
		return nil, errors.Wrap(err, "could not decode step settings")
	}

	return settings_.Factories, nil
}

// ApiType returns the configured provider, erroring when none is set.
func (ss *StepSettings) ApiType() (types.ApiType, error) {
	if ss.Chat == nil || ss.Chat.ApiType == nil {
		return "", errors.New("no api type specified")
	}
	return *ss.Chat.ApiType, nil
}

// Model returns the configured model name, erroring when none is set.
func (ss *StepSettings) Model() (string, error) {
	if ss.Chat == nil || ss.Chat.Engine == nil || *ss.Chat.Engine == "" {
		return "", errors.New("no chat engine specified")
	}
	return *ss.Chat.Engine, nil
}

// GetMetadata summarises the settings for logs and events. Secrets are left out.
func (ss *StepSettings) GetMetadata() map[string]interface{} {
	metadata := make(map[string]interface{})

	if ss.Chat != nil {
		if ss.Chat.Engine != nil {
			metadata["ai-engine"] = *ss.Chat.Engine
		}
		if ss.Chat.ApiType != nil {
			metadata["ai-api-type"] = string(*ss.Chat.ApiType)
		}
		if ss.Chat.MaxResponseTokens != nil {
			metadata["ai-max-response-tokens"] = *ss.Chat.MaxResponseTokens
		}
		if ss.Chat.TopP != nil && *ss.Chat.TopP != 1 {
			metadata["ai-top-p"] = *ss.Chat.TopP
		}
		if ss.Chat.Temperature != nil {
			metadata["ai-temperature"] = *ss.Chat.Temperature
		}
		if len(ss.Chat.Stop) > 0 {
			metadata["ai-stop"] = ss.Chat.Stop
		}
	}

	if ss.Client != nil {
		if ss.Client.Timeout != nil {
			metadata["timeout"] = ss.Client.Timeout.String()
		}
		if ss.Client.Organization != nil && *ss.Client.Organization != "" {
			metadata["organization"] = *ss.Client.Organization
		}
	}

	if ss.Chat != nil && ss.Chat.ApiType != nil && ss.API != nil {
		metadata["base-url"] = ss.API.BaseURL(*ss.Chat.ApiType)
	}

	return metadata
}

func (ss *StepSettings) Clone() *StepSettings {
	return &StepSettings{
		API:    ss.API.Clone(),
		Chat:   ss.Chat.Clone(),
		Client: ss.Client.Clone(),
		OpenAI: ss.OpenAI.Clone(),
		Claude: ss.Claude.Clone(),
		Ollama: ss.Ollama.Clone(),
	}
}
