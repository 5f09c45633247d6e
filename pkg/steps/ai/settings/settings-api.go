package settings

import (
	"github.com/go-go-golems/planexec/pkg/steps/ai/types"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

// APISettings holds credentials and endpoints keyed as "<api-type>-api-key"
// and "<api-type>-base-url".
type APISettings struct {
	APIKeys  map[string]string `yaml:"api_keys,omitempty"`
	BaseUrls map[string]string `yaml:"base_urls,omitempty"`
}

var defaultBaseUrls = map[types.ApiType]string{
	types.ApiTypeOpenAI: "https://api.openai.com/v1",
	types.ApiTypeClaude: "https://api.anthropic.com",
	types.ApiTypeOllama: "http://127.0.0.1:11434",
}

func NewAPISettings() *APISettings {
	ret := &APISettings{
		APIKeys:  map[string]string{},
		BaseUrls: map[string]string{},
	}
	for apiType, url := range defaultBaseUrls {
		ret.BaseUrls[string(apiType)+"-base-url"] = url
	}
	return ret
}

func (s *APISettings) SetAPIKey(apiType types.ApiType, key string) {
	if s.APIKeys == nil {
		s.APIKeys = map[string]string{}
	}
	s.APIKeys[string(apiType)+"-api-key"] = key
}

func (s *APISettings) SetBaseURL(apiType types.ApiType, url string) {
	if s.BaseUrls == nil {
		s.BaseUrls = map[string]string{}
	}
	s.BaseUrls[string(apiType)+"-base-url"] = url
}

func (s *APISettings) APIKey(apiType types.ApiType) (string, error) {
	key, ok := s.APIKeys[string(apiType)+"-api-key"]
	if !ok || key == "" {
		return "", errors.Errorf("no API key for %s", apiType)
	}
	return key, nil
}

// BaseURL falls back to the provider default.
func (s *APISettings) BaseURL(apiType types.ApiType) string {
	if url, ok := s.BaseUrls[string(apiType)+"-base-url"]; ok && url != "" {
		return url
	}
	return defaultBaseUrls[apiType]
}

func (s *APISettings) Clone() *APISettings {
	if s == nil {
		return nil
	}
	return clone.Clone(s).(*APISettings)
}
