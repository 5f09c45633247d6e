package openai

import (
	"github.com/huandu/go-clone"
)

type Settings struct {
	PresencePenalty   *float64 `yaml:"presence_penalty,omitempty"`
	FrequencyPenalty  *float64 `yaml:"frequency_penalty,omitempty"`
	ParallelToolCalls *bool    `yaml:"parallel_tool_calls,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{}
}

func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	return clone.Clone(s).(*Settings)
}
