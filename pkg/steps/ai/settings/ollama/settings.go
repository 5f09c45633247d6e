package ollama

import (
	"github.com/huandu/go-clone"
)

type Settings struct {
	NumCtx        *int     `yaml:"num-ctx,omitempty"`
	RepeatPenalty *float64 `yaml:"repeat-penalty,omitempty"`
	Seed          *int     `yaml:"seed,omitempty"`
	TopK          *int     `yaml:"top-k,omitempty"`
	TopP          *float64 `yaml:"top-p,omitempty"`
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

// Options returns the request options understood by the ollama runner.
// Unset fields are left out so the model defaults apply.
func (s *Settings) Options() map[string]interface{} {
	ret := map[string]interface{}{}
	if s == nil {
		return ret
	}
	if s.NumCtx != nil {
		ret["num_ctx"] = *s.NumCtx
	}
	if s.RepeatPenalty != nil {
		ret["repeat_penalty"] = *s.RepeatPenalty
	}
	if s.Seed != nil {
		ret["seed"] = *s.Seed
	}
	if s.TopK != nil {
		ret["top_k"] = *s.TopK
	}
	if s.TopP != nil {
		ret["top_p"] = *s.TopP
	}
	return ret
}
