package planexec

import "time"

// LoopConfig bounds a run.
type LoopConfig struct {
	// MaxIterations caps the number of dispatches of one run.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations" mapstructure:"max_iterations"`
	// Timeout is the wall-clock deadline of one run. Zero disables it.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// SystemPrompt, when set, is sent ahead of every dispatch.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt" mapstructure:"system_prompt"`
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations: 10,
		Timeout:       5 * time.Minute,
	}
}

func (c LoopConfig) WithMaxIterations(n int) LoopConfig {
	c.MaxIterations = n
	return c
}

func (c LoopConfig) WithTimeout(d time.Duration) LoopConfig {
	c.Timeout = d
	return c
}

func (c LoopConfig) WithSystemPrompt(p string) LoopConfig {
	c.SystemPrompt = p
	return c
}
