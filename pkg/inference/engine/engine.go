package engine

import (
	"context"
	"encoding/json"

	"github.com/go-go-golems/planexec/pkg/conversation"
)

// Engine is the reasoning engine a plan-then-execute run talks to. Engines
// handle provider-specific logic for services like OpenAI, Claude or Ollama.
type Engine interface {
	// RunInference sends the conversation and returns the assistant message the
	// provider produced. The returned message either carries text, tool call
	// requests, or both. The input conversation is not modified.
	RunInference(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error)

	// RunStructured sends a single instruction and returns the raw JSON document
	// the provider produced under the given structured output configuration.
	RunStructured(ctx context.Context, instruction string, cfg StructuredOutputConfig) (json.RawMessage, error)
}

// ToolBinder is implemented by engines that can be told which tools they may
// request. BindTools returns a new engine; the receiver is left untouched so a
// single configured engine can be shared across concurrent runs.
type ToolBinder interface {
	BindTools(tools []ToolSpec) (Engine, error)
}

// BindTools binds tools when eng supports it. ok is false when the engine
// cannot request tools at all.
func BindTools(eng Engine, tools []ToolSpec) (bound Engine, ok bool, err error) {
	b, ok := eng.(ToolBinder)
	if !ok {
		return eng, false, nil
	}
	if len(tools) == 0 {
		return eng, true, nil
	}
	bound, err = b.BindTools(tools)
	if err != nil {
		return nil, true, err
	}
	return bound, true, nil
}
