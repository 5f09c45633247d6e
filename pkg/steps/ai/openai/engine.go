package openai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/go-go-golems/planexec/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// Engine talks to the OpenAI chat completions API, or any server speaking
// the same protocol.
type Engine struct {
	settings *settings.StepSettings
	client   *go_openai.Client
	tools    []go_openai.Tool
}

var _ engine.Engine = (*Engine)(nil)
var _ engine.ToolBinder = (*Engine)(nil)

func NewEngine(s *settings.StepSettings) (*Engine, error) {
	if _, err := s.Model(); err != nil {
		return nil, err
	}
	client, err := MakeClient(s)
	if err != nil {
		return nil, err
	}
	return &Engine{
		settings: s.Clone(),
		client:   client,
	}, nil
}

func (e *Engine) BindTools(specs []engine.ToolSpec) (engine.Engine, error) {
	tools_, err := toolsToOpenAITools(specs)
	if err != nil {
		return nil, err
	}
	return &Engine{
		settings: e.settings,
		client:   e.client,
		tools:    tools_,
	}, nil
}

func (e *Engine) RunInference(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
	req, err := e.makeCompletionRequest(messages)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.CreateChatCompletion(ctx, *req)
	if err != nil {
		return nil, errors.Wrap(err, "openai chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	choice := resp.Choices[0]
	log.Debug().
		Str("finish_reason", string(choice.FinishReason)).
		Int("tool_calls", len(choice.Message.ToolCalls)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("OpenAI RunInference completed")

	return messageFromOpenAIMessage(choice.Message), nil
}

func (e *Engine) RunStructured(ctx context.Context, instruction string, cfg engine.StructuredOutputConfig) (json.RawMessage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	schemaBytes, err := json.Marshal(cfg.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "marshal structured output schema")
	}

	// structured calls never carry tools
	plain := &Engine{settings: e.settings, client: e.client}
	req, err := plain.makeCompletionRequest(conversation.Conversation{
		conversation.NewUserMessage(instruction),
	})
	if err != nil {
		return nil, err
	}
	req.ResponseFormat = &go_openai.ChatCompletionResponseFormat{
		Type: go_openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &go_openai.ChatCompletionResponseFormatJSONSchema{
			Name:        cfg.Name,
			Description: cfg.Description,
			Schema:      json.RawMessage(schemaBytes),
			Strict:      cfg.StrictOrDefault(),
		},
	}

	resp, err := e.client.CreateChatCompletion(ctx, *req)
	if err != nil {
		return nil, errors.Wrap(err, "openai structured completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, errors.Errorf("openai refused structured output: %s", msg.Refusal)
	}
	content := strings.TrimSpace(msg.Content)
	if !json.Valid([]byte(content)) {
		return nil, errors.Errorf("openai returned invalid JSON for %s", cfg.Name)
	}
	return json.RawMessage(content), nil
}
