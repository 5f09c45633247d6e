package claude

import (
	"context"
	"encoding/json"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/go-go-golems/planexec/pkg/steps/ai/settings"
	"github.com/go-go-golems/planexec/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Engine talks to the Anthropic messages API. Structured output is obtained
// by forcing a single tool whose input schema is the requested document.
type Engine struct {
	settings *settings.StepSettings
	client   anthropic.Client
	tools    []anthropic.ToolUnionParam
}

var _ engine.Engine = (*Engine)(nil)
var _ engine.ToolBinder = (*Engine)(nil)

func NewEngine(s *settings.StepSettings) (*Engine, error) {
	if _, err := s.Model(); err != nil {
		return nil, err
	}
	if s.API == nil {
		return nil, errors.New("no API settings")
	}
	apiKey, err := s.API.APIKey(types.ApiTypeClaude)
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(s.API.BaseURL(types.ApiTypeClaude)),
		option.WithMaxRetries(0),
	}
	if s.Client != nil {
		opts = append(opts, option.WithHTTPClient(s.Client.GetHTTPClient()))
	}

	return &Engine{
		settings: s.Clone(),
		client:   anthropic.NewClient(opts...),
	}, nil
}

func (e *Engine) BindTools(specs []engine.ToolSpec) (engine.Engine, error) {
	tools_, err := toSDKTools(specs)
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
	params, err := makeMessageParams(e.settings, messages)
	if err != nil {
		return nil, err
	}
	if len(e.tools) > 0 {
		params.Tools = e.tools
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}

	log.Debug().
		Str("model", string(params.Model)).
		Int("messages", len(params.Messages)).
		Int("tools", len(params.Tools)).
		Msg("Claude RunInference started")

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "claude messages request failed")
	}

	log.Debug().
		Str("stop_reason", string(resp.StopReason)).
		Int64("input_tokens", resp.Usage.InputTokens).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Msg("Claude RunInference completed")

	return messageFromSDK(resp)
}

func (e *Engine) RunStructured(ctx context.Context, instruction string, cfg engine.StructuredOutputConfig) (json.RawMessage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	params, err := makeMessageParams(e.settings, conversation.Conversation{
		conversation.NewUserMessage(instruction),
	})
	if err != nil {
		return nil, err
	}
	params.Tools = []anthropic.ToolUnionParam{toolParam(cfg.Name, cfg.Description, cfg.Schema)}
	params.ToolChoice = anthropic.ToolChoiceParamOfTool(cfg.Name)

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "claude structured request failed")
	}

	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == cfg.Name {
			if !json.Valid(block.Input) {
				return nil, errors.Errorf("claude returned invalid JSON for %s", cfg.Name)
			}
			return json.RawMessage(block.Input), nil
		}
	}
	return nil, errors.Errorf("claude did not call %s", cfg.Name)
}
