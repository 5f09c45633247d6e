package openai

import (
	"encoding/json"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/go-go-golems/planexec/pkg/steps/ai/settings"
	"github.com/go-go-golems/planexec/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

func MakeClient(s *settings.StepSettings) (*go_openai.Client, error) {
	if s.API == nil {
		return nil, errors.New("no API settings")
	}
	apiKey, err := s.API.APIKey(types.ApiTypeOpenAI)
	if err != nil {
		return nil, err
	}
	config := go_openai.DefaultConfig(apiKey)
	config.BaseURL = s.API.BaseURL(types.ApiTypeOpenAI)
	if s.Client != nil {
		config.HTTPClient = s.Client.GetHTTPClient()
		if s.Client.Organization != nil {
			config.OrgID = *s.Client.Organization
		}
	}
	return go_openai.NewClientWithConfig(config), nil
}

func messageToOpenAIMessage(m conversation.Message) (go_openai.ChatCompletionMessage, error) {
	switch m.Role {
	case conversation.RoleSystem:
		return go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleSystem, Content: m.Content}, nil
	case conversation.RoleUser:
		return go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleUser, Content: m.Content}, nil
	case conversation.RoleAssistant:
		ret := go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleAssistant, Content: m.Content}
		for _, c := range m.ToolCalls {
			args, err := c.ArgumentsJSON()
			if err != nil {
				return ret, errors.Wrapf(err, "could not encode arguments of tool call %s", c.ID)
			}
			ret.ToolCalls = append(ret.ToolCalls, go_openai.ToolCall{
				ID:   c.ID,
				Type: go_openai.ToolTypeFunction,
				Function: go_openai.FunctionCall{
					Name:      c.Name,
					Arguments: string(args),
				},
			})
		}
		return ret, nil
	case conversation.RoleTool:
		return go_openai.ChatCompletionMessage{
			Role:       go_openai.ChatMessageRoleTool,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.ToolName,
		}, nil
	default:
		return go_openai.ChatCompletionMessage{}, errors.Errorf("unsupported role %q", m.Role)
	}
}

func messageFromOpenAIMessage(m go_openai.ChatCompletionMessage) *conversation.Message {
	ret := conversation.NewAssistantMessage(m.Content)
	for _, tc := range m.ToolCalls {
		ret.ToolCalls = append(ret.ToolCalls, conversation.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: parseArguments(tc.Function.Name, tc.Function.Arguments),
		})
	}
	return &ret
}

// parseArguments decodes the JSON argument string a model produced. Invalid
// JSON is logged and dropped so the tool can report the missing input.
func parseArguments(name, raw string) map[string]any {
	if raw == "" {
		return nil
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Warn().Err(err).Str("tool", name).Str("arguments", raw).Msg("OpenAI response: could not decode tool arguments")
		return nil
	}
	return out
}

func toolsToOpenAITools(specs []engine.ToolSpec) ([]go_openai.Tool, error) {
	ret := make([]go_openai.Tool, 0, len(specs))
	for _, spec := range specs {
		params, err := spec.ParametersMap()
		if err != nil {
			return nil, errors.Wrapf(err, "could not convert parameters of tool %s", spec.Name)
		}
		ret = append(ret, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}
	return ret, nil
}

func (e *Engine) makeCompletionRequest(messages conversation.Conversation) (*go_openai.ChatCompletionRequest, error) {
	model, err := e.settings.Model()
	if err != nil {
		return nil, err
	}

	msgs_ := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg, err := messageToOpenAIMessage(m)
		if err != nil {
			return nil, err
		}
		msgs_ = append(msgs_, msg)
	}

	req := &go_openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs_,
	}

	chat := e.settings.Chat
	if chat.MaxResponseTokens != nil {
		req.MaxTokens = *chat.MaxResponseTokens
	}
	if chat.Temperature != nil {
		req.Temperature = float32(*chat.Temperature)
	}
	if chat.TopP != nil {
		req.TopP = float32(*chat.TopP)
	}
	if len(chat.Stop) > 0 {
		req.Stop = chat.Stop
	}
	if o := e.settings.OpenAI; o != nil {
		if o.PresencePenalty != nil {
			req.PresencePenalty = float32(*o.PresencePenalty)
		}
		if o.FrequencyPenalty != nil {
			req.FrequencyPenalty = float32(*o.FrequencyPenalty)
		}
	}

	if len(e.tools) > 0 {
		req.Tools = e.tools
		req.ToolChoice = string(engine.ToolChoiceAuto)
		if o := e.settings.OpenAI; o != nil && o.ParallelToolCalls != nil {
			req.ParallelToolCalls = *o.ParallelToolCalls
		}
	}

	log.Debug().
		Str("model", model).
		Int("max_tokens", req.MaxTokens).
		Float32("temperature", req.Temperature).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Msg("Making request to openai")

	return req, nil
}
