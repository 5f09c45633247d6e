package claude

import (
	"encoding/json"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/go-go-golems/planexec/pkg/steps/ai/settings"
	"github.com/pkg/errors"
)

// defaultMaxTokens is used when the settings carry no token budget.
const defaultMaxTokens = 1024

func makeMessageParams(s *settings.StepSettings, messages conversation.Conversation) (anthropic.MessageNewParams, error) {
	model, err := s.Model()
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	var system []anthropic.TextBlockParam
	rest := make(conversation.Conversation, 0, len(messages))
	for _, m := range messages {
		if m.Role == conversation.RoleSystem {
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, anthropic.TextBlockParam{Text: m.Content})
			}
			continue
		}
		rest = append(rest, m)
	}

	msgs, err := toSDKMessages(rest)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := defaultMaxTokens
	if s.Chat.MaxResponseTokens != nil && *s.Chat.MaxResponseTokens > 0 {
		maxTokens = *s.Chat.MaxResponseTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		System:    system,
	}
	if s.Chat.Temperature != nil {
		params.Temperature = anthropic.Float(*s.Chat.Temperature)
	}
	if s.Chat.TopP != nil {
		params.TopP = anthropic.Float(*s.Chat.TopP)
	}
	if len(s.Chat.Stop) > 0 {
		params.StopSequences = s.Chat.Stop
	}
	if c := s.Claude; c != nil {
		if c.TopK != nil {
			params.TopK = anthropic.Int(int64(*c.TopK))
		}
		if c.UserID != nil && *c.UserID != "" {
			params.Metadata = anthropic.MetadataParam{UserID: anthropic.String(*c.UserID)}
		}
	}

	return params, nil
}

// toSDKMessages groups consecutive tool results into one user turn, which is
// how the messages API expects them.
func toSDKMessages(messages conversation.Conversation) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))

	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		switch msg.Role {
		case conversation.RoleUser:
			if msg.Content == "" {
				continue
			}
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case conversation.RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				input := call.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case conversation.RoleTool:
			blocks := []anthropic.ContentBlockParamUnion{}
			j := i
			for ; j < len(messages) && messages[j].Role == conversation.RoleTool; j++ {
				tr := messages[j]
				if strings.TrimSpace(tr.ToolCallID) == "" {
					return nil, errors.New("tool result missing tool_call_id")
				}
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
			i = j - 1
		default:
			return nil, errors.Errorf("unsupported role %q", msg.Role)
		}
	}

	return out, nil
}

func toolParam(name, description string, schema map[string]any) anthropic.ToolUnionParam {
	inputSchema := anthropic.ToolInputSchemaParam{
		Properties: schema["properties"],
	}
	if required, ok := schema["required"].([]interface{}); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				inputSchema.Required = append(inputSchema.Required, s)
			}
		}
	} else if required, ok := schema["required"].([]string); ok {
		inputSchema.Required = required
	}
	if inputSchema.Properties == nil {
		inputSchema.Properties = map[string]any{}
	}
	tp := anthropic.ToolParam{
		Name:        name,
		InputSchema: inputSchema,
	}
	if strings.TrimSpace(description) != "" {
		tp.Description = anthropic.String(description)
	}
	return anthropic.ToolUnionParam{OfTool: &tp}
}

func toSDKTools(specs []engine.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		params, err := spec.ParametersMap()
		if err != nil {
			return nil, errors.Wrapf(err, "could not convert parameters of tool %s", spec.Name)
		}
		out = append(out, toolParam(spec.Name, spec.Description, params))
	}
	return out, nil
}

// messageFromSDK concatenates text blocks and collects tool_use blocks.
func messageFromSDK(msg *anthropic.Message) (*conversation.Message, error) {
	var text strings.Builder
	ret := conversation.NewAssistantMessage("")
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return nil, errors.Wrapf(err, "could not decode input of tool_use %s", block.ID)
				}
			}
			ret.ToolCalls = append(ret.ToolCalls, conversation.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}
	ret.Content = text.String()
	return &ret, nil
}
