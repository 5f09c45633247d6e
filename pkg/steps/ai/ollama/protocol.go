package ollama

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/google/uuid"
	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
)

// The local runner has no native tool calling. When tools are bound the
// model is asked to answer with a JSON envelope that either requests tools
// or carries the final answer.
type toolEnvelope struct {
	ToolCalls []envelopeCall `json:"tool_calls,omitempty"`
	Answer    string         `json:"answer,omitempty"`
}

type envelopeCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func toolInstructions(specs []engine.ToolSpec) (string, error) {
	var sb strings.Builder
	sb.WriteString("You can call the following tools:\n")
	for _, spec := range specs {
		params, err := spec.ParametersMap()
		if err != nil {
			return "", errors.Wrapf(err, "could not convert parameters of tool %s", spec.Name)
		}
		b, err := json.Marshal(params)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "- %s: %s\n  parameters: %s\n", spec.Name, spec.Description, b)
	}
	sb.WriteString("\nAlways reply with a single JSON object. To call tools reply with ")
	sb.WriteString(`{"tool_calls": [{"name": "<tool>", "arguments": {...}}]}`)
	sb.WriteString(". To answer the user reply with ")
	sb.WriteString(`{"answer": "<text>"}`)
	sb.WriteString(".")
	return sb.String(), nil
}

func structuredInstructions(cfg engine.StructuredOutputConfig) (string, error) {
	b, err := json.Marshal(cfg.Schema)
	if err != nil {
		return "", errors.Wrap(err, "marshal structured output schema")
	}
	return fmt.Sprintf("Reply with a single JSON object named %s that validates against this JSON schema:\n%s", cfg.Name, b), nil
}

func messagesToOllama(messages conversation.Conversation) ([]api.Message, error) {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case conversation.RoleSystem, conversation.RoleUser:
			out = append(out, api.Message{Role: string(m.Role), Content: m.Content})
		case conversation.RoleAssistant:
			content := m.Content
			if m.HasToolCalls() {
				env := toolEnvelope{}
				for _, c := range m.ToolCalls {
					env.ToolCalls = append(env.ToolCalls, envelopeCall{Name: c.Name, Arguments: c.Arguments})
				}
				b, err := json.Marshal(env)
				if err != nil {
					return nil, err
				}
				content = string(b)
			}
			out = append(out, api.Message{Role: "assistant", Content: content})
		case conversation.RoleTool:
			status := "returned"
			if m.IsError {
				status = "failed with"
			}
			out = append(out, api.Message{
				Role:    "user",
				Content: fmt.Sprintf("Tool %s (call %s) %s:\n%s", m.ToolName, m.ToolCallID, status, m.Content),
			})
		default:
			return nil, errors.Errorf("unsupported role %q", m.Role)
		}
	}
	return out, nil
}

// parseEnvelope reads a model reply produced under tool instructions. Replies
// that are not an envelope are returned as plain text.
func parseEnvelope(content string) *conversation.Message {
	trimmed := strings.TrimSpace(content)
	var env toolEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		msg := conversation.NewAssistantMessage(content)
		return &msg
	}
	msg := conversation.NewAssistantMessage(env.Answer)
	for _, c := range env.ToolCalls {
		if c.Name == "" {
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, conversation.ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      c.Name,
			Arguments: c.Arguments,
		})
	}
	if msg.Content == "" && len(msg.ToolCalls) == 0 {
		msg.Content = content
	}
	return &msg
}
