package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/huandu/go-clone"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
)

// ToolCall is a request by the reasoning engine to invoke a named tool.
type ToolCall struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Arguments map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// ArgumentsJSON returns the arguments as a JSON object, "{}" when empty.
func (c ToolCall) ArgumentsJSON() (json.RawMessage, error) {
	if len(c.Arguments) == 0 {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(c.Arguments)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Message is one entry of the conversation history.
//
// Assistant messages may carry ToolCalls. Tool messages carry the ToolCallID
// of the request they answer, the name of the tool and whether the tool failed.
type Message struct {
	Role       Role       `json:"role" yaml:"role"`
	Content    string     `json:"content" yaml:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
	IsError    bool       `json:"is_error,omitempty" yaml:"is_error,omitempty"`
}

func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func NewAssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

func NewToolMessage(callID, toolName, text string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		Content:    text,
		ToolCallID: callID,
		ToolName:   toolName,
		IsError:    isError,
	}
}

func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// IsPlainUser reports whether m is a user turn that is not part of a tool exchange.
func (m Message) IsPlainUser() bool {
	return m.Role == RoleUser && m.ToolCallID == "" && len(m.ToolCalls) == 0
}

// Clone deep-copies tool calls and their argument maps.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			out.ToolCalls[i] = c
			if c.Arguments != nil {
				out.ToolCalls[i].Arguments = cloneArgs(c.Arguments)
			}
		}
	}
	return out
}

func cloneArgs(in map[string]any) map[string]any {
	return clone.Clone(in).(map[string]any)
}

func (m Message) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]", m.Role)
	if m.ToolCallID != "" {
		fmt.Fprintf(&sb, "(%s)", m.ToolCallID)
	}
	if m.Content != "" {
		sb.WriteString(": ")
		sb.WriteString(strings.TrimRight(m.Content, "\n"))
	}
	for _, c := range m.ToolCalls {
		fmt.Fprintf(&sb, " -> %s#%s", c.Name, c.ID)
	}
	return sb.String()
}

// Conversation is an ordered list of messages.
type Conversation []Message

func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	for i, m := range c {
		out[i] = m.Clone()
	}
	return out
}
