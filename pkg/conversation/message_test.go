package conversation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessage_IsPlainUser(t *testing.T) {
	require.True(t, NewUserMessage("hi").IsPlainUser())
	require.False(t, NewAssistantMessage("hi").IsPlainUser())
	require.False(t, NewToolMessage("call-1", "search", "r", false).IsPlainUser())
}

func TestMessage_CloneCopiesArguments(t *testing.T) {
	m := NewAssistantMessage("", ToolCall{ID: "1", Name: "search", Arguments: map[string]any{"query": "X"}})
	c := m.Clone()
	c.ToolCalls[0].Arguments["query"] = "Y"
	require.Equal(t, "X", m.ToolCalls[0].Arguments["query"])
}

func TestMessage_ClonePreservesArgumentTypes(t *testing.T) {
	big := int64(1<<53 + 1)
	m := NewAssistantMessage("", ToolCall{ID: "1", Name: "calc", Arguments: map[string]any{
		"n":      42,
		"big":    big,
		"nested": map[string]any{"items": []any{1, "a"}},
	}})
	c := m.Clone()

	args := c.ToolCalls[0].Arguments
	require.Equal(t, 42, args["n"])
	require.Equal(t, big, args["big"])

	nested := args["nested"].(map[string]any)
	nested["items"].([]any)[0] = 2
	require.Equal(t, 1, m.ToolCalls[0].Arguments["nested"].(map[string]any)["items"].([]any)[0])
}

func TestToolCall_ArgumentsJSON(t *testing.T) {
	b, err := ToolCall{Name: "noop"}.ArgumentsJSON()
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(b))

	b, err = ToolCall{Name: "search", Arguments: map[string]any{"query": "X"}}.ArgumentsJSON()
	require.NoError(t, err)
	require.JSONEq(t, `{"query":"X"}`, string(b))
}

func TestConversation_Last(t *testing.T) {
	_, ok := Conversation{}.Last()
	require.False(t, ok)

	m, ok := Conversation{NewUserMessage("a"), NewAssistantMessage("b")}.Last()
	require.True(t, ok)
	require.Equal(t, RoleAssistant, m.Role)
}

func TestMessage_String(t *testing.T) {
	m := NewAssistantMessage("", ToolCall{ID: "c1", Name: "search"})
	require.Equal(t, "[assistant] -> search#c1", m.String())
}
