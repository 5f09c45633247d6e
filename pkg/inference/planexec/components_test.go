package planexec

import (
	"context"
	"testing"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/inference/state"
	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/go-go-golems/planexec/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute_IsPureOverMessageStructure(t *testing.T) {
	a := conversation.NewAssistantMessage("", conversation.ToolCall{ID: "1", Name: "search", Arguments: map[string]any{"query": "X"}})
	b := conversation.NewAssistantMessage("", conversation.ToolCall{ID: "1", Name: "search", Arguments: map[string]any{"query": "X"}})
	nextA, ansA := Route(&a)
	nextB, ansB := Route(&b)
	assert.Equal(t, nextA, nextB)
	assert.Equal(t, ansA, ansB)
	assert.Equal(t, PhaseExecuting, nextA)

	final := conversation.NewAssistantMessage("4")
	next, ans := Route(&final)
	assert.Equal(t, PhaseTerminated, next)
	assert.Equal(t, "4", ans)

	next, ans = Route(nil)
	assert.Equal(t, PhaseTerminated, next)
	assert.Empty(t, ans)
}

func TestBuildContext(t *testing.T) {
	t.Run("plain user with tasks is folded into one message", func(t *testing.T) {
		s := state.New("q")
		list := tasks.NewList(tasks.NewStep("one"), tasks.Step{Content: "two", Status: tasks.StatusInProgress})
		state.Reduce(s, state.Update{TaskList: &list, Trace: []conversation.Message{
			conversation.NewAssistantMessage("generated plan: ..."),
			conversation.NewUserMessage("work through it"),
		}})
		out := BuildContext(s)
		require.Len(t, out, 1)
		assert.Equal(t, "work through it\n- one [pending]\n- two [in_progress]", out[0].Content)
	})

	t.Run("plain user without tasks passes through", func(t *testing.T) {
		s := state.New("q")
		state.Reduce(s, state.Update{Trace: []conversation.Message{conversation.NewUserMessage("q")}})
		assert.Equal(t, s.Trace, BuildContext(s))
	})

	t.Run("after a tool exchange the trace is unchanged", func(t *testing.T) {
		s := state.New("q")
		list := tasks.NewList(tasks.NewStep("one"))
		state.Reduce(s, state.Update{TaskList: &list, Trace: []conversation.Message{
			conversation.NewUserMessage("q"),
			conversation.NewAssistantMessage("", conversation.ToolCall{ID: "c1", Name: "search"}),
			conversation.NewToolMessage("c1", "search", "result", false),
		}})
		out := BuildContext(s)
		assert.Equal(t, s.Trace, out)
		out[0].Content = "mutated"
		assert.Equal(t, "q", s.Trace[0].Content)
	})

	t.Run("empty trace falls back to messages", func(t *testing.T) {
		s := state.New("q")
		assert.Equal(t, s.Messages, BuildContext(s))
		assert.Nil(t, BuildContext(nil))
	})
}

func TestExecutor_PreservesCallOrder(t *testing.T) {
	reg := registry(t, searchTool(t, tools.SearchResult{Title: "t"}), readTodosTool(t))
	s := state.New("q")
	state.Reduce(s, state.Update{Messages: []conversation.Message{conversation.NewAssistantMessage("",
		conversation.ToolCall{ID: "a", Name: "search", Arguments: map[string]any{"query": "1"}},
		conversation.ToolCall{ID: "b", Name: "read_todos"},
	)}})

	exec := NewExecutor(tools.NewBaseToolExecutor(tools.DefaultToolConfig()), reg, "")
	upd, err := exec.Execute(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, upd.Messages, 2)
	assert.Equal(t, "a", upd.Messages[0].ToolCallID)
	assert.Equal(t, "search", upd.Messages[0].ToolName)
	assert.Equal(t, "b", upd.Messages[1].ToolCallID)
	assert.Equal(t, upd.Messages, upd.Trace)
}

func TestExecutor_ReplacesTaskListWholesale(t *testing.T) {
	s := state.New("q")
	five := tasks.NewList(
		tasks.NewStep("1"), tasks.NewStep("2"), tasks.NewStep("3"), tasks.NewStep("4"), tasks.NewStep("5"),
	)
	state.Reduce(s, state.Update{TaskList: &five, Messages: []conversation.Message{conversation.NewAssistantMessage("",
		conversation.ToolCall{ID: "w", Name: "write_todos", Arguments: map[string]any{
			"todo": []any{
				map[string]any{"step": "x", "status": "pending"},
				map[string]any{"step": "y", "status": "done"},
			},
		}},
	)}})

	exec := NewExecutor(tools.NewBaseToolExecutor(tools.DefaultToolConfig()), registry(t, writeTodosTool(t)), tools.ToolErrorContinue)
	upd, err := exec.Execute(context.Background(), s)
	require.NoError(t, err)
	state.Reduce(s, upd)
	require.Equal(t, 2, s.TaskList.Len())
	assert.Equal(t, "x", s.TaskList.Items[0].Content)
	assert.Equal(t, "y", s.TaskList.Items[1].Content)
}

func TestExecutor_LaterCallsSeeReplacedList(t *testing.T) {
	s := state.New("q")
	state.Reduce(s, state.Update{Messages: []conversation.Message{conversation.NewAssistantMessage("",
		conversation.ToolCall{ID: "w", Name: "write_todos", Arguments: map[string]any{
			"todo": []any{map[string]any{"step": "fresh", "status": "in_progress"}},
		}},
		conversation.ToolCall{ID: "r", Name: "read_todos"},
	)}})

	exec := NewExecutor(tools.NewBaseToolExecutor(tools.DefaultToolConfig()), registry(t, writeTodosTool(t), readTodosTool(t)), "")
	upd, err := exec.Execute(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, upd.Messages, 2)
	assert.Equal(t, "Item: fresh Status: in_progress", upd.Messages[1].Content)
	require.NotNil(t, upd.TaskList)
	assert.Equal(t, "fresh", upd.TaskList.Items[0].Content)
}

func TestExecutor_NoToolCallsIsEmptyUpdate(t *testing.T) {
	s := state.New("q")
	exec := NewExecutor(tools.NewBaseToolExecutor(tools.DefaultToolConfig()), nil, "")
	upd, err := exec.Execute(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, upd.IsEmpty())
}

func TestDispatcher_AssignsMissingToolCallIDs(t *testing.T) {
	eng := &scriptedEngine{replies: []reply{callTools(conversation.ToolCall{Name: "search"})}}
	s := state.New("q")
	state.Reduce(s, state.Update{Trace: []conversation.Message{conversation.NewUserMessage("q")}})

	upd := NewDispatcher(eng, "be brief").Dispatch(context.Background(), s)
	require.Len(t, upd.Messages, 1)
	require.Len(t, upd.Trace, 1)
	require.Len(t, upd.Messages[0].ToolCalls, 1)
	assert.NotEmpty(t, upd.Messages[0].ToolCalls[0].ID)

	require.Len(t, eng.inputs, 1)
	assert.Equal(t, conversation.RoleSystem, eng.inputs[0][0].Role)
	assert.Equal(t, "be brief", eng.inputs[0][0].Content)
}

type panickingEngine struct{ scriptedEngine }

func (p *panickingEngine) RunInference(context.Context, conversation.Conversation) (*conversation.Message, error) {
	panic("boom")
}

func TestDispatcher_RecoversFromPanics(t *testing.T) {
	s := state.New("q")
	upd := NewDispatcher(&panickingEngine{}, "").Dispatch(context.Background(), s)
	require.Len(t, upd.Messages, 1)
	assert.Contains(t, upd.Messages[0].Content, FailSoftPrefix)
	assert.False(t, upd.Messages[0].HasToolCalls())
}

type nilResultExecutor struct{}

func (nilResultExecutor) ExecuteToolCall(context.Context, tools.ToolCall, tools.ToolRegistry) (*tools.ToolResult, error) {
	return nil, nil
}

func TestExecutor_NilResultIsAFailure(t *testing.T) {
	s := state.New("q")
	state.Reduce(s, state.Update{Messages: []conversation.Message{conversation.NewAssistantMessage("",
		conversation.ToolCall{ID: "a", Name: "search"},
	)}})

	upd, err := NewExecutor(nilResultExecutor{}, nil, tools.ToolErrorContinue).Execute(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, upd.Messages, 1)
	assert.True(t, upd.Messages[0].IsError)
	assert.Equal(t, "Error: tool executor returned no result", upd.Messages[0].Content)

	_, err = NewExecutor(nilResultExecutor{}, nil, tools.ToolErrorAbort).Execute(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no result")
}
