package planexec

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/events"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/go-go-golems/planexec/pkg/inference/toolcontext"
	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/go-go-golems/planexec/pkg/tasks"
	"github.com/stretchr/testify/require"
)

type reply struct {
	msg *conversation.Message
	err error
}

func answer(text string) reply {
	m := conversation.NewAssistantMessage(text)
	return reply{msg: &m}
}

func callTools(calls ...conversation.ToolCall) reply {
	m := conversation.NewAssistantMessage("", calls...)
	return reply{msg: &m}
}

func failure(err error) reply {
	return reply{err: err}
}

// scriptedEngine replays planner output and dispatch replies in order and
// records what it was sent.
type scriptedEngine struct {
	mu sync.Mutex

	plan    string
	planErr error
	replies []reply
	// repeat keeps returning the last reply once the script is exhausted.
	repeat bool

	instructions []string
	inputs       []conversation.Conversation
	bound        []engine.ToolSpec
}

func (e *scriptedEngine) RunInference(_ context.Context, msgs conversation.Conversation) (*conversation.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, msgs.Clone())
	if len(e.replies) == 0 {
		return nil, nil
	}
	r := e.replies[0]
	if len(e.replies) > 1 || !e.repeat {
		e.replies = e.replies[1:]
	}
	if r.msg != nil {
		m := r.msg.Clone()
		return &m, r.err
	}
	return nil, r.err
}

func (e *scriptedEngine) RunStructured(_ context.Context, instruction string, cfg engine.StructuredOutputConfig) (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instructions = append(e.instructions, instruction)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if e.planErr != nil {
		return nil, e.planErr
	}
	return json.RawMessage(e.plan), nil
}

func (e *scriptedEngine) BindTools(specs []engine.ToolSpec) (engine.Engine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bound = append([]engine.ToolSpec(nil), specs...)
	return e, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) PublishEvent(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type())
	}
	return out
}

type searchInput struct {
	Query string `json:"query"`
}

func searchTool(t *testing.T, hits ...tools.SearchResult) *tools.ToolDefinition {
	t.Helper()
	def, err := tools.NewToolFromFunc("search", "web search", func(in searchInput) ([]tools.SearchResult, error) {
		return hits, nil
	}, tools.WithResultKind(tools.ResultKindSearch))
	require.NoError(t, err)
	return def
}

type writeTodosInput struct {
	Todo []tasks.Step `json:"todo"`
}

func writeTodosTool(t *testing.T) *tools.ToolDefinition {
	t.Helper()
	def, err := tools.NewToolFromFunc("write_todos", "replace the to-do list", func(in writeTodosInput) (tasks.List, error) {
		return tasks.NewList(in.Todo...), nil
	}, tools.WithResultKind(tools.ResultKindTaskList))
	require.NoError(t, err)
	return def
}

func readTodosTool(t *testing.T) *tools.ToolDefinition {
	t.Helper()
	def, err := tools.NewToolFromFunc("read_todos", "read the to-do list", func(ctx context.Context) (tasks.List, error) {
		list, _ := toolcontext.TaskListFrom(ctx)
		return list, nil
	}, tools.WithResultKind(tools.ResultKindTaskList))
	require.NoError(t, err)
	return def
}

func registry(t *testing.T, defs ...*tools.ToolDefinition) *tools.InMemoryToolRegistry {
	t.Helper()
	reg := tools.NewInMemoryToolRegistry()
	require.NoError(t, reg.Register(defs...))
	return reg
}
