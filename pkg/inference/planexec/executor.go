package planexec

import (
	"context"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/events"
	"github.com/go-go-golems/planexec/pkg/inference/state"
	"github.com/go-go-golems/planexec/pkg/inference/toolcontext"
	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var errNoToolResult = errors.New("tool executor returned no result")

// Executor runs the tool calls of the latest assistant message in order.
type Executor struct {
	exec     tools.ToolExecutor
	registry tools.ToolRegistry
	handling tools.ToolErrorHandling
}

func NewExecutor(exec tools.ToolExecutor, registry tools.ToolRegistry, handling tools.ToolErrorHandling) *Executor {
	if handling == "" {
		handling = tools.ToolErrorContinue
	}
	return &Executor{exec: exec, registry: registry, handling: handling}
}

// Execute returns one tool message per call, tagged with the call id. A
// task-list result replaces the working task list; later calls of the same
// batch see the replacement through toolcontext.TaskListFrom. The returned
// update is valid even when err is set and holds the calls completed so far.
func (e *Executor) Execute(ctx context.Context, s *state.State) (state.Update, error) {
	var upd state.Update

	latest, ok := s.LastMessage()
	if !ok || !latest.HasToolCalls() {
		return upd, nil
	}

	working := s.TaskList.Clone()
	replaced := false
	md := events.EventMetadataFromContext(ctx)

	appendMsg := func(m conversation.Message) {
		upd.Messages = append(upd.Messages, m)
		upd.Trace = append(upd.Trace, m)
	}
	finish := func() state.Update {
		if replaced {
			list := working.Clone()
			upd.TaskList = &list
		}
		return upd
	}

	for _, c := range latest.ToolCalls {
		call, err := tools.NewToolCall(c)
		if err != nil {
			if e.handling == tools.ToolErrorAbort {
				return finish(), err
			}
			appendMsg(conversation.NewToolMessage(c.ID, c.Name, "Error: "+err.Error(), true))
			continue
		}

		callCtx := toolcontext.WithTaskList(ctx, working)
		res, err := e.exec.ExecuteToolCall(callCtx, call, e.registry)
		if err != nil {
			if res != nil {
				appendMsg(conversation.NewToolMessage(c.ID, c.Name, res.Text(), true))
			}
			return finish(), err
		}
		if res == nil {
			res = &tools.ToolResult{ID: c.ID, Name: c.Name, Error: errNoToolResult.Error(), Err: errNoToolResult}
		}

		if res.Failed() {
			log.Warn().
				Str("run_id", md.RunID).
				Str("tool", c.Name).
				Str("tool_call_id", c.ID).
				Str("error", res.Error).
				Msg("planexec: tool call failed")
			appendMsg(conversation.NewToolMessage(c.ID, c.Name, res.Text(), true))
			if e.handling == tools.ToolErrorAbort {
				cause := res.Err
				if cause == nil {
					cause = errors.New(res.Error)
				}
				return finish(), errors.Wrapf(cause, "tool %s", c.Name)
			}
			continue
		}

		if res.Result.Kind == tools.ResultKindTaskList {
			working = res.Result.TaskList.Clone()
			replaced = true
			events.PublishEventToContext(ctx, events.NewTaskListEvent(md, working))
		}
		appendMsg(conversation.NewToolMessage(c.ID, c.Name, res.Text(), false))
	}

	return finish(), nil
}

