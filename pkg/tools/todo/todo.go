// Package todo provides the tools a reasoning engine uses to read and rewrite
// the task list of the current run.
package todo

import (
	"context"

	"github.com/go-go-golems/planexec/pkg/inference/toolcontext"
	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/go-go-golems/planexec/pkg/tasks"
	"github.com/pkg/errors"
)

const (
	WriteTodosName = "write_todos"
	ReadTodosName  = "read_todos"
)

type WriteInput struct {
	Todo []tasks.Step `json:"todo" jsonschema:"required" jsonschema_description:"The complete new to-do list. It replaces the current one."`
}

// NewWriteTodos returns a tool that replaces the whole task list.
func NewWriteTodos() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		WriteTodosName,
		"Replace the to-do list with a new version. Use it to mark items in_progress or done, or to add and remove items. Always send the complete list.",
		func(in WriteInput) (tasks.List, error) {
			list := tasks.NewList(in.Todo...)
			if err := list.Validate(); err != nil {
				return tasks.List{}, errors.Wrap(err, "invalid to-do list")
			}
			return list, nil
		},
		tools.WithResultKind(tools.ResultKindTaskList),
		tools.WithTags("todo"),
	)
}

// NewReadTodos returns a tool that reports the working task list unchanged.
func NewReadTodos() (*tools.ToolDefinition, error) {
	return tools.NewToolFromFunc(
		ReadTodosName,
		"Read the current to-do list with the status of each item.",
		func(ctx context.Context) (tasks.List, error) {
			list, ok := toolcontext.TaskListFrom(ctx)
			if !ok {
				return tasks.List{}, nil
			}
			return list, nil
		},
		tools.WithResultKind(tools.ResultKindTaskList),
		tools.WithTags("todo"),
	)
}

// Register adds both task-list tools to reg.
func Register(reg *tools.InMemoryToolRegistry) error {
	write, err := NewWriteTodos()
	if err != nil {
		return err
	}
	read, err := NewReadTodos()
	if err != nil {
		return err
	}
	return reg.Register(write, read)
}
