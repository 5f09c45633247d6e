// Package toolcontext carries run-scoped values to tool functions through the
// context: the registry of the run and the working task list of the current
// tool batch.
package toolcontext

import (
	"context"

	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/go-go-golems/planexec/pkg/tasks"
)

type registryKey struct{}
type taskListKey struct{}

// WithRegistry attaches a ToolRegistry to the context.
func WithRegistry(ctx context.Context, reg tools.ToolRegistry) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if reg == nil {
		// Keep semantics: "no tools" by not setting the key at all.
		return ctx
	}
	return context.WithValue(ctx, registryKey{}, reg)
}

// RegistryFrom extracts the ToolRegistry from context.
func RegistryFrom(ctx context.Context) (tools.ToolRegistry, bool) {
	if ctx == nil {
		return nil, false
	}
	reg, ok := ctx.Value(registryKey{}).(tools.ToolRegistry)
	if !ok || reg == nil {
		return nil, false
	}
	return reg, true
}

// WithTaskList attaches a copy of the working task list.
func WithTaskList(ctx context.Context, list tasks.List) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, taskListKey{}, list.Clone())
}

// TaskListFrom returns a copy of the working task list, if one was attached.
func TaskListFrom(ctx context.Context) (tasks.List, bool) {
	if ctx == nil {
		return tasks.List{}, false
	}
	list, ok := ctx.Value(taskListKey{}).(tasks.List)
	if !ok {
		return tasks.List{}, false
	}
	return list.Clone(), true
}
