// Package state holds the run-scoped aggregate a plan-then-execute loop
// works on, and the single reducer that merges partial updates into it.
package state

import (
	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/tasks"
	"github.com/huandu/go-clone"
)

// State is owned by exactly one run.
//
// Messages is the append-only conversation history. Trace is the append-only
// step history the context builder reads. TaskList is replaced on write.
type State struct {
	Messages conversation.Conversation `json:"messages" yaml:"messages"`
	TaskList tasks.List                `json:"task_list" yaml:"task_list"`
	Trace    conversation.Conversation `json:"trace" yaml:"trace"`
}

// New seeds a state with the initial user request.
func New(request string) *State {
	return &State{
		Messages: conversation.Conversation{conversation.NewUserMessage(request)},
	}
}

// Update is the partial result a component returns. Messages and Trace are
// appended, TaskList replaces the current list when non-nil.
type Update struct {
	Messages []conversation.Message
	Trace    []conversation.Message
	TaskList *tasks.List
}

func (u Update) IsEmpty() bool {
	return len(u.Messages) == 0 && len(u.Trace) == 0 && u.TaskList == nil
}

// Reduce merges u into s. It is the only place state is mutated during a run.
func Reduce(s *State, u Update) {
	if s == nil {
		return
	}
	for _, m := range u.Messages {
		s.Messages = append(s.Messages, m.Clone())
	}
	for _, m := range u.Trace {
		s.Trace = append(s.Trace, m.Clone())
	}
	if u.TaskList != nil {
		s.TaskList = u.TaskList.Clone()
	}
}

// LastMessage returns the most recent message of the history.
func (s *State) LastMessage() (conversation.Message, bool) {
	if s == nil {
		return conversation.Message{}, false
	}
	return s.Messages.Last()
}

// LastTrace returns the most recent trace entry.
func (s *State) LastTrace() (conversation.Message, bool) {
	if s == nil {
		return conversation.Message{}, false
	}
	return s.Trace.Last()
}

// Request returns the content of the first user message.
func (s *State) Request() string {
	if s == nil {
		return ""
	}
	for _, m := range s.Messages {
		if m.Role == conversation.RoleUser {
			return m.Content
		}
	}
	return ""
}

// Snapshot returns a deep copy callers may hold on to after the run.
func (s *State) Snapshot() *State {
	if s == nil {
		return nil
	}
	return clone.Clone(s).(*State)
}
