package planexec

import (
	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/inference/state"
)

// BuildContext returns the messages the next dispatch sends to the engine.
//
// After a fresh user turn with a non-empty task list, the user content and the
// rendered steps are folded into a single user message that becomes the whole
// input. In every other case the trace is passed through unchanged.
func BuildContext(s *state.State) conversation.Conversation {
	if s == nil {
		return nil
	}
	last, ok := s.LastTrace()
	if !ok {
		return s.Messages.Clone()
	}
	if !last.IsPlainUser() || s.TaskList.IsEmpty() {
		return s.Trace.Clone()
	}
	return conversation.Conversation{
		conversation.NewUserMessage(last.Content + "\n" + s.TaskList.Bullets()),
	}
}
