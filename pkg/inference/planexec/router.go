package planexec

import "github.com/go-go-golems/planexec/pkg/conversation"

// Route decides what follows a dispatch. It looks at the latest message only:
// tool calls send the run to EXECUTING, anything else terminates it with the
// message content as the answer.
func Route(latest *conversation.Message) (next Phase, answer string) {
	if latest == nil {
		return PhaseTerminated, ""
	}
	if latest.HasToolCalls() {
		return PhaseExecuting, ""
	}
	return PhaseTerminated, latest.Content
}
