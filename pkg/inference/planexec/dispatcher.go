package planexec

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/events"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/go-go-golems/planexec/pkg/inference/state"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FailSoftPrefix starts the content of the assistant message produced when the
// engine fails during dispatch.
const FailSoftPrefix = "Something went wrong: "

// Dispatcher sends the built context to the engine and records exactly one
// assistant message.
type Dispatcher struct {
	eng          engine.Engine
	systemPrompt string
}

func NewDispatcher(eng engine.Engine, systemPrompt string) *Dispatcher {
	return &Dispatcher{eng: eng, systemPrompt: systemPrompt}
}

// Dispatch never fails: engine errors become an assistant message without
// tool calls so the router terminates the run with a readable answer.
func (d *Dispatcher) Dispatch(ctx context.Context, s *state.State) state.Update {
	input := BuildContext(s)
	if d.systemPrompt != "" {
		input = append(conversation.Conversation{conversation.NewSystemMessage(d.systemPrompt)}, input...)
	}

	md := events.EventMetadataFromContext(ctx)
	events.PublishEventToContext(ctx, events.NewInferenceEvent(md, len(input)))

	msg, err := d.invoke(ctx, input)
	if err != nil {
		log.Warn().Err(err).Str("run_id", md.RunID).Int("iteration", md.Iteration).Msg("planexec: engine failed during dispatch")
		events.PublishEventToContext(ctx, events.NewErrorEvent(md, err))
		failed := conversation.NewAssistantMessage(FailSoftPrefix + err.Error())
		msg = &failed
	}

	events.PublishEventToContext(ctx, events.NewAssistantEvent(md, *msg))
	return state.Update{
		Messages: []conversation.Message{*msg},
		Trace:    []conversation.Message{*msg},
	}
}

func (d *Dispatcher) invoke(ctx context.Context, input conversation.Conversation) (msg *conversation.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			err = errors.Errorf("engine panicked: %v", r)
		}
	}()

	msg, err = d.eng.RunInference(ctx, input)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.New("engine returned no message")
	}

	out := msg.Clone()
	out.Role = conversation.RoleAssistant
	if !out.HasToolCalls() && strings.TrimSpace(out.Content) == "" {
		return nil, errors.New("engine returned an empty message")
	}
	for i := range out.ToolCalls {
		if out.ToolCalls[i].ID == "" {
			out.ToolCalls[i].ID = fmt.Sprintf("call_%s", uuid.NewString())
		}
	}
	return &out, nil
}
