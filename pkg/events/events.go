package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/tasks"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypePlan is published once per run, after the planner produced the task list.
	EventTypePlan EventType = "plan"
	// EventTypeInference is published before each dispatch to the reasoning engine.
	EventTypeInference EventType = "inference"
	// EventTypeAssistant carries the assistant message produced by a dispatch.
	EventTypeAssistant EventType = "assistant"

	// Execution-phase events (we are actually executing tools locally)
	EventTypeToolCallExecute EventType = "tool-call-execute"
	EventTypeToolCallResult  EventType = "tool-call-result"

	// EventTypeTaskList is published whenever a tool replaced the task list.
	EventTypeTaskList EventType = "task-list"
	EventTypeFinal    EventType = "final"
	EventTypeError    EventType = "error"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata identifies the run an event belongs to.
type EventMetadata struct {
	RunID     string    `json:"run_id,omitempty" yaml:"run_id,omitempty" mapstructure:"run_id"`
	ThreadID  string    `json:"thread_id,omitempty" yaml:"thread_id,omitempty" mapstructure:"thread_id"`
	Iteration int       `json:"iteration,omitempty" yaml:"iteration,omitempty" mapstructure:"iteration"`
	Time      time.Time `json:"time" yaml:"time" mapstructure:"time"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	if em.RunID != "" {
		e.Str("run_id", em.RunID)
	}
	if em.ThreadID != "" {
		e.Str("thread_id", em.ThreadID)
	}
	if em.Iteration > 0 {
		e.Int("iteration", em.Iteration)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func newEventImpl(t EventType, metadata EventMetadata) EventImpl {
	if metadata.Time.IsZero() {
		metadata.Time = time.Now()
	}
	return EventImpl{Type_: t, Metadata_: metadata}
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

type EventPlan struct {
	EventImpl
	TaskList tasks.List `json:"task_list"`
}

func NewPlanEvent(metadata EventMetadata, list tasks.List) *EventPlan {
	return &EventPlan{
		EventImpl: newEventImpl(EventTypePlan, metadata),
		TaskList:  list.Clone(),
	}
}

var _ Event = &EventPlan{}

type EventInference struct {
	EventImpl
	// Messages is the number of messages sent to the engine.
	Messages int `json:"messages"`
}

func NewInferenceEvent(metadata EventMetadata, messages int) *EventInference {
	return &EventInference{
		EventImpl: newEventImpl(EventTypeInference, metadata),
		Messages:  messages,
	}
}

var _ Event = &EventInference{}

type EventAssistant struct {
	EventImpl
	Message conversation.Message `json:"message"`
}

func NewAssistantEvent(metadata EventMetadata, msg conversation.Message) *EventAssistant {
	return &EventAssistant{
		EventImpl: newEventImpl(EventTypeAssistant, metadata),
		Message:   msg.Clone(),
	}
}

var _ Event = &EventAssistant{}

type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

// EventToolCallExecute captures the intent to execute a tool locally
type EventToolCallExecute struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallExecuteEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCallExecute {
	return &EventToolCallExecute{
		EventImpl: newEventImpl(EventTypeToolCallExecute, metadata),
		ToolCall:  toolCall,
	}
}

var _ Event = &EventToolCallExecute{}

type ToolResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error,omitempty"`
}

// EventToolCallResult captures the rendered result of executing a tool locally
type EventToolCallResult struct {
	EventImpl
	ToolResult ToolResult `json:"tool_result"`
}

func NewToolCallResultEvent(metadata EventMetadata, toolResult ToolResult) *EventToolCallResult {
	return &EventToolCallResult{
		EventImpl:  newEventImpl(EventTypeToolCallResult, metadata),
		ToolResult: toolResult,
	}
}

var _ Event = &EventToolCallResult{}

type EventTaskList struct {
	EventImpl
	TaskList tasks.List `json:"task_list"`
}

func NewTaskListEvent(metadata EventMetadata, list tasks.List) *EventTaskList {
	return &EventTaskList{
		EventImpl: newEventImpl(EventTypeTaskList, metadata),
		TaskList:  list.Clone(),
	}
}

var _ Event = &EventTaskList{}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: newEventImpl(EventTypeFinal, metadata),
		Text:      text,
	}
}

var _ Event = &EventFinal{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   newEventImpl(EventTypeError, metadata),
		ErrorString: err.Error(),
	}
}

var _ Event = &EventError{}

// NewEventFromJson decodes an event published by a WatermillSink back into its
// concrete type.
func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("empty event payload")
	}

	e.payload = b

	var ret Event
	var ok bool
	switch e.Type_ {
	case EventTypePlan:
		ret, ok = toTyped[EventPlan](b)
	case EventTypeInference:
		ret, ok = toTyped[EventInference](b)
	case EventTypeAssistant:
		ret, ok = toTyped[EventAssistant](b)
	case EventTypeToolCallExecute:
		ret, ok = toTyped[EventToolCallExecute](b)
	case EventTypeToolCallResult:
		ret, ok = toTyped[EventToolCallResult](b)
	case EventTypeTaskList:
		ret, ok = toTyped[EventTaskList](b)
	case EventTypeFinal:
		ret, ok = toTyped[EventFinal](b)
	case EventTypeError:
		ret, ok = toTyped[EventError](b)
	default:
		return e, nil
	}
	if !ok {
		return nil, fmt.Errorf("could not decode event of type %s", e.Type_)
	}
	return ret, nil
}

type payloadSetter interface {
	Event
	setPayload([]byte)
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}

func toTyped[T any, PT interface {
	*T
	payloadSetter
}](b []byte) (Event, bool) {
	var ret T
	if err := json.Unmarshal(b, &ret); err != nil {
		return nil, false
	}
	p := PT(&ret)
	p.setPayload(b)
	return p, true
}
