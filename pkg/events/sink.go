package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventSink represents a destination for loop events.
type EventSink interface {
	// PublishEvent publishes an event to the sink.
	// Returns an error if the event could not be published.
	PublishEvent(event Event) error
}

// NullSink is a no-op EventSink implementation that discards all events.
type NullSink struct{}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) PublishEvent(Event) error {
	return nil
}

var _ EventSink = (*NullSink)(nil)

// WatermillSink publishes events as JSON messages to a watermill Publisher.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", string(event.Type()))
	if runID := event.Metadata().RunID; runID != "" {
		msg.Metadata.Set("run_id", runID)
	}

	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)

// LoggingSink writes every event to a zerolog logger at debug level.
type LoggingSink struct {
	logger zerolog.Logger
}

func NewLoggingSink(logger zerolog.Logger) *LoggingSink {
	return &LoggingSink{logger: logger}
}

func (l *LoggingSink) PublishEvent(event Event) error {
	ev := l.logger.Debug().
		Str("event_type", string(event.Type())).
		Object("meta", event.Metadata())
	switch e := event.(type) {
	case *EventAssistant:
		ev = ev.Str("content", e.Message.Content).Int("tool_calls", len(e.Message.ToolCalls))
	case *EventToolCallExecute:
		ev = ev.Str("tool", e.ToolCall.Name).Str("tool_call_id", e.ToolCall.ID)
	case *EventToolCallResult:
		ev = ev.Str("tool", e.ToolResult.Name).Bool("is_error", e.ToolResult.IsError)
	case *EventPlan:
		ev = ev.Int("steps", e.TaskList.Len())
	case *EventTaskList:
		ev = ev.Int("steps", e.TaskList.Len())
	case *EventFinal:
		ev = ev.Int("answer_len", len(e.Text))
	case *EventError:
		ev = ev.Str("error", e.ErrorString)
	}
	ev.Msg("planexec event")
	return nil
}

var _ EventSink = (*LoggingSink)(nil)
