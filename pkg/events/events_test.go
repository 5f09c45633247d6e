package events

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/tasks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []Event
}

func (r *recordingSink) PublishEvent(e Event) error {
	r.events = append(r.events, e)
	return nil
}

func TestPublishEventToContext_FansOutToAllSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	ctx := WithEventSinks(context.Background(), a)
	ctx = WithEventSinks(ctx, b)

	PublishEventToContext(ctx, NewFinalEvent(EventMetadata{RunID: "r1"}, "4"))

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, EventTypeFinal, a.events[0].Type())
	assert.Equal(t, "r1", b.events[0].Metadata().RunID)
}

func TestPublishEventToContext_NoSinksIsNoop(t *testing.T) {
	PublishEventToContext(context.Background(), NewFinalEvent(EventMetadata{}, "x"))
	assert.Empty(t, GetEventSinks(context.Background()))
}

func TestWatermillSink_RoundTrip(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	msgs, err := pubSub.Subscribe(context.Background(), "events")
	require.NoError(t, err)

	sink := NewWatermillSink(pubSub, "events")
	list := tasks.NewList(tasks.NewStep("search for X"))
	require.NoError(t, sink.PublishEvent(NewPlanEvent(EventMetadata{RunID: "run-1", Iteration: 1}, list)))

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, "plan", msg.Metadata.Get("event_type"))
		assert.Equal(t, "run-1", msg.Metadata.Get("run_id"))

		ev, err := NewEventFromJson(msg.Payload)
		require.NoError(t, err)
		plan, ok := ev.(*EventPlan)
		require.True(t, ok)
		require.Equal(t, 1, plan.TaskList.Len())
		assert.Equal(t, "search for X", plan.TaskList.Items[0].Content)
		assert.Equal(t, []byte(msg.Payload), ev.Payload())
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestNewEventFromJson_DecodesAssistant(t *testing.T) {
	msg := conversation.NewAssistantMessage("", conversation.ToolCall{ID: "c1", Name: "search", Arguments: map[string]any{"query": "X"}})
	b, err := json.Marshal(NewAssistantEvent(EventMetadata{}, msg))
	require.NoError(t, err)

	ev, err := NewEventFromJson(b)
	require.NoError(t, err)
	a, ok := ev.(*EventAssistant)
	require.True(t, ok)
	require.Len(t, a.Message.ToolCalls, 1)
	assert.Equal(t, "search", a.Message.ToolCalls[0].Name)
	assert.Equal(t, "X", a.Message.ToolCalls[0].Arguments["query"])
}

func TestNewEventFromJson_UnknownTypeKeepsBaseEvent(t *testing.T) {
	ev, err := NewEventFromJson([]byte(`{"type":"custom","meta":{"run_id":"r"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventType("custom"), ev.Type())
	assert.Equal(t, "r", ev.Metadata().RunID)
}

func TestLoggingSink_WritesEventType(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	sink := NewLoggingSink(logger)

	require.NoError(t, sink.PublishEvent(NewErrorEvent(EventMetadata{RunID: "r"}, assert.AnError)))
	assert.Contains(t, buf.String(), `"event_type":"error"`)
	assert.Contains(t, buf.String(), `"run_id":"r"`)
}

func TestEventRouter_DumpRawEvents(t *testing.T) {
	var out bytes.Buffer
	router, err := NewEventRouter(WithOutput(&out))
	require.NoError(t, err)

	done := make(chan struct{})
	router.AddHandler("dump", "events", func(msg *message.Message) error {
		defer close(done)
		return router.DumpRawEvents(msg)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	require.NoError(t, router.Sink("events").PublishEvent(NewFinalEvent(EventMetadata{RunID: "r9"}, "done")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not invoked")
	}
	require.NoError(t, router.Close())
	assert.Contains(t, out.String(), `"run_id": "r9"`)
	assert.Contains(t, out.String(), `"text": "done"`)
	assert.NotContains(t, out.String(), `"meta"`)
}
