package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/go-go-golems/planexec/pkg/steps/ai/settings"
	"github.com/go-go-golems/planexec/pkg/steps/ai/types"
	"github.com/invopop/jsonschema"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu       sync.Mutex
	requests []map[string]any
	reply    go_openai.ChatCompletionMessage
	status   int
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.requests = append(f.requests, body)
	f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(go_openai.ChatCompletionResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-4o-mini",
		Choices: []go_openai.ChatCompletionChoice{
			{Index: 0, Message: f.reply, FinishReason: go_openai.FinishReasonStop},
		},
	})
}

func (f *fakeServer) lastRequest(t *testing.T) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestEngine(t *testing.T, f *fakeServer) *Engine {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	s := settings.NewStepSettings()
	model := "gpt-4o-mini"
	apiType := types.ApiTypeOpenAI
	s.Chat.Engine = &model
	s.Chat.ApiType = &apiType
	s.API.SetAPIKey(types.ApiTypeOpenAI, "sk-test")
	s.API.SetBaseURL(types.ApiTypeOpenAI, srv.URL+"/v1")

	e, err := NewEngine(s)
	require.NoError(t, err)
	return e
}

func TestNewEngineRequiresKey(t *testing.T) {
	s := settings.NewStepSettings()
	model := "gpt-4o-mini"
	s.Chat.Engine = &model
	_, err := NewEngine(s)
	require.Error(t, err)
}

func TestRunInferenceText(t *testing.T) {
	f := &fakeServer{reply: go_openai.ChatCompletionMessage{
		Role:    go_openai.ChatMessageRoleAssistant,
		Content: "Paris",
	}}
	e := newTestEngine(t, f)

	msg, err := e.RunInference(context.Background(), conversation.Conversation{
		conversation.NewSystemMessage("be brief"),
		conversation.NewUserMessage("capital of France?"),
	})
	require.NoError(t, err)
	assert.Equal(t, conversation.RoleAssistant, msg.Role)
	assert.Equal(t, "Paris", msg.Content)

	req := f.lastRequest(t)
	assert.Equal(t, "gpt-4o-mini", req["model"])
	msgs := req["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Nil(t, req["tools"])
}

func TestRunInferenceToolCallsRoundTrip(t *testing.T) {
	f := &fakeServer{reply: go_openai.ChatCompletionMessage{
		Role: go_openai.ChatMessageRoleAssistant,
		ToolCalls: []go_openai.ToolCall{{
			ID:   "call_1",
			Type: go_openai.ToolTypeFunction,
			Function: go_openai.FunctionCall{
				Name:      "search",
				Arguments: `{"query":"weather"}`,
			},
		}},
	}}
	e := newTestEngine(t, f)

	bound, err := e.BindTools([]engine.ToolSpec{{
		Name:        "search",
		Description: "web search",
		Parameters: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"query"},
		},
	}})
	require.NoError(t, err)

	history := conversation.Conversation{
		conversation.NewUserMessage("weather?"),
		conversation.NewAssistantMessage("", conversation.ToolCall{ID: "call_0", Name: "search", Arguments: map[string]any{"query": "x"}}),
		conversation.NewToolMessage("call_0", "search", "sunny", false),
	}
	msg, err := bound.RunInference(context.Background(), history)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "search", msg.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"query": "weather"}, msg.ToolCalls[0].Arguments)

	req := f.lastRequest(t)
	tools_ := req["tools"].([]any)
	require.Len(t, tools_, 1)
	fn := tools_[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "search", fn["name"])
	assert.Equal(t, "auto", req["tool_choice"])

	msgs := req["messages"].([]any)
	require.Len(t, msgs, 3)
	assistant := msgs[1].(map[string]any)
	calls := assistant["tool_calls"].([]any)
	assert.Equal(t, `{"query":"x"}`, calls[0].(map[string]any)["function"].(map[string]any)["arguments"])
	tool := msgs[2].(map[string]any)
	assert.Equal(t, "tool", tool["role"])
	assert.Equal(t, "call_0", tool["tool_call_id"])

	// the unbound engine is untouched
	assert.Empty(t, e.tools)
}

func TestRunInferenceInvalidArgumentsAreDropped(t *testing.T) {
	f := &fakeServer{reply: go_openai.ChatCompletionMessage{
		Role: go_openai.ChatMessageRoleAssistant,
		ToolCalls: []go_openai.ToolCall{{
			ID:       "call_1",
			Type:     go_openai.ToolTypeFunction,
			Function: go_openai.FunctionCall{Name: "search", Arguments: `{"query":`},
		}},
	}}
	e := newTestEngine(t, f)

	msg, err := e.RunInference(context.Background(), conversation.Conversation{conversation.NewUserMessage("x")})
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Nil(t, msg.ToolCalls[0].Arguments)
}

func TestRunInferenceServerError(t *testing.T) {
	f := &fakeServer{status: http.StatusInternalServerError}
	e := newTestEngine(t, f)

	_, err := e.RunInference(context.Background(), conversation.Conversation{conversation.NewUserMessage("x")})
	require.Error(t, err)
}

func TestRunStructured(t *testing.T) {
	f := &fakeServer{reply: go_openai.ChatCompletionMessage{
		Role:    go_openai.ChatMessageRoleAssistant,
		Content: `{"steps":[{"content":"a","status":"pending"}]}`,
	}}
	e := newTestEngine(t, f)

	out, err := e.RunStructured(context.Background(), "plan this", engine.StructuredOutputConfig{
		Mode:   engine.StructuredOutputModeJSONSchema,
		Name:   "todo_list",
		Schema: map[string]any{"type": "object"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"steps":[{"content":"a","status":"pending"}]}`, string(out))

	req := f.lastRequest(t)
	rf := req["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
	js := rf["json_schema"].(map[string]any)
	assert.Equal(t, "todo_list", js["name"])
	assert.Equal(t, true, js["strict"])
	assert.Nil(t, req["tools"])
}

func TestRunStructuredRejectsInvalidJSON(t *testing.T) {
	f := &fakeServer{reply: go_openai.ChatCompletionMessage{
		Role:    go_openai.ChatMessageRoleAssistant,
		Content: `not json`,
	}}
	e := newTestEngine(t, f)

	_, err := e.RunStructured(context.Background(), "plan this", engine.StructuredOutputConfig{
		Mode:   engine.StructuredOutputModeJSONSchema,
		Name:   "todo_list",
		Schema: map[string]any{"type": "object"},
	})
	require.Error(t, err)
}

func TestRunStructuredRequiresSchema(t *testing.T) {
	e := newTestEngine(t, &fakeServer{})
	_, err := e.RunStructured(context.Background(), "x", engine.StructuredOutputConfig{Mode: engine.StructuredOutputModeJSONSchema, Name: "n"})
	require.Error(t, err)
}
