package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-go-golems/planexec/pkg/config"
	"github.com/go-go-golems/planexec/pkg/inference/planexec"
	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnswerer struct {
	err error
}

func (f fakeAnswerer) Run(ctx context.Context, request string) (*planexec.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &planexec.Result{RunID: "r1", Answer: "answer: " + request}, nil
}

func callAsk(t *testing.T, a answerer, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	c, err := client.NewInProcessClient(newMCPServer(a))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "0"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)

	req := mcp.CallToolRequest{}
	req.Params.Name = askToolName
	req.Params.Arguments = args
	res, err := c.CallTool(ctx, req)
	require.NoError(t, err)
	return res
}

func resultText(res *mcp.CallToolResult) string {
	var b bytes.Buffer
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func TestMCPAskTool(t *testing.T) {
	res := callAsk(t, fakeAnswerer{}, map[string]any{"request": "eggs?"})
	assert.False(t, res.IsError)
	assert.Equal(t, "answer: eggs?", resultText(res))

	res = callAsk(t, fakeAnswerer{}, map[string]any{"request": " "})
	assert.True(t, res.IsError)

	res = callAsk(t, fakeAnswerer{err: errors.New("engine down")}, map[string]any{"request": "eggs?"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "engine down")
}

func TestPrintAnswerRaw(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, printAnswer(&b, "# Title", false))
	assert.Equal(t, "# Title\n", b.String())
}

func TestRedacted(t *testing.T) {
	cfg := &config.Config{}
	cfg.AI.APIKey = "sk-secret"
	cfg.Search.APIKey = "tvly"

	r := redacted(cfg)
	assert.Equal(t, "***", r.AI.APIKey)
	assert.Equal(t, "***", r.Search.APIKey)
	assert.Equal(t, "sk-secret", cfg.AI.APIKey)
}

// plannerThenAnswer answers the structured planning request with an empty
// plan and every other request with a fixed answer.
func plannerThenAnswer(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	content := "4"
	if _, ok := body["response_format"]; ok {
		content = `{"todo":[]}`
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(go_openai.ChatCompletionResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-4o-mini",
		Choices: []go_openai.ChatCompletionChoice{{
			Message:      go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleAssistant, Content: content},
			FinishReason: go_openai.FinishReasonStop,
		}},
	})
}

func TestRunOncePrintsEventsUpToTheFinalOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(plannerThenAnswer))
	defer srv.Close()

	cfg := &config.Config{
		AI: config.AIConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			APIKey:   "sk-test",
			BaseURL:  srv.URL + "/v1",
		},
		Loop:  planexec.DefaultLoopConfig(),
		Tools: tools.DefaultToolConfig(),
	}

	var out bytes.Buffer
	res, err := runOnce(context.Background(), &out, "What is 2+2?", cfg, true)
	require.NoError(t, err)
	assert.Equal(t, "4", res.Answer)

	dump := out.String()
	assert.Contains(t, dump, `"type": "plan"`)
	assert.Contains(t, dump, `"type": "assistant"`)
	assert.Contains(t, dump, `"type": "final"`)
}
