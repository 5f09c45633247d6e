package ollama

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/go-go-golems/planexec/pkg/steps/ai/settings"
	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Engine talks to a local ollama server. The server address is taken from
// OLLAMA_HOST.
type Engine struct {
	settings *settings.StepSettings
	client   *api.Client
	tools    []engine.ToolSpec
}

var _ engine.Engine = (*Engine)(nil)
var _ engine.ToolBinder = (*Engine)(nil)

func NewEngine(s *settings.StepSettings) (*Engine, error) {
	if _, err := s.Model(); err != nil {
		return nil, err
	}
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, errors.Wrap(err, "could not create ollama client")
	}
	return &Engine{
		settings: s.Clone(),
		client:   client,
	}, nil
}

func (e *Engine) BindTools(specs []engine.ToolSpec) (engine.Engine, error) {
	if _, err := toolInstructions(specs); err != nil {
		return nil, err
	}
	return &Engine{
		settings: e.settings,
		client:   e.client,
		tools:    append([]engine.ToolSpec(nil), specs...),
	}, nil
}

func (e *Engine) options() map[string]interface{} {
	opts := e.settings.Ollama.Options()
	chat := e.settings.Chat
	if chat.Temperature != nil {
		opts["temperature"] = *chat.Temperature
	}
	if chat.MaxResponseTokens != nil {
		opts["num_predict"] = *chat.MaxResponseTokens
	}
	if len(chat.Stop) > 0 {
		opts["stop"] = chat.Stop
	}
	return opts
}

func (e *Engine) chat(ctx context.Context, messages []api.Message, format string) (string, error) {
	model, err := e.settings.Model()
	if err != nil {
		return "", err
	}
	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Format:   format,
		Options:  e.options(),
	}

	log.Debug().
		Str("model", model).
		Int("messages", len(messages)).
		Str("format", format).
		Msg("Ollama chat request")

	var sb strings.Builder
	err = e.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "ollama chat failed")
	}
	return sb.String(), nil
}

func (e *Engine) RunInference(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
	msgs, err := messagesToOllama(messages)
	if err != nil {
		return nil, err
	}

	if len(e.tools) == 0 {
		content, err := e.chat(ctx, msgs, "")
		if err != nil {
			return nil, err
		}
		msg := conversation.NewAssistantMessage(content)
		return &msg, nil
	}

	instructions, err := toolInstructions(e.tools)
	if err != nil {
		return nil, err
	}
	msgs = append([]api.Message{{Role: "system", Content: instructions}}, msgs...)
	content, err := e.chat(ctx, msgs, "json")
	if err != nil {
		return nil, err
	}
	return parseEnvelope(content), nil
}

func (e *Engine) RunStructured(ctx context.Context, instruction string, cfg engine.StructuredOutputConfig) (json.RawMessage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	system, err := structuredInstructions(cfg)
	if err != nil {
		return nil, err
	}
	content, err := e.chat(ctx, []api.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: instruction},
	}, "json")
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if !json.Valid([]byte(content)) {
		return nil, errors.Errorf("ollama returned invalid JSON for %s", cfg.Name)
	}
	return json.RawMessage(content), nil
}
