package planexec

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/events"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/go-go-golems/planexec/pkg/inference/state"
	"github.com/go-go-golems/planexec/pkg/prompts"
	"github.com/go-go-golems/planexec/pkg/tasks"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// TaskListSchemaName is the structured output name the planner requests.
const TaskListSchemaName = "todo_list"

// Planner asks the engine once for a task list and seeds the trace.
type Planner struct {
	eng       engine.Engine
	prompts   *prompts.Renderer
	cfg       engine.StructuredOutputConfig
	validator *gojsonschema.Schema
}

// NewPlanner builds a planner whose structured output is validated against
// the task list schema.
func NewPlanner(eng engine.Engine, renderer *prompts.Renderer) (*Planner, error) {
	if renderer == nil {
		renderer = prompts.Default()
	}
	schema, err := tasks.Schema()
	if err != nil {
		return nil, err
	}
	validator, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(lenientStatus(schema)))
	if err != nil {
		return nil, errors.Wrap(err, "compile task list schema")
	}
	return &Planner{
		eng:     eng,
		prompts: renderer,
		cfg: engine.StructuredOutputConfig{
			Mode:        engine.StructuredOutputModeJSONSchema,
			Name:        TaskListSchemaName,
			Description: "A to-do list decomposing the user's question. Empty for simple questions.",
			Schema:      schema,
		},
		validator: validator,
	}, nil
}

// lenientStatus drops the status enum from the validation schema so older
// status literals reach tasks.ParseStatus instead of failing validation.
func lenientStatus(schema map[string]any) map[string]any {
	out := clone.Clone(schema).(map[string]any)
	props, _ := out["properties"].(map[string]any)
	todo, _ := props["todo"].(map[string]any)
	items, _ := todo["items"].(map[string]any)
	itemProps, _ := items["properties"].(map[string]any)
	if status, ok := itemProps["status"].(map[string]any); ok {
		delete(status, "enum")
	}
	return out
}

// Plan derives the task list for request. Any failure is fatal to the run.
func (p *Planner) Plan(ctx context.Context, request string) (state.Update, error) {
	instruction, err := p.prompts.PlannerInstruction(request)
	if err != nil {
		return state.Update{}, err
	}

	raw, err := p.eng.RunStructured(ctx, instruction, p.cfg)
	if err != nil {
		return state.Update{}, errors.Wrap(err, "engine structured output")
	}

	list, err := p.decode(raw)
	if err != nil {
		return state.Update{}, err
	}

	log.Debug().Int("steps", list.Len()).Msg("planexec: plan generated")
	events.PublishEventToContext(ctx, events.NewPlanEvent(events.EventMetadataFromContext(ctx), list))

	upd := state.Update{TaskList: &list}
	if list.IsEmpty() {
		upd.Trace = []conversation.Message{conversation.NewUserMessage(request)}
		return upd, nil
	}

	ack, err := p.prompts.PlanAcknowledgement(list)
	if err != nil {
		return state.Update{}, err
	}
	directive, err := p.prompts.StepDirective(request, list)
	if err != nil {
		return state.Update{}, err
	}
	upd.Trace = []conversation.Message{
		conversation.NewAssistantMessage(ack),
		conversation.NewUserMessage(directive),
	}
	return upd, nil
}

func (p *Planner) decode(raw json.RawMessage) (tasks.List, error) {
	if len(raw) == 0 {
		return tasks.List{}, errors.New("engine returned no structured output")
	}
	res, err := p.validator.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return tasks.List{}, errors.Wrap(err, "structured output is not valid JSON")
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return tasks.List{}, errors.Errorf("structured output does not match the task list schema: %s", strings.Join(msgs, "; "))
	}

	var list tasks.List
	if err := json.Unmarshal(raw, &list); err != nil {
		return tasks.List{}, errors.Wrap(err, "decode task list")
	}
	if err := list.Validate(); err != nil {
		return tasks.List{}, err
	}
	return list, nil
}
