// Package prompts renders the fixed instructions a plan-then-execute run sends
// to the reasoning engine. Templates use text/template with the sprig function
// map and can be overridden per name.
package prompts

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/go-go-golems/planexec/pkg/tasks"
	"github.com/pkg/errors"
)

const (
	NamePlanner   = "planner"
	NamePlanAck   = "plan-ack"
	NameDirective = "directive"
)

const plannerTemplate = `
For the given user question, come up with a simple step by step plan, like a to-do list. The plan
should involve individual items/steps that if executed correctly will yield the correct answer.
Do not add any superfluous steps. It is important that you evaluate whether or not a to-do needs to be
generated as well. For simple questions, no to-do list is required, so leave it blank. However, if a given
question will require you to think and verify, you should generate a to-do list. That is to say, for
complex tasks you should generate a to-do list.

Question: {{ .Request | trim }}
`

const planAckTemplate = `generated plan:
{{ range .Steps -}}
- {{ .Content }}
{{ end -}}`

const directiveTemplate = `For each item on the to-do list, derive the answer. Work through the items in order and use
the available tools where needed. When every item is answered, reply with the final answer to:
{{ .Request | trim | quote }}`

// Data is passed to every template.
type Data struct {
	Request string
	Steps   []tasks.Step
}

// Renderer holds the parsed templates.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses the default templates, replacing those named in overrides.
func NewRenderer(overrides map[string]string) (*Renderer, error) {
	sources := map[string]string{
		NamePlanner:   plannerTemplate,
		NamePlanAck:   planAckTemplate,
		NameDirective: directiveTemplate,
	}
	for name, text := range overrides {
		if _, ok := sources[name]; !ok {
			return nil, errors.Errorf("unknown prompt template %q", name)
		}
		if text != "" {
			sources[name] = text
		}
	}

	r := &Renderer{templates: map[string]*template.Template{}}
	for name, text := range sources {
		t, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(text)
		if err != nil {
			return nil, errors.Wrapf(err, "parse prompt template %s", name)
		}
		r.templates[name] = t
	}
	return r, nil
}

var defaultRenderer = func() *Renderer {
	r, err := NewRenderer(nil)
	if err != nil {
		panic(err)
	}
	return r
}()

// Default returns the renderer with the built-in templates.
func Default() *Renderer {
	return defaultRenderer
}

func (r *Renderer) render(name string, data Data) (string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", errors.Errorf("unknown prompt template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render prompt template %s", name)
	}
	return buf.String(), nil
}

// PlannerInstruction asks the engine for a possibly empty task list.
func (r *Renderer) PlannerInstruction(request string) (string, error) {
	return r.render(NamePlanner, Data{Request: request})
}

// PlanAcknowledgement is the assistant turn recording the generated plan.
func (r *Renderer) PlanAcknowledgement(list tasks.List) (string, error) {
	return r.render(NamePlanAck, Data{Steps: list.Items})
}

// StepDirective is the user turn asking the engine to work through the plan.
func (r *Renderer) StepDirective(request string, list tasks.List) (string, error) {
	return r.render(NameDirective, Data{Request: request, Steps: list.Items})
}
