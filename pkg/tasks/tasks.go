// Package tasks holds the task list a plan-then-execute run works through.
//
// A List is created once per run by the planner and is afterwards only ever
// replaced as a whole by a task-list tool. Nothing in this package advances
// a step's status on its own.
package tasks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// statusTodo is the literal older planners emit for a pending step.
const statusTodo = "todo"

// ParseStatus maps a status literal to a Status. The empty string and "todo"
// are read as pending.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", statusTodo, string(StatusPending):
		return StatusPending, nil
	case string(StatusInProgress), "in-progress":
		return StatusInProgress, nil
	case string(StatusDone):
		return StatusDone, nil
	default:
		return "", errors.Errorf("unknown step status %q", s)
	}
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// Step is a single entry of a task list.
type Step struct {
	Content string `json:"step" yaml:"step" jsonschema_description:"An item on the to-do list that needs to be completed."`
	Status  Status `json:"status" yaml:"status" jsonschema:"enum=pending,enum=in_progress,enum=done" jsonschema_description:"The status of the item."`
}

// NewStep returns a pending step.
func NewStep(content string) Step {
	return Step{Content: content, Status: StatusPending}
}

func (s *Step) UnmarshalJSON(b []byte) error {
	var raw struct {
		Content string `json:"step"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	status, err := ParseStatus(raw.Status)
	if err != nil {
		return err
	}
	s.Content = raw.Content
	s.Status = status
	return nil
}

// List is the ordered task list. Order is informational priority only.
type List struct {
	Items []Step `json:"todo" yaml:"todo" jsonschema_description:"The to-do list, that is, a list of items to be completed. Leave it empty for simple questions."`
}

func NewList(steps ...Step) List {
	return List{Items: append([]Step(nil), steps...)}
}

func (l List) Len() int {
	return len(l.Items)
}

func (l List) IsEmpty() bool {
	return len(l.Items) == 0
}

// Clone returns a list that shares no backing array with l.
func (l List) Clone() List {
	if l.Items == nil {
		return List{}
	}
	return List{Items: append([]Step(nil), l.Items...)}
}

func (l List) Validate() error {
	for i, s := range l.Items {
		if strings.TrimSpace(s.Content) == "" {
			return errors.Errorf("step %d has no content", i)
		}
		if !s.Status.IsValid() {
			return errors.Errorf("step %d has invalid status %q", i, s.Status)
		}
	}
	return nil
}

// Bullets renders each step as "- <content> [<status>]", one per line.
func (l List) Bullets() string {
	lines := make([]string, 0, len(l.Items))
	for _, s := range l.Items {
		lines = append(lines, fmt.Sprintf("- %s [%s]", s.Content, s.Status))
	}
	return strings.Join(lines, "\n")
}

// Report renders each step as "Item: <content> Status: <status>", one per line.
func (l List) Report() string {
	lines := make([]string, 0, len(l.Items))
	for _, s := range l.Items {
		lines = append(lines, fmt.Sprintf("Item: %s Status: %s", s.Content, s.Status))
	}
	return strings.Join(lines, "\n")
}

// Schema returns the JSON schema of a List as a plain map, suitable for
// provider structured-output configuration.
func Schema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(&List{})
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "marshal task list schema")
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "decode task list schema")
	}
	// providers reject the meta keys in strict mode
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}
