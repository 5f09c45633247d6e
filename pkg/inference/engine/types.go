package engine

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ToolSpec is the provider-facing description of a tool the engine may request.
type ToolSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// ParametersMap returns the parameter schema as a plain map, defaulting to an
// empty object schema.
func (t ToolSpec) ParametersMap() (map[string]any, error) {
	out := map[string]any{}
	if t.Parameters == nil {
		out["type"] = "object"
		out["properties"] = map[string]any{}
		return out, nil
	}
	b, err := json.Marshal(t.Parameters)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

// ToolChoice defines how the model should choose tools
type ToolChoice string

// ToolChoiceAuto lets the model decide; the loop never forces a tool.
const ToolChoiceAuto ToolChoice = "auto"
