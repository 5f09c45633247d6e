package engine

import (
	"strings"

	"github.com/pkg/errors"
)

// StructuredOutputMode selects how a provider is asked for a structured reply.
type StructuredOutputMode string

// StructuredOutputModeJSONSchema is the only mode the providers implement.
const StructuredOutputModeJSONSchema StructuredOutputMode = "json_schema"

// StructuredOutputConfig describes the JSON document a RunStructured call
// must produce. Schema is a plain JSON Schema object.
type StructuredOutputConfig struct {
	Mode        StructuredOutputMode `json:"mode,omitempty"`
	Name        string               `json:"name,omitempty"`
	Description string               `json:"description,omitempty"`
	Schema      map[string]any       `json:"schema,omitempty"`
	Strict      *bool                `json:"strict,omitempty"`
}

// StrictOrDefault reports the strict flag, true when unset.
func (c StructuredOutputConfig) StrictOrDefault() bool {
	return c.Strict == nil || *c.Strict
}

// Validate is called by every engine before the request is built.
func (c StructuredOutputConfig) Validate() error {
	if c.Mode != StructuredOutputModeJSONSchema {
		return errors.Errorf("unsupported structured output mode %q", c.Mode)
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("structured output needs a schema name")
	}
	if len(c.Schema) == 0 {
		return errors.Errorf("structured output %q has an empty schema", c.Name)
	}
	return nil
}
