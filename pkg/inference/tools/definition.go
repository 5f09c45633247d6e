package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-go-golems/planexec/pkg/conversation"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ToolDefinition represents a tool that can be called by the reasoning engine.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	// ResultKind selects how the executor interprets and renders the output.
	ResultKind ResultKind `json:"result_kind"`
	Function   ToolFunc   `json:"-"`
	Tags       []string   `json:"tags,omitempty"`
}

// Spec returns the engine-facing description of the tool.
func (d ToolDefinition) Spec() engine.ToolSpec {
	return engine.ToolSpec{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
	}
}

type ToolOption func(*ToolDefinition)

// WithResultKind declares the kind of result the tool returns.
func WithResultKind(kind ResultKind) ToolOption {
	return func(d *ToolDefinition) {
		d.ResultKind = kind
	}
}

func WithTags(tags ...string) ToolOption {
	return func(d *ToolDefinition) {
		d.Tags = append(d.Tags, tags...)
	}
}

// ToolFunc wraps the actual function with validation and fast execution
type ToolFunc struct {
	Fn          interface{}                                        `json:"-"`
	executorCtx func(context.Context, []byte) (interface{}, error) `json:"-"`
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// NewToolFromFunc creates a ToolDefinition from a Go function. Supported
// signatures are func(Input), func(context.Context), func(context.Context, Input)
// and the zero-argument form, each returning (Result) or (Result, error).
func NewToolFromFunc(name, description string, fn interface{}, opts ...ToolOption) (*ToolDefinition, error) {
	funcType := reflect.TypeOf(fn)
	if funcType == nil || funcType.Kind() != reflect.Func {
		return nil, errors.New("provided value is not a function")
	}

	if funcType.NumOut() == 0 || funcType.NumOut() > 2 {
		return nil, errors.New("function must return (result) or (result, error)")
	}
	if funcType.NumOut() == 2 && !funcType.Out(1).Implements(errorType) {
		return nil, errors.New("second return value must be an error")
	}

	schema, err := generateSchemaFromFunc(funcType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate schema")
	}

	def := &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		ResultKind:  ResultKindText,
		Function: ToolFunc{
			Fn:          fn,
			executorCtx: createExecutorWithContext(fn, funcType),
		},
	}
	for _, o := range opts {
		o(def)
	}
	return def, nil
}

// NewToolFromJSONFunc creates a ToolDefinition for a tool whose arguments are
// described by an externally supplied schema, such as a remote MCP tool.
func NewToolFromJSONFunc(
	name, description string,
	schema *jsonschema.Schema,
	fn func(ctx context.Context, args json.RawMessage) (interface{}, error),
	opts ...ToolOption,
) (*ToolDefinition, error) {
	if fn == nil {
		return nil, errors.New("tool function cannot be nil")
	}
	if schema == nil {
		schema = &jsonschema.Schema{Type: "object"}
	}
	def := &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		ResultKind:  ResultKindText,
		Function: ToolFunc{
			Fn: fn,
			executorCtx: func(ctx context.Context, args []byte) (interface{}, error) {
				if len(args) == 0 {
					args = []byte("{}")
				}
				return fn(ctx, args)
			},
		},
	}
	for _, o := range opts {
		o(def)
	}
	return def, nil
}

// ExecuteWithContext executes the tool function with the JSON arguments.
func (tf *ToolFunc) ExecuteWithContext(ctx context.Context, args []byte) (interface{}, error) {
	if tf.executorCtx == nil {
		return nil, errors.New("tool function not properly initialized")
	}
	return tf.executorCtx(ctx, args)
}

// Execute calls the tool function with a background context.
func (tf *ToolFunc) Execute(args []byte) (interface{}, error) {
	return tf.ExecuteWithContext(context.Background(), args)
}

// ToolCall represents a request to execute a tool
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// NewToolCall converts the call requested by the engine into an executable call.
func NewToolCall(c conversation.ToolCall) (ToolCall, error) {
	args, err := c.ArgumentsJSON()
	if err != nil {
		return ToolCall{}, errors.Wrapf(err, "encode arguments of %s", c.Name)
	}
	return ToolCall{ID: c.ID, Name: c.Name, Arguments: args}, nil
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Result   Result        `json:"result"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Retries  int           `json:"retries,omitempty"`

	// Err keeps the underlying failure for errors.Is checks.
	Err error `json:"-"`
}

// Failed reports whether the call did not produce a usable result.
func (r *ToolResult) Failed() bool {
	return r == nil || r.Error != ""
}

// Text renders the result for a tool message. Failures render as "Error: <detail>".
func (r *ToolResult) Text() string {
	if r == nil {
		return "Error: no result"
	}
	if r.Error != "" {
		return "Error: " + r.Error
	}
	return r.Result.Render()
}

// ToolError represents an error that occurred during tool execution
type ToolError struct {
	ToolName string `json:"tool_name"`
	ToolID   string `json:"tool_id,omitempty"`
	Type     string `json:"type"` // "validation", "execution", "timeout", "not_found", "not_allowed"
	Message  string `json:"message"`
	cause    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error [%s] %s: %s", e.Type, e.ToolName, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.cause
}

// generateSchemaFromFunc creates a JSON schema from a function's parameters
func generateSchemaFromFunc(funcType reflect.Type) (*jsonschema.Schema, error) {
	var inputType reflect.Type
	switch funcType.NumIn() {
	case 0:
		return &jsonschema.Schema{Type: "object"}, nil
	case 1:
		if funcType.In(0) == contextType {
			return &jsonschema.Schema{Type: "object"}, nil
		}
		inputType = funcType.In(0)
	case 2:
		if funcType.In(0) != contextType {
			return nil, errors.New("two-arg tool function must be (context.Context, Input)")
		}
		inputType = funcType.In(1)
	default:
		return nil, errors.New("function must take exactly one parameter (Input) or (context.Context, Input)")
	}

	inputInstance := reflect.New(inputType).Elem().Interface()

	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs
		DoNotReference: true,
	}
	schema := reflector.Reflect(inputInstance)

	// Ensure the root schema has type "object" for provider compatibility
	if schema.Type == "" && schema.Ref == "" {
		schema.Type = "object"
	}

	return schema, nil
}

// createExecutorWithContext returns an executor that passes context when supported by the function signature.
func createExecutorWithContext(fn interface{}, funcType reflect.Type) func(context.Context, []byte) (interface{}, error) {
	funcValue := reflect.ValueOf(fn)
	return func(ctx context.Context, args []byte) (interface{}, error) {
		log.Trace().
			Str("func_type", funcType.String()).
			Int("args_len", len(args)).
			Msg("tools: executing function")

		decode := func(in reflect.Type) (reflect.Value, error) {
			input := reflect.New(in).Interface()
			if len(args) == 0 {
				args = []byte("{}")
			}
			if err := json.Unmarshal(args, input); err != nil {
				return reflect.Value{}, &ToolError{
					Type:    "validation",
					Message: fmt.Sprintf("failed to unmarshal arguments: %v", err),
					cause:   err,
				}
			}
			return reflect.ValueOf(input).Elem(), nil
		}

		switch funcType.NumIn() {
		case 0:
			return extractResults(funcValue.Call([]reflect.Value{}))
		case 1:
			in := funcType.In(0)
			if in == contextType {
				return extractResults(funcValue.Call([]reflect.Value{reflect.ValueOf(ctx)}))
			}
			v, err := decode(in)
			if err != nil {
				return nil, err
			}
			return extractResults(funcValue.Call([]reflect.Value{v}))
		case 2:
			v, err := decode(funcType.In(1))
			if err != nil {
				return nil, err
			}
			return extractResults(funcValue.Call([]reflect.Value{reflect.ValueOf(ctx), v}))
		default:
			return nil, errors.Errorf("unsupported tool function signature: %s", funcType)
		}
	}
}

// extractResults extracts the result and error from function call results
func extractResults(results []reflect.Value) (interface{}, error) {
	switch len(results) {
	case 1:
		return results[0].Interface(), nil
	case 2:
		result := results[0].Interface()
		errInterface := results[1].Interface()
		if errInterface == nil {
			return result, nil
		}
		if err, ok := errInterface.(error); ok {
			return result, err
		}
		return result, errors.Errorf("unexpected error type: %T", errInterface)
	default:
		return nil, errors.Errorf("unexpected number of return values: %d", len(results))
	}
}
