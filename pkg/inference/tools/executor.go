package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-go-golems/planexec/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type currentToolCallKey struct{}

// WithCurrentToolCall annotates context with the current tool call for executor hook consumers.
func WithCurrentToolCall(ctx context.Context, call ToolCall) context.Context {
	return context.WithValue(ctx, currentToolCallKey{}, call)
}

// CurrentToolCallFromContext returns the current tool call if available.
func CurrentToolCallFromContext(ctx context.Context) (ToolCall, bool) {
	if ctx == nil {
		return ToolCall{}, false
	}
	call, ok := ctx.Value(currentToolCallKey{}).(ToolCall)
	return call, ok
}

// ToolExecutor executes a single tool call against a registry.
type ToolExecutor interface {
	ExecuteToolCall(ctx context.Context, call ToolCall, registry ToolRegistry) (*ToolResult, error)
}

// ToolExecutorExt defines lifecycle hooks that can be overridden.
type ToolExecutorExt interface {
	// PreExecute may mutate the call (e.g., inject auth) or reject it.
	PreExecute(ctx context.Context, call ToolCall, registry ToolRegistry) (ToolCall, error)

	// IsAllowed adds authorization beyond AllowedTools in config.
	IsAllowed(ctx context.Context, call ToolCall) bool

	// MaskArguments returns a compact and masked JSON string for event payloads.
	MaskArguments(ctx context.Context, call ToolCall) string

	PublishStart(ctx context.Context, call ToolCall, maskedArgs string)
	PublishResult(ctx context.Context, call ToolCall, result *ToolResult)

	// ShouldRetry decides retry and backoff after a failed attempt.
	ShouldRetry(ctx context.Context, attempt int, res *ToolResult) (retry bool, backoff time.Duration)
}

// BaseToolExecutor hosts orchestration and default hook implementations.
type BaseToolExecutor struct {
	ToolExecutorExt // self reference used for dynamic dispatch
	config          ToolConfig
}

func NewBaseToolExecutor(cfg ToolConfig) *BaseToolExecutor {
	b := &BaseToolExecutor{config: cfg}
	b.ToolExecutorExt = b // default to self; outer types overwrite this
	return b
}

var _ ToolExecutorExt = (*BaseToolExecutor)(nil)
var _ ToolExecutor = (*BaseToolExecutor)(nil)

func (b *BaseToolExecutor) Config() ToolConfig {
	return b.config
}

func (b *BaseToolExecutor) PreExecute(_ context.Context, call ToolCall, _ ToolRegistry) (ToolCall, error) {
	return call, nil
}

func (b *BaseToolExecutor) IsAllowed(_ context.Context, call ToolCall) bool {
	return b.config.IsToolAllowed(call.Name)
}

func (b *BaseToolExecutor) MaskArguments(_ context.Context, call ToolCall) string {
	if len(call.Arguments) == 0 {
		return ""
	}
	var tmp any
	if err := json.Unmarshal(call.Arguments, &tmp); err == nil {
		if bts, err2 := json.Marshal(tmp); err2 == nil {
			return string(bts)
		}
	}
	return string(call.Arguments)
}

func (b *BaseToolExecutor) PublishStart(ctx context.Context, call ToolCall, masked string) {
	events.PublishEventToContext(ctx, events.NewToolCallExecuteEvent(
		events.EventMetadataFromContext(ctx),
		events.ToolCall{ID: call.ID, Name: call.Name, Input: masked},
	))
}

func (b *BaseToolExecutor) PublishResult(ctx context.Context, call ToolCall, res *ToolResult) {
	events.PublishEventToContext(ctx, events.NewToolCallResultEvent(
		events.EventMetadataFromContext(ctx),
		events.ToolResult{ID: call.ID, Name: call.Name, Result: res.Text(), IsError: res.Failed()},
	))
}

func (b *BaseToolExecutor) ShouldRetry(_ context.Context, attempt int, res *ToolResult) (bool, time.Duration) {
	if b.config.ToolErrorHandling != ToolErrorRetry {
		return false, 0
	}
	if attempt >= b.config.RetryConfig.MaxRetries {
		return false, 0
	}
	// a tool that does not exist or is not allowed will not appear on retry
	var te *ToolError
	if res != nil && errors.As(res.Err, &te) && (te.Type == "not_found" || te.Type == "not_allowed") {
		return false, 0
	}
	return true, b.config.RetryConfig.Backoff(attempt)
}

// ExecuteToolCall resolves and runs one call. Tool failures are reported in
// the ToolResult; the returned error is only set when ctx was cancelled.
func (b *BaseToolExecutor) ExecuteToolCall(ctx context.Context, call ToolCall, registry ToolRegistry) (*ToolResult, error) {
	start := time.Now()

	var err error
	call, err = b.ToolExecutorExt.PreExecute(ctx, call, registry)
	if err != nil {
		return b.failed(call, "execution", err, start), nil
	}
	ctx = WithCurrentToolCall(ctx, call)

	var def *ToolDefinition
	if registry == nil {
		err = errors.Wrapf(ErrToolNotFound, "%q", call.Name)
	} else {
		def, err = registry.GetTool(call.Name)
	}
	if err != nil {
		res := b.failed(call, "not_found", err, start)
		b.ToolExecutorExt.PublishResult(ctx, call, res)
		return res, nil
	}
	if !b.ToolExecutorExt.IsAllowed(ctx, call) {
		res := b.failed(call, "not_allowed", errors.Errorf("tool not allowed: %s", call.Name), start)
		b.ToolExecutorExt.PublishResult(ctx, call, res)
		return res, nil
	}

	b.ToolExecutorExt.PublishStart(ctx, call, b.ToolExecutorExt.MaskArguments(ctx, call))

	var result *ToolResult
	for attempt := 0; ; attempt++ {
		result = b.executeOnce(ctx, call, def)
		result.Retries = attempt
		if !result.Failed() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		retry, backoff := b.ToolExecutorExt.ShouldRetry(ctx, attempt, result)
		if !retry {
			break
		}
		log.Debug().
			Str("tool", call.Name).
			Str("tool_call_id", call.ID).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Str("error", result.Error).
			Msg("tools: retrying tool call")
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
	}

	result.ID = call.ID
	result.Name = call.Name
	result.Duration = time.Since(start)

	b.ToolExecutorExt.PublishResult(ctx, call, result)

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

func (b *BaseToolExecutor) failed(call ToolCall, kind string, err error, start time.Time) *ToolResult {
	te := &ToolError{ToolName: call.Name, ToolID: call.ID, Type: kind, Message: err.Error(), cause: err}
	return &ToolResult{
		ID:       call.ID,
		Name:     call.Name,
		Error:    err.Error(),
		Err:      te,
		Duration: time.Since(start),
	}
}

func (b *BaseToolExecutor) executeOnce(ctx context.Context, call ToolCall, def *ToolDefinition) *ToolResult {
	select {
	case <-ctx.Done():
		return &ToolResult{Error: "execution cancelled", Err: ctx.Err()}
	default:
	}

	callCtx := ctx
	if b.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.config.ExecutionTimeout)
		defer cancel()
	}

	out, err := invokeRecovering(callCtx, call, def)
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			te.ToolName = call.Name
			te.ToolID = call.ID
		} else {
			te = &ToolError{ToolName: call.Name, ToolID: call.ID, Type: "execution", Message: err.Error(), cause: err}
			if errors.Is(err, context.DeadlineExceeded) {
				te.Type = "timeout"
			}
		}
		return &ToolResult{Error: err.Error(), Err: te}
	}

	res, err := ToResult(def.ResultKind, out)
	if err != nil {
		return &ToolResult{
			Error: err.Error(),
			Err:   &ToolError{ToolName: call.Name, ToolID: call.ID, Type: "validation", Message: err.Error(), cause: err},
		}
	}
	return &ToolResult{Result: res}
}

// invokeRecovering runs the tool function and turns a panic into an
// execution error.
func invokeRecovering(ctx context.Context, call ToolCall, def *ToolDefinition) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("tool", call.Name).
				Str("tool_call_id", call.ID).
				Interface("panic", r).
				Msg("tool panicked")
			out = nil
			err = &ToolError{
				ToolName: call.Name,
				ToolID:   call.ID,
				Type:     "execution",
				Message:  fmt.Sprintf("tool panicked: %v", r),
			}
		}
	}()
	return def.Function.ExecuteWithContext(ctx, call.Arguments)
}
