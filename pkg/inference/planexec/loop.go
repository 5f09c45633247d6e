// Package planexec implements the plan-then-execute loop: a planner derives a
// task list once, then the loop alternates between dispatching to the
// reasoning engine and executing the tools it requests until the engine
// answers without tool calls.
package planexec

import (
	"context"

	"github.com/go-go-golems/planexec/pkg/events"
	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/go-go-golems/planexec/pkg/inference/state"
	"github.com/go-go-golems/planexec/pkg/inference/toolcontext"
	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/go-go-golems/planexec/pkg/prompts"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SnapshotHook observes a copy of the state after each phase.
type SnapshotHook func(ctx context.Context, phase Phase, s *state.State)

// Loop is configured once and may run many requests concurrently; every run
// owns its own State.
type Loop struct {
	eng      engine.Engine
	registry tools.ToolRegistry
	loopCfg  LoopConfig
	toolCfg  tools.ToolConfig
	executor tools.ToolExecutor
	prompts  *prompts.Renderer
	sinks    []events.EventSink

	snapshotHook SnapshotHook
}

type Option func(*Loop)

func New(opts ...Option) *Loop {
	l := &Loop{
		loopCfg: DefaultLoopConfig(),
		toolCfg: tools.DefaultToolConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func WithEngine(eng engine.Engine) Option {
	return func(l *Loop) { l.eng = eng }
}

func WithRegistry(reg tools.ToolRegistry) Option {
	return func(l *Loop) { l.registry = reg }
}

func WithLoopConfig(cfg LoopConfig) Option {
	return func(l *Loop) { l.loopCfg = cfg }
}

func WithToolConfig(cfg tools.ToolConfig) Option {
	return func(l *Loop) { l.toolCfg = cfg }
}

// WithExecutor replaces the tool executor built from the tool config.
func WithExecutor(exec tools.ToolExecutor) Option {
	return func(l *Loop) { l.executor = exec }
}

func WithPrompts(r *prompts.Renderer) Option {
	return func(l *Loop) { l.prompts = r }
}

// WithEventSinks adds sinks receiving the events of every run.
func WithEventSinks(sinks ...events.EventSink) Option {
	return func(l *Loop) { l.sinks = append(l.sinks, sinks...) }
}

func WithSnapshotHook(h SnapshotHook) Option {
	return func(l *Loop) { l.snapshotHook = h }
}

// Result is the outcome of a successful run.
type Result struct {
	RunID       string
	Answer      string
	State       *state.State
	Transitions []Phase
	Iterations  int
}

// Answer runs request and returns only the final answer.
func (l *Loop) Answer(ctx context.Context, request string) (string, error) {
	res, err := l.Run(ctx, request)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

type run struct {
	id          string
	st          *state.State
	transitions []Phase
	hook        SnapshotHook
}

func (r *run) enter(ctx context.Context, p Phase) {
	r.transitions = append(r.transitions, p)
	if r.hook != nil {
		r.hook(ctx, p, r.st.Snapshot())
	}
}

func (r *run) fail(ctx context.Context, phase Phase, err error) error {
	log.Error().Err(err).Str("run_id", r.id).Str("phase", string(phase)).Msg("planexec: run failed")
	events.PublishEventToContext(ctx, events.NewErrorEvent(events.EventMetadataFromContext(ctx), err))
	return &RunError{RunID: r.id, Phase: phase, Err: err, State: r.st.Snapshot()}
}

// Run executes one plan-then-execute run over a fresh State.
//
// Unrecovered failures are returned as *RunError. Engine failures while
// dispatching are not failures: they end the run with an error-shaped answer.
func (l *Loop) Run(ctx context.Context, request string) (*Result, error) {
	if l == nil {
		return nil, errors.New("planexec loop is nil")
	}
	if l.eng == nil {
		return nil, errors.New("planexec loop engine is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	maxIterations := l.loopCfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultLoopConfig().MaxIterations
	}
	if l.loopCfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.loopCfg.Timeout)
		defer cancel()
	}

	r := &run{id: uuid.NewString(), st: state.New(request), hook: l.snapshotHook}

	md := events.EventMetadataFromContext(ctx)
	md.RunID = r.id
	ctx = events.WithEventMetadata(ctx, md)
	ctx = events.WithEventSinks(ctx, l.sinks...)
	ctx = toolcontext.WithRegistry(ctx, l.registry)

	logger := log.With().Str("run_id", r.id).Logger()
	logger.Debug().Int("max_iterations", maxIterations).Dur("timeout", l.loopCfg.Timeout).Msg("planexec: run started")

	// PLANNING
	r.enter(ctx, PhasePlanning)
	planner, err := NewPlanner(l.eng, l.prompts)
	if err != nil {
		return nil, r.fail(ctx, PhasePlanning, errors.Wrap(ErrPlanning, err.Error()))
	}
	upd, err := planner.Plan(ctx, request)
	if err != nil {
		if cerr := contextError(ctx); cerr != nil {
			return nil, r.fail(ctx, PhasePlanning, cerr)
		}
		return nil, r.fail(ctx, PhasePlanning, errors.Wrap(ErrPlanning, err.Error()))
	}
	state.Reduce(r.st, upd)

	eng, err := l.boundEngine()
	if err != nil {
		return nil, r.fail(ctx, PhaseDispatching, err)
	}
	dispatcher := NewDispatcher(eng, l.loopCfg.SystemPrompt)
	executor := NewExecutor(l.toolExecutor(), l.registry, l.toolCfg.ToolErrorHandling)

	for iteration := 1; ; iteration++ {
		// no DISPATCHING transition for an iteration that never runs
		if iteration > maxIterations {
			logger.Warn().Int("max_iterations", maxIterations).Msg("planexec: iteration budget exceeded")
			return nil, r.fail(ctx, PhaseDispatching, errors.Wrapf(ErrBudgetExceeded, "%d dispatches", maxIterations))
		}
		r.enter(ctx, PhaseDispatching)
		if cerr := contextError(ctx); cerr != nil {
			return nil, r.fail(ctx, PhaseDispatching, cerr)
		}

		md.Iteration = iteration
		iterCtx := events.WithEventMetadata(ctx, md)

		logger.Debug().Int("iteration", iteration).Msg("planexec: dispatching")
		state.Reduce(r.st, dispatcher.Dispatch(iterCtx, r.st))

		// a cancelled context surfaces as a fail-soft message; report it as such
		if cerr := contextError(ctx); cerr != nil {
			return nil, r.fail(iterCtx, PhaseDispatching, cerr)
		}

		latest, _ := r.st.LastMessage()
		next, answer := Route(&latest)
		if next == PhaseTerminated {
			r.enter(iterCtx, PhaseTerminated)
			events.PublishEventToContext(iterCtx, events.NewFinalEvent(md, answer))
			logger.Debug().Int("iterations", iteration).Msg("planexec: run terminated")
			return &Result{
				RunID:       r.id,
				Answer:      answer,
				State:       r.st.Snapshot(),
				Transitions: append([]Phase(nil), r.transitions...),
				Iterations:  iteration,
			}, nil
		}

		r.enter(iterCtx, PhaseExecuting)
		upd, err := executor.Execute(iterCtx, r.st)
		state.Reduce(r.st, upd)
		if err != nil {
			if cerr := contextError(ctx); cerr != nil {
				err = cerr
			}
			return nil, r.fail(iterCtx, PhaseExecuting, err)
		}
	}
}

func (l *Loop) boundEngine() (engine.Engine, error) {
	specs := tools.ToolSpecs(l.registry, l.toolCfg)
	eng, ok, err := engine.BindTools(l.eng, specs)
	if err != nil {
		return nil, errors.Wrap(err, "bind tools")
	}
	if !ok && len(specs) > 0 {
		log.Warn().Int("tools", len(specs)).Msg("planexec: engine cannot bind tools, it will not request any")
	}
	return eng, nil
}

func (l *Loop) toolExecutor() tools.ToolExecutor {
	if l.executor != nil {
		return l.executor
	}
	return tools.NewBaseToolExecutor(l.toolCfg)
}
