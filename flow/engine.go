package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/duraflow-go/flow/emit"
	"golang.org/x/sync/errgroup"
)

// WorkflowCatalog resolves workflow names to definitions. The engine
// consults it for name-based execution (the HTTP and CLI surfaces) and
// for sub-workflow calls.
type WorkflowCatalog interface {
	// Lookup returns the workflow registered under name, or an error
	// wrapping ErrWorkflowNotFound.
	Lookup(name string) (*Workflow, error)
}

// Engine drives durable workflow execution: it owns the envelope
// events around each run, the replay oracle, and the shared services
// (store, cache, secrets, output storage, observability) task
// invocations draw on.
//
// An Engine is safe for concurrent use; each Run drives an independent
// execution context.
//
// Example:
//
//	engine := flow.NewEngine(
//	    flow.WithStore(store),
//	    flow.WithEmitter(emit.NewLogEmitter(nil, false)),
//	)
//	ec, err := engine.Run(ctx, wf, map[string]any{"user": "ada"})
type Engine struct {
	store          ContextStore
	emitter        emit.Emitter
	cache          Cache
	secrets        SecretManager
	storage        OutputStorage
	catalog        WorkflowCatalog
	metrics        *PrometheusMetrics
	admission      *admissionGate
	maxWorkers     int
	defaultTimeout time.Duration
	retryAttempts  int
	retryDelay     time.Duration
	retryBackoff   float64
}

// NewEngine creates an Engine with the given options. Zero-config
// engines work out of the box with an in-memory store and no
// observability.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		store:        NewMemoryStore(),
		emitter:      emit.NewNullEmitter(),
		secrets:      StaticSecrets{},
		storage:      InlineStorage{},
		maxWorkers:   8,
		retryDelay:   time.Second,
		retryBackoff: 2.0,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// runConfig collects per-run options.
type runConfig struct {
	executionID string
	forceReplay bool
}

// RunOption configures a single Run call.
type RunOption func(*runConfig)

// WithExecutionID targets an existing execution: the run resumes or
// replays the stored context instead of starting fresh. Run fails with
// ErrContextNotFound when no such execution exists.
func WithExecutionID(id string) RunOption {
	return func(rc *runConfig) { rc.executionID = id }
}

// WithForceReplay re-drives a finished execution against its own event
// log. Recorded task results are served from the log, so a replay of an
// unchanged workflow leaves the log byte-for-byte identical.
func WithForceReplay() RunOption {
	return func(rc *runConfig) { rc.forceReplay = true }
}

// Run executes the workflow to completion, pause, or failure.
//
// The returned context reflects the run's final state in all three
// cases: inspect Succeeded/Failed/Paused and Output on it. A non-nil
// error reports an engine-level problem only (unknown execution id,
// store failure, unserializable input); workflow-level failure is a
// WORKFLOW_FAILED event in the log, not an error from Run.
//
// Calling Run again with WithExecutionID on a paused execution resumes
// it; input, when non-nil, replaces the workflow input before the run
// re-enters (pause-with-input). Calling it on a finished execution
// returns the stored context untouched unless WithForceReplay is set.
func (e *Engine) Run(ctx context.Context, wf *Workflow, input any, opts ...RunOption) (*ExecutionContext, error) {
	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}

	rawInput, err := marshalInput(input)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow input: %w", err)
	}

	ec, err := e.loadOrCreate(ctx, wf.name, rawInput, rc)
	if err != nil {
		return nil, err
	}

	if ec.Finished() && !rc.forceReplay {
		return ec, nil
	}

	resuming := ec.Paused()
	if resuming && rawInput != nil {
		ec.setInput(rawInput)
	}

	c := &Ctx{
		stdctx: ctx,
		ec:     ec,
		eng:    e,
		oracle: newReplayLog(ec.Events()),
	}

	wfSourceID := workflowSourceID(wf.name, ec.ExecutionID())
	if resuming {
		pauseSID := lastPauseSourceID(ec)
		c.record(NewEvent(WorkflowResumed, pauseSID, wf.name, ec.Input()))
	} else {
		c.recordIfAbsent(NewEvent(WorkflowStarted, wfSourceID, wf.name, ec.Input()))
	}
	if err := e.store.Save(ctx, ec); err != nil {
		return ec, fmt.Errorf("persist execution context: %w", err)
	}

	result, runErr := e.invoke(c, wf)

	switch {
	case runErr != nil && IsPause(runErr):
		ps := asPause(runErr)
		sid, _ := TaskID("pause", ps.Reference)
		c.recordIfAbsent(NewEvent(WorkflowPaused, sid, wf.name, PauseValue{
			Reference:    ps.Reference,
			WaitForInput: ps.WaitForInput,
		}))
	case runErr != nil:
		c.recordIfAbsent(NewEvent(WorkflowFailed, wfSourceID, wf.name, failureValueOf(runErr)))
	default:
		payload, perr := e.storeOutput(ctx, wf, wfSourceID, result)
		if perr != nil {
			c.recordIfAbsent(NewEvent(WorkflowFailed, wfSourceID, wf.name, failureValueOf(perr)))
		} else {
			c.recordIfAbsent(NewEvent(WorkflowCompleted, wfSourceID, wf.name, payload))
		}
	}

	if err := e.store.Save(ctx, ec); err != nil {
		return ec, fmt.Errorf("persist execution context: %w", err)
	}
	return ec, nil
}

// Execute resolves a workflow by name through the catalog and runs it.
// This is the entry point behind the HTTP and CLI surfaces.
func (e *Engine) Execute(ctx context.Context, name string, input any, opts ...RunOption) (*ExecutionContext, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("execute %q: %w", name, ErrWorkflowNotFound)
	}
	wf, err := e.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, wf, input, opts...)
}

// Inspect loads the stored execution context for an execution id.
func (e *Engine) Inspect(ctx context.Context, executionID string) (*ExecutionContext, error) {
	return e.store.Get(ctx, executionID)
}

// Map runs the workflow once per input, concurrently, bounded by the
// engine's worker cap. Results are returned in input order; the first
// engine-level error cancels outstanding runs.
func (e *Engine) Map(ctx context.Context, wf *Workflow, inputs []any) ([]*ExecutionContext, error) {
	results := make([]*ExecutionContext, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)
	for i, input := range inputs {
		g.Go(func() error {
			ec, err := e.Run(gctx, wf, input)
			if err != nil {
				return err
			}
			results[i] = ec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// invoke drives the workflow function under its timeout budget,
// recovering panics into errors so a panicking body records
// WORKFLOW_FAILED instead of crashing the engine.
func (e *Engine) invoke(c *Ctx, wf *Workflow) (any, error) {
	timeout := wf.timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	if timeout <= 0 {
		return callSafely(func() (any, error) { return wf.fn(c) })
	}
	return callWithTimeout(c, timeout, &ExecutionTimeoutError{
		Kind:     "workflow",
		Name:     wf.name,
		SourceID: workflowSourceID(wf.name, c.ExecutionID()),
		Timeout:  timeout,
	}, func(tc *Ctx) (any, error) { return wf.fn(tc) })
}

func (e *Engine) loadOrCreate(ctx context.Context, name string, input json.RawMessage, rc runConfig) (*ExecutionContext, error) {
	if rc.executionID == "" {
		return NewExecutionContext(name, input), nil
	}
	return e.store.Get(ctx, rc.executionID)
}

// storeOutput serializes a workflow result and routes it through the
// effective output storage under the workflow source id.
func (e *Engine) storeOutput(ctx context.Context, wf *Workflow, key string, result any) (json.RawMessage, error) {
	raw := marshalValue(result)
	storage := wf.storage
	if storage == nil {
		storage = e.storage
	}
	if raw == nil || storage == nil {
		return raw, nil
	}
	return storage.Store(ctx, key, raw)
}

// observe forwards a freshly appended event to the emitter and metrics.
func (e *Engine) observe(executionID string, ev ExecutionEvent) {
	if e.metrics != nil {
		e.metrics.observe(ev)
	}
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(emit.Event{
		ExecutionID: executionID,
		SourceID:    ev.SourceID,
		Type:        string(ev.Type),
		Name:        ev.Name,
	})
}

func marshalInput(input any) (json.RawMessage, error) {
	if input == nil {
		return nil, nil
	}
	if raw, ok := input.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(input)
}

// lastPauseSourceID finds the source id of the most recent
// WORKFLOW_PAUSED event; the matching WORKFLOW_RESUMED references it.
func lastPauseSourceID(ec *ExecutionContext) string {
	events := ec.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == WorkflowPaused {
			return events[i].SourceID
		}
	}
	return ""
}

func asPause(err error) *PauseSignal {
	var ps *PauseSignal
	if errors.As(err, &ps) {
		return ps
	}
	return &PauseSignal{}
}
