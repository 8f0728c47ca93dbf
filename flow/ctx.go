package flow

import (
	"context"
	"encoding/json"
)

// Ctx is the workflow-side handle passed into every workflow function.
// It binds together the cancellation context, the durable execution
// context, the replay oracle for this run, and the engine whose
// services (secrets, cache, storage, catalog) task invocations draw on.
//
// A Ctx is scoped to one engine entry into one run. Parallel task
// groups receive branched copies sharing the same execution context and
// oracle; the underlying event append is serialized, so branches may
// record concurrently.
type Ctx struct {
	stdctx  context.Context
	ec      *ExecutionContext
	eng     *Engine
	oracle  *replayLog
	secrets Secrets
}

// Context returns the cancellation context for this run. Task bodies
// doing I/O should thread it through.
func (c *Ctx) Context() context.Context { return c.stdctx }

// ExecutionID returns the run's globally unique id.
func (c *Ctx) ExecutionID() string { return c.ec.ExecutionID() }

// WorkflowName returns the logical name of the running workflow.
func (c *Ctx) WorkflowName() string { return c.ec.Name() }

// Input returns the serialized workflow input.
func (c *Ctx) Input() json.RawMessage { return c.ec.Input() }

// BindInput unmarshals the workflow input into v.
//
// Example:
//
//	var req OrderRequest
//	if err := c.BindInput(&req); err != nil {
//	    return nil, err
//	}
func (c *Ctx) BindInput(v any) error { return c.ec.BindInput(v) }

// Execution returns the underlying durable execution context, for
// inspection (event counts, predicates) from workflow code and tests.
func (c *Ctx) Execution() *ExecutionContext { return c.ec }

// Secret resolves a single secret through the engine's secret manager.
// Secrets resolved this way are never written to the event log.
func (c *Ctx) Secret(name string) (string, error) {
	if c.eng == nil {
		return "", ErrNoEngine
	}
	return c.eng.secrets.GetSecret(c.stdctx, name)
}

// Secrets returns the secret bundle resolved for the current task
// invocation. Empty outside a task that declared secret requirements.
func (c *Ctx) Secrets() Secrets { return c.secrets }

// branch derives a Ctx for a parallel group member. The branch shares
// the execution context and replay oracle; only the cancellation
// context differs.
func (c *Ctx) branch(stdctx context.Context) *Ctx {
	return &Ctx{stdctx: stdctx, ec: c.ec, eng: c.eng, oracle: c.oracle, secrets: c.secrets}
}

// withSecrets derives a Ctx carrying a resolved secret bundle for one
// task invocation.
func (c *Ctx) withSecrets(secrets Secrets) *Ctx {
	return &Ctx{stdctx: c.stdctx, ec: c.ec, eng: c.eng, oracle: c.oracle, secrets: secrets}
}

// record appends an event to the execution log, folds it into the
// replay oracle, and forwards it to the engine's observers (emitter,
// metrics).
func (c *Ctx) record(ev ExecutionEvent) {
	c.ec.Append(ev)
	if c.oracle != nil {
		c.oracle.observe(ev)
	}
	if c.eng != nil {
		c.eng.observe(c.ec.ExecutionID(), ev)
	}
}

// recordIfAbsent appends unless an event with the same (source_id,
// type) already exists, reporting whether it appended. Observers see
// only genuinely new events.
func (c *Ctx) recordIfAbsent(ev ExecutionEvent) bool {
	if !c.ec.AppendIfAbsent(ev) {
		return false
	}
	if c.oracle != nil {
		c.oracle.observe(ev)
	}
	if c.eng != nil {
		c.eng.observe(c.ec.ExecutionID(), ev)
	}
	return true
}

// persist flushes the current context to the engine's store. Task
// terminal events call this so progress survives a crash between
// tasks; failures here surface as engine errors, not task errors.
func (c *Ctx) persist() error {
	if c.eng == nil {
		return nil
	}
	return c.eng.store.Save(c.stdctx, c.ec)
}
