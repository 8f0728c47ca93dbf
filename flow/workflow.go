package flow

import "time"

// WorkflowFunc is the body of a workflow: orchestration-only code that
// calls tasks, helpers, and sub-workflows through the Ctx. The returned
// value becomes the WORKFLOW_COMPLETED payload.
//
// Bodies must be deterministic with respect to the event log: no
// wall-clock reads, random draws, or direct I/O outside task calls and
// the Now/UUID/RandomInt helpers. Violations do not fail fast; they
// corrupt replay.
type WorkflowFunc func(c *Ctx) (any, error)

// Workflow is a named, registered workflow definition.
//
// Example:
//
//	wf := flow.NewWorkflow("greeting", func(c *flow.Ctx) (any, error) {
//	    var name string
//	    if err := c.BindInput(&name); err != nil {
//	        return nil, err
//	    }
//	    return sayHello.Call(c, name)
//	})
type Workflow struct {
	name    string
	fn      WorkflowFunc
	timeout time.Duration
	storage OutputStorage
}

// WorkflowOption configures a Workflow at construction.
type WorkflowOption func(*Workflow)

// WithWorkflowTimeout bounds the wall-clock duration of one engine
// entry into the workflow. On expiry the run fails with an
// ExecutionTimeoutError recorded as WORKFLOW_FAILED.
func WithWorkflowTimeout(d time.Duration) WorkflowOption {
	return func(w *Workflow) { w.timeout = d }
}

// WithWorkflowOutputStorage routes the workflow result through an
// output storage backend; the WORKFLOW_COMPLETED payload becomes a
// storage reference.
func WithWorkflowOutputStorage(s OutputStorage) WorkflowOption {
	return func(w *Workflow) { w.storage = s }
}

// NewWorkflow creates a workflow definition.
func NewWorkflow(name string, fn WorkflowFunc, opts ...WorkflowOption) *Workflow {
	w := &Workflow{name: name, fn: fn}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the workflow's logical name (the catalog key).
func (w *Workflow) Name() string { return w.name }
