package flow

import (
	"errors"
	"fmt"
	"time"
)

// ErrContextNotFound is returned by ContextStore.Get when no execution
// context exists for the requested execution id.
var ErrContextNotFound = errors.New("execution context not found")

// ErrWorkflowNotFound is returned by catalog lookups when no workflow
// is registered under the requested name.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrNoEngine indicates user code invoked a task or helper outside a
// running workflow, where no engine handle is available.
var ErrNoEngine = errors.New("no active workflow execution")

// ExecutionError wraps an unhandled error escaping a task body.
//
// Task failures are delivered into the workflow function as an
// *ExecutionError so the workflow may catch (inspect with errors.As)
// and continue, or propagate. An ExecutionError escaping the workflow
// function is recorded as WORKFLOW_FAILED by the engine envelope.
type ExecutionError struct {
	// TaskName is the logical name of the failing task.
	TaskName string

	// SourceID is the stable invocation id of the failing task.
	SourceID string

	// Inner is the underlying user error.
	Inner error
}

func (e *ExecutionError) Error() string {
	if e.TaskName != "" {
		return "task " + e.TaskName + ": " + e.Inner.Error()
	}
	return e.Inner.Error()
}

// Unwrap returns the wrapped user error.
func (e *ExecutionError) Unwrap() error { return e.Inner }

// RetryError is raised when a task exhausts its retry budget with no
// fallback configured. It carries the retry metadata so callers and
// the event log can reconstruct the attempt history.
type RetryError struct {
	// Cause is the error from the final attempt.
	Cause error

	// Attempts is the number of retries performed (excluding the
	// initial call).
	Attempts int

	// Delay is the base delay between attempts.
	Delay time.Duration

	// Backoff is the multiplicative backoff factor.
	Backoff float64
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Cause)
}

// Unwrap returns the error from the final attempt.
func (e *RetryError) Unwrap() error { return e.Cause }

// ExecutionTimeoutError is raised when a task or workflow attempt
// exceeds its wall-clock budget.
type ExecutionTimeoutError struct {
	// Kind is "task" or "workflow".
	Kind string

	// Name is the logical name of the timed-out unit.
	Name string

	// SourceID is the invocation id of the timed-out unit.
	SourceID string

	// Timeout is the exceeded budget.
	Timeout time.Duration
}

func (e *ExecutionTimeoutError) Error() string {
	return fmt.Sprintf("%s %s exceeded timeout of %v", e.Kind, e.Name, e.Timeout)
}

// PauseSignal is the control signal raised by Pause. It is not a
// failure: the engine envelope traps it, emits WORKFLOW_PAUSED, and
// returns the paused context to the caller. Workflow code should
// propagate it unchanged (return the error from the pause call).
type PauseSignal struct {
	// Reference names the pause point; it is the WORKFLOW_PAUSED
	// payload and the handle a resume call refers to.
	Reference string

	// WaitForInput marks pauses that expect the resume call to carry
	// a fresh workflow input.
	WaitForInput bool
}

func (e *PauseSignal) Error() string {
	return "workflow paused at " + e.Reference
}

// IsPause reports whether err is (or wraps) a pause control signal.
func IsPause(err error) bool {
	var ps *PauseSignal
	return errors.As(err, &ps)
}
