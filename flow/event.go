// Package flow provides the core durable workflow engine for Duraflow-Go.
package flow

import (
	"encoding/json"
	"errors"
	"time"
)

// EventType identifies one kind of ExecutionEvent in the execution log.
//
// The taxonomy is closed: fifteen kinds covering the workflow envelope,
// task framing, retries, fallbacks, and rollbacks. Replay correctness
// depends on these values being stable, so they are persisted as their
// string form and must never be renumbered or renamed.
type EventType string

const (
	// Workflow envelope events.
	WorkflowStarted   EventType = "WORKFLOW_STARTED"
	WorkflowCompleted EventType = "WORKFLOW_COMPLETED"
	WorkflowFailed    EventType = "WORKFLOW_FAILED"
	WorkflowPaused    EventType = "WORKFLOW_PAUSED"
	WorkflowResumed   EventType = "WORKFLOW_RESUMED"

	// Task framing events.
	TaskStarted   EventType = "TASK_STARTED"
	TaskCompleted EventType = "TASK_COMPLETED"
	TaskFailed    EventType = "TASK_FAILED"

	// Retry loop events.
	TaskRetryStarted   EventType = "TASK_RETRY_STARTED"
	TaskRetryCompleted EventType = "TASK_RETRY_COMPLETED"
	TaskRetryFailed    EventType = "TASK_RETRY_FAILED"

	// Fallback events.
	TaskFallbackStarted   EventType = "TASK_FALLBACK_STARTED"
	TaskFallbackCompleted EventType = "TASK_FALLBACK_COMPLETED"

	// Rollback events.
	TaskRollbackStarted   EventType = "TASK_ROLLBACK_STARTED"
	TaskRollbackCompleted EventType = "TASK_ROLLBACK_COMPLETED"
)

// IsTerminal reports whether the event type closes a workflow run.
func (t EventType) IsTerminal() bool {
	return t == WorkflowCompleted || t == WorkflowFailed
}

// IsTaskTerminal reports whether the event type closes a task invocation.
func (t EventType) IsTaskTerminal() bool {
	return t == TaskCompleted || t == TaskFailed
}

// ExecutionEvent is one atomic, append-only record of something
// observable the engine did.
//
// Events are the unit of durability and the unit of replay: a workflow
// replayed against its own event list re-takes the same control-flow
// path without re-executing side-effectful tasks.
//
// The Value payload is heterogeneous JSON: the task input for
// *_STARTED, the return value for *_COMPLETED, a FailureValue for
// *_FAILED, a RetryValue for TASK_RETRY_*, and the pause reference for
// WORKFLOW_PAUSED. Task results routed through an out-of-band
// OutputStorage are stored as a tagged StorageRef instead of the
// literal value.
type ExecutionEvent struct {
	// Type is one of the fifteen event kinds.
	Type EventType `json:"type"`

	// SourceID identifies the emitting entity. For a workflow it is
	// "<name>_<execution_id>"; for a task it is the stable invocation
	// id computed by TaskID. SourceID is the dedup and replay key.
	SourceID string `json:"source_id"`

	// Name is the logical name of the emitting workflow or task.
	Name string `json:"name"`

	// Value is the event payload, serialized as JSON.
	Value json.RawMessage `json:"value,omitempty"`

	// Time is the wall-clock instant the event was produced. It is
	// diagnostic only; ordering and correctness never depend on it.
	Time time.Time `json:"time"`
}

// NewEvent builds an ExecutionEvent, marshaling value to JSON.
// A nil value produces an empty payload. Marshal failures are recorded
// as a FailureValue payload rather than dropped, so the log never
// silently loses an event.
func NewEvent(t EventType, sourceID, name string, value any) ExecutionEvent {
	return ExecutionEvent{
		Type:     t,
		SourceID: sourceID,
		Name:     name,
		Value:    marshalValue(value),
		Time:     time.Now(),
	}
}

func marshalValue(value any) json.RawMessage {
	if value == nil {
		return nil
	}
	if raw, ok := value.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(value)
	if err != nil {
		b, _ = json.Marshal(FailureValue{Message: "unserializable value: " + err.Error()})
	}
	return b
}

// FailureValue is the payload shape for *_FAILED events.
type FailureValue struct {
	// Message is the rendered error text.
	Message string `json:"message"`

	// Kind distinguishes the error family (execution, retry, timeout).
	Kind string `json:"kind,omitempty"`

	// Attempts carries the retry count when Kind is "retry".
	Attempts int `json:"attempts,omitempty"`
}

// RetryValue is the payload shape for TASK_RETRY_* events.
type RetryValue struct {
	Attempt     int     `json:"current_attempt"`
	MaxAttempts int     `json:"max_attempts"`
	Delay       float64 `json:"current_delay"`
	Backoff     float64 `json:"backoff"`
}

// PauseValue is the payload shape for WORKFLOW_PAUSED events.
type PauseValue struct {
	// Reference names the pause point.
	Reference string `json:"reference"`

	// WaitForInput reports whether the resume call is expected to
	// supply a fresh workflow input.
	WaitForInput bool `json:"wait_for_input,omitempty"`
}

// failureValueOf renders an error as a FailureValue payload.
func failureValueOf(err error) FailureValue {
	fv := FailureValue{Message: err.Error(), Kind: "execution"}
	var re *RetryError
	if errors.As(err, &re) {
		fv.Kind = "retry"
		fv.Attempts = re.Attempts
	}
	var te *ExecutionTimeoutError
	if errors.As(err, &te) {
		fv.Kind = "timeout"
	}
	return fv
}
