// Package emit provides observability event delivery for Duraflow-Go.
package emit

// Event is an observability record mirroring one execution-log event
// or engine-level occurrence.
//
// These events are telemetry, not durability: the execution log owns
// correctness, and emitters may buffer, sample, or drop. Emitters can:
//   - Log to stdout/stderr (LogEmitter)
//   - Bridge to OpenTelemetry spans (OTelEmitter)
//   - Buffer for batch export (BufferedEmitter)
//   - Discard (NullEmitter)
type Event struct {
	// ExecutionID identifies the workflow run that emitted this event.
	ExecutionID string

	// SourceID identifies the emitting workflow or task invocation.
	SourceID string

	// Type is the execution event kind (WORKFLOW_STARTED, TASK_COMPLETED, ...)
	// or an engine-level marker such as "ENGINE_ERROR".
	Type string

	// Name is the logical workflow or task name.
	Name string

	// Msg is a human-readable description.
	Msg string

	// Meta carries additional structured data. Common keys:
	//   - "attempt": retry attempt number
	//   - "duration_ms": execution duration in milliseconds
	//   - "error": error details
	//   - "reference": pause reference
	Meta map[string]interface{}
}
