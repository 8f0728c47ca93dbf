package flow

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// ExecutionContext is the durable record of one workflow run: identity,
// immutable input, and the ordered, append-only event list every
// observable step flows through.
//
// The context is owned by the engine driving it. Within one run the
// workflow function is single-threaded and cooperative, but parallel
// task groups append from multiple goroutines, so every event append
// is serialized on an internal mutex. Events are never mutated or
// deleted once appended.
//
// Derived predicates (Started, Finished, Succeeded, Failed, Paused,
// Resumed) are computed from the event list; the context carries no
// separate status field that could drift from the log.
type ExecutionContext struct {
	mu sync.Mutex

	executionID string
	name        string
	input       json.RawMessage
	events      []ExecutionEvent
}

// NewExecutionContext creates the context for a fresh run with a
// generated execution id.
func NewExecutionContext(name string, input json.RawMessage) *ExecutionContext {
	return &ExecutionContext{
		executionID: uuid.NewString(),
		name:        name,
		input:       input,
	}
}

// RestoreExecutionContext rebuilds a context from persisted state.
// Used by ContextStore implementations; the event slice is adopted,
// not copied.
func RestoreExecutionContext(executionID, name string, input json.RawMessage, events []ExecutionEvent) *ExecutionContext {
	return &ExecutionContext{
		executionID: executionID,
		name:        name,
		input:       input,
		events:      events,
	}
}

// ExecutionID returns the globally unique id of this run. It is stable
// across pauses, resumes, and replays.
func (c *ExecutionContext) ExecutionID() string { return c.executionID }

// Name returns the workflow logical name (the catalog key).
func (c *ExecutionContext) Name() string { return c.name }

// Input returns the serialized workflow input. Immutable after
// creation except for pause-with-input resumes, which rewrite it via
// setInput before the run re-enters the scheduler.
func (c *ExecutionContext) Input() json.RawMessage { return c.input }

// BindInput unmarshals the workflow input into v.
func (c *ExecutionContext) BindInput(v any) error {
	if len(c.input) == 0 {
		return nil
	}
	return json.Unmarshal(c.input, v)
}

func (c *ExecutionContext) setInput(input json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = input
}

// Events returns a snapshot copy of the event list.
func (c *ExecutionContext) Events() []ExecutionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ExecutionEvent, len(c.events))
	copy(out, c.events)
	return out
}

// EventCount returns the current length of the event list.
func (c *ExecutionContext) EventCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Append adds an event to the log. Appends are serialized; events are
// never reordered.
func (c *ExecutionContext) Append(ev ExecutionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// AppendIfAbsent appends ev unless an event with the same
// (source_id, type) pair already exists. It reports whether the event
// was appended. This mirrors the store's dedup key and keeps envelope
// events (WORKFLOW_STARTED, terminal events) idempotent under replay.
func (c *ExecutionContext) AppendIfAbsent(ev ExecutionEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.SourceID == ev.SourceID && e.Type == ev.Type {
			return false
		}
	}
	c.events = append(c.events, ev)
	return true
}

// Started reports whether a WORKFLOW_STARTED event has been recorded.
func (c *ExecutionContext) Started() bool {
	return c.anyEvent(func(e ExecutionEvent) bool { return e.Type == WorkflowStarted })
}

// Finished reports whether the run has reached a terminal event.
func (c *ExecutionContext) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.events)
	return n > 0 && c.events[n-1].Type.IsTerminal()
}

// Succeeded reports whether the run finished with WORKFLOW_COMPLETED.
func (c *ExecutionContext) Succeeded() bool {
	return c.Finished() && c.anyEvent(func(e ExecutionEvent) bool { return e.Type == WorkflowCompleted })
}

// Failed reports whether the run finished with WORKFLOW_FAILED.
func (c *ExecutionContext) Failed() bool {
	return c.Finished() && c.anyEvent(func(e ExecutionEvent) bool { return e.Type == WorkflowFailed })
}

// Paused reports whether the run is currently paused: the count of
// WORKFLOW_PAUSED events exceeds WORKFLOW_RESUMED by one.
func (c *ExecutionContext) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	paused, resumed := 0, 0
	for _, e := range c.events {
		switch e.Type {
		case WorkflowPaused:
			paused++
		case WorkflowResumed:
			resumed++
		}
	}
	return paused == resumed+1
}

// Resumed reports whether the most recent envelope transition was a
// resume (the run is active again after a pause).
func (c *ExecutionContext) Resumed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		switch c.events[i].Type {
		case WorkflowResumed:
			return true
		case WorkflowPaused:
			return false
		}
	}
	return false
}

// Output returns the value of the terminal workflow event, or nil when
// the run has not finished.
func (c *ExecutionContext) Output() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Type.IsTerminal() {
			return e.Value
		}
	}
	return nil
}

// BindOutput unmarshals the terminal value into v. Returns false when
// the run has no terminal event yet.
func (c *ExecutionContext) BindOutput(v any) (bool, error) {
	out := c.Output()
	if out == nil {
		return false, nil
	}
	return true, json.Unmarshal(out, v)
}

func (c *ExecutionContext) anyEvent(match func(ExecutionEvent) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if match(e) {
			return true
		}
	}
	return false
}

// Summary is the external, event-free view of a context, returned by
// the HTTP façade for execute calls.
type Summary struct {
	ExecutionID string          `json:"execution_id"`
	Name        string          `json:"name"`
	Input       json.RawMessage `json:"input,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Finished    bool            `json:"finished"`
	Succeeded   bool            `json:"succeeded"`
	Failed      bool            `json:"failed"`
	Paused      bool            `json:"paused"`
}

// Summarize builds the external summary view.
func (c *ExecutionContext) Summarize() Summary {
	return Summary{
		ExecutionID: c.executionID,
		Name:        c.name,
		Input:       c.input,
		Output:      c.Output(),
		Finished:    c.Finished(),
		Succeeded:   c.Succeeded(),
		Failed:      c.Failed(),
		Paused:      c.Paused(),
	}
}

// MarshalJSON serializes the full context including events, the shape
// served by the inspect endpoint.
func (c *ExecutionContext) MarshalJSON() ([]byte, error) {
	c.mu.Lock()
	events := make([]ExecutionEvent, len(c.events))
	copy(events, c.events)
	c.mu.Unlock()
	return json.Marshal(struct {
		ExecutionID string           `json:"execution_id"`
		Name        string           `json:"name"`
		Input       json.RawMessage  `json:"input,omitempty"`
		Output      json.RawMessage  `json:"output,omitempty"`
		Events      []ExecutionEvent `json:"events"`
	}{
		ExecutionID: c.executionID,
		Name:        c.name,
		Input:       c.input,
		Output:      c.Output(),
		Events:      events,
	})
}
