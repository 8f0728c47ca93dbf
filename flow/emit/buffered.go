package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory.
//
// Events are organized by execution id for efficient retrieval and
// filtering, which makes this emitter the natural choice for tests and
// for the monitor endpoint's recent-activity view.
//
// Warning: all events are kept in memory. For long-running deployments
// with high event volume, prefer LogEmitter or OTelEmitter, or call
// Clear periodically.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	engine := flow.NewEngine(flow.WithEmitter(emitter))
//
//	engine.Run(ctx, wf, input)
//
//	all := emitter.GetHistory(executionID)
//	failures := emitter.GetHistoryWithFilter(executionID, emit.HistoryFilter{Type: "TASK_FAILED"})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // executionID -> events
}

// HistoryFilter specifies criteria for filtering execution history.
//
// All fields are optional. When multiple fields are set, they combine
// with AND logic.
type HistoryFilter struct {
	SourceID string // Filter by source id (empty = no filter)
	Type     string // Filter by event type (empty = no filter)
	Name     string // Filter by workflow/task name (empty = no filter)
}

// NewBufferedEmitter creates an emitter that stores all events in
// memory. Safe for concurrent use.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.ExecutionID] = append(b.events[event.ExecutionID], event)
}

// GetHistory retrieves all events for an execution id, in emission
// order. Returns an empty slice when no events exist.
func (b *BufferedEmitter) GetHistory(executionID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[executionID]
	if events == nil {
		return []Event{}
	}

	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// GetHistoryWithFilter retrieves events for an execution id matching
// the filter. All set conditions must match. Returns an empty slice
// when nothing matches.
func (b *BufferedEmitter) GetHistoryWithFilter(executionID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[executionID]
	if events == nil {
		return []Event{}
	}

	if filter.SourceID == "" && filter.Type == "" && filter.Name == "" {
		result := make([]Event, len(events))
		copy(result, events)
		return result
	}

	var result []Event
	for _, event := range events {
		if !matchesFilter(event, filter) {
			continue
		}
		result = append(result, event)
	}

	if result == nil {
		return []Event{}
	}
	return result
}

func matchesFilter(event Event, filter HistoryFilter) bool {
	if filter.SourceID != "" && event.SourceID != filter.SourceID {
		return false
	}
	if filter.Type != "" && event.Type != filter.Type {
		return false
	}
	if filter.Name != "" && event.Name != filter.Name {
		return false
	}
	return true
}

// Clear removes stored events. A non-empty executionID clears that
// execution only; an empty executionID clears everything.
func (b *BufferedEmitter) Clear(executionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if executionID == "" {
		b.events = make(map[string][]Event)
	} else {
		delete(b.events, executionID)
	}
}
