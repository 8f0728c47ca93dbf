package emit

// Emitter receives observability events from workflow execution.
//
// Implementations should be:
//   - Non-blocking: never slow down workflow execution
//   - Thread-safe: parallel task branches emit concurrently
//   - Resilient: a failing backend must not crash the workflow
//
// Emit must not panic; backend errors are handled internally.
type Emitter interface {
	Emit(event Event)
}

// MultiEmitter fans events out to several emitters in order.
type MultiEmitter []Emitter

// Emit implements Emitter.
func (m MultiEmitter) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
