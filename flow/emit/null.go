package emit

// NullEmitter discards all events. It is the default emitter when
// observability is not configured, and useful in benchmarks to measure
// engine overhead without emission cost.
type NullEmitter struct{}

// NewNullEmitter creates an emitter that discards everything.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

// Emit implements Emitter by doing nothing.
func (*NullEmitter) Emit(Event) {}
