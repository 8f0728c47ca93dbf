package emit

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer() (*OTelEmitter, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewOTelEmitter(tp.Tracer("duraflow-test")), recorder
}

func TestOTelEmitterCreatesSpan(t *testing.T) {
	emitter, recorder := newTestTracer()

	emitter.Emit(Event{
		ExecutionID: "e1",
		SourceID:    "charge_ab",
		Type:        "TASK_STARTED",
		Name:        "charge",
	})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "TASK_STARTED" {
		t.Errorf("expected span named TASK_STARTED, got %q", span.Name())
	}

	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["duraflow.execution_id"] != "e1" {
		t.Errorf("missing execution id attribute: %v", attrs)
	}
	if attrs["duraflow.source_id"] != "charge_ab" {
		t.Errorf("missing source id attribute: %v", attrs)
	}
	if attrs["duraflow.name"] != "charge" {
		t.Errorf("missing name attribute: %v", attrs)
	}
}

func TestOTelEmitterMetadataAttributes(t *testing.T) {
	emitter, recorder := newTestTracer()

	emitter.Emit(Event{
		ExecutionID: "e1",
		Type:        "TASK_RETRY_STARTED",
		Name:        "charge",
		Meta: map[string]interface{}{
			"attempt": 2,
			"backoff": 2.5,
			"final":   false,
		},
	})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	keys := map[string]bool{}
	for _, kv := range spans[0].Attributes() {
		keys[string(kv.Key)] = true
	}
	for _, want := range []string{"duraflow.attempt", "duraflow.backoff", "duraflow.final"} {
		if !keys[want] {
			t.Errorf("expected metadata attribute %s, got %v", want, keys)
		}
	}
}

func TestOTelEmitterBatch(t *testing.T) {
	emitter, recorder := newTestTracer()

	events := []Event{
		{ExecutionID: "e1", Type: "WORKFLOW_STARTED", Name: "order"},
		{ExecutionID: "e1", Type: "TASK_STARTED", Name: "charge"},
		{ExecutionID: "e1", Type: "TASK_COMPLETED", Name: "charge"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch failed: %v", err)
	}

	if got := len(recorder.Ended()); got != 3 {
		t.Errorf("expected 3 spans, got %d", got)
	}
}
