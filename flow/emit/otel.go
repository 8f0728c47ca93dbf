package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating OpenTelemetry spans.
//
// Each event becomes a span with:
//   - Span name: the event type (e.g. "TASK_COMPLETED")
//   - Attributes: execution id, source id, name, and all Meta fields
//   - Status: error when event.Meta["error"] is set
//
// Events are points in time rather than durations, so every span is
// ended immediately; durability timing lives in the execution log, not
// the trace.
//
// Usage:
//
//	tracer := otel.Tracer("duraflow-go")
//	emitter := emit.NewOTelEmitter(tracer)
//	engine := flow.NewEngine(flow.WithEmitter(emitter))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an emitter that bridges events to the given
// OpenTelemetry tracer.
//
// Example:
//
//	tracer := otel.Tracer("duraflow-go")
//	emitter := emit.NewOTelEmitter(tracer)
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and immediately ends a span for the event.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Type)
	defer span.End()

	o.addStandardAttributes(span, event)
	o.addMetadataAttributes(span, event.Meta)

	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

// EmitBatch creates spans for multiple events under one context,
// letting the span processor batch the export.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Type)

		o.addStandardAttributes(span, event)
		o.addMetadataAttributes(span, event.Meta)

		if errMsg, ok := event.Meta["error"].(string); ok {
			span.SetStatus(codes.Error, errMsg)
			span.RecordError(fmt.Errorf("%s", errMsg))
		}

		span.End()
	}
	return nil
}

// Flush forces export of pending spans. Call before shutdown so the
// batch span processor drains to the backend.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()

	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) addStandardAttributes(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("duraflow.execution_id", event.ExecutionID),
		attribute.String("duraflow.source_id", event.SourceID),
		attribute.String("duraflow.name", event.Name),
	)
	if event.Msg != "" {
		span.SetAttributes(attribute.String("duraflow.msg", event.Msg))
	}
}

// addMetadataAttributes converts event metadata to span attributes.
// Common scalar types convert directly; time.Duration becomes
// milliseconds; everything else falls back to its string form.
func (o *OTelEmitter) addMetadataAttributes(span trace.Span, meta map[string]interface{}) {
	if meta == nil {
		return
	}

	for key, value := range meta {
		attrKey := "duraflow." + key
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
