package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name of service spans
const TracerName = "customer-service"

// Span attribute keys
const (
	AttrCustomerID      = attribute.Key("customer.id")
	AttrVersion         = attribute.Key("customer.version")
	AttrCriteria        = attribute.Key("customer.criteria")
	AttrResults         = attribute.Key("customer.results")
	AttrPatchOperations = attribute.Key("customer.patch_operations")
	AttrCacheHit        = attribute.Key("cache.hit")
	AttrErrorCode       = attribute.Key("error.code")
)

func CustomerID(id string) attribute.KeyValue { return AttrCustomerID.String(id) }
func Version(v int) attribute.KeyValue        { return AttrVersion.Int(v) }
func CriteriaCount(n int) attribute.KeyValue  { return AttrCriteria.Int(n) }
func ResultCount(n int) attribute.KeyValue    { return AttrResults.Int(n) }
func PatchOperations(n int) attribute.KeyValue {
	return AttrPatchOperations.Int(n)
}
func CacheHit(hit bool) attribute.KeyValue { return AttrCacheHit.Bool(hit) }

// StartServiceSpan starts an internal span named {service}.{method}, e.g.
// "customer.update", from the global provider. The caller ends it with EndSpan.
func StartServiceSpan(ctx context.Context, service, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, service+"."+method, opts...)
}

// Annotate adds attrs to the span carried by ctx, if any
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attrs...)
}

// EndSpan ends span. A non-nil err marks it failed and, when code is set,
// labels it with the error code.
func EndSpan(span trace.Span, err error, code string) {
	if span == nil {
		return
	}
	defer span.End()
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if code != "" {
		span.SetAttributes(AttrErrorCode.String(code))
	}
}
