// Package tracing starts OpenTelemetry spans around a single dispatch
// request, shared by the Store Dispatcher and the Provider's request
// executor.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pubsubstore-dispatch")

// Start opens a span named "schema.method" carrying schema and method
// as attributes. The caller must End the returned span.
func Start(ctx context.Context, schemaName, method string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, schemaName+"."+method)
	span.SetAttributes(
		attribute.String("pubsubstore.schema", schemaName),
		attribute.String("pubsubstore.method", method),
	)
	return ctx, span
}

// End records err on span, if any, then ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
