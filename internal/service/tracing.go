package service

import (
	"context"
	"fmt"

	"github.com/netspeed/speedlog/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// startSpan creates a new span for a service operation
func startSpan(ctx context.Context, operationName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := observability.Tracer().Start(ctx, operationName)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// endSpan records err (if any) and ends the span
func endSpan(span trace.Span, err error, msg string) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("%s: %v", msg, err))
	} else {
		span.SetStatus(codes.Ok, msg)
	}
	span.End()
}
