package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/harvest-keeper/internal/apperror"
)

// Tracer starts spans on the global provider.
type Tracer interface {
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
}

// Span is the subset of trace.Span the modules use.
type Span interface {
	SetAttributes(values ...attribute.KeyValue)
	NoticeError(err error)
	Ok(description string)
	End(options ...trace.SpanEndOption)
}

type openTracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer backed by the global OTEL provider.
func NewTracer(name string) Tracer {
	return &openTracer{otel.Tracer(name)}
}

func (t *openTracer) StartSpanFromContext(
	ctx context.Context, name string, opts ...trace.SpanStartOption,
) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, &traceSpan{span}
}

type traceSpan struct {
	span trace.Span
}

func (t *traceSpan) SetAttributes(values ...attribute.KeyValue) {
	t.span.SetAttributes(values...)
}

// NoticeError records err, tags the span with its error code and marks it failed.
func (t *traceSpan) NoticeError(err error) {
	t.span.RecordError(err)
	t.span.SetAttributes(attribute.String("error.code", string(apperror.CodeOf(err))))
	t.span.SetStatus(codes.Error, err.Error())
}

func (t *traceSpan) Ok(description string) {
	t.span.SetStatus(codes.Ok, description)
}

func (t *traceSpan) End(options ...trace.SpanEndOption) {
	t.span.End(options...)
}
