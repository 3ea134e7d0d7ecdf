// Package tracing wires OpenTelemetry spans around the dispatch hot path:
// one span per mediation and one per winning actor's test/run pair.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mandel59/comunica/pkg/actor"
)

const tracerName = "github.com/mandel59/comunica"

// Init installs a global tracer provider exporting to stdout. Returns a
// shutdown function that flushes pending spans.
func Init(serviceName string) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter: %w", err)
	}
	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(serviceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Actor wraps an actor so its Test and Run calls each produce a span.
// Identifier reporting is delegated, so routing is unaffected.
func Actor[A, T, O any](inner actor.Actor[A, T, O]) actor.Actor[A, T, O] {
	return &tracedActor[A, T, O]{
		inner:  inner,
		tracer: otel.Tracer(tracerName),
	}
}

type tracedActor[A, T, O any] struct {
	inner  actor.Actor[A, T, O]
	tracer trace.Tracer
}

func (t *tracedActor[A, T, O]) Name() string {
	return t.inner.Name()
}

func (t *tracedActor[A, T, O]) Identifiers() actor.Identifier {
	return actor.IdentifiersOf(t.inner)
}

func (t *tracedActor[A, T, O]) Test(ctx context.Context, action A) (T, error) {
	ctx, span := t.tracer.Start(ctx, "actor.test",
		trace.WithAttributes(attribute.String("actor.name", t.inner.Name())))
	defer span.End()

	result, err := t.inner.Test(ctx, action)
	recordOutcome(span, err)
	return result, err
}

func (t *tracedActor[A, T, O]) Run(ctx context.Context, action A) (O, error) {
	ctx, span := t.tracer.Start(ctx, "actor.run",
		trace.WithAttributes(attribute.String("actor.name", t.inner.Name())))
	defer span.End()

	out, err := t.inner.Run(ctx, action)
	recordOutcome(span, err)
	return out, err
}

// Dispatch wraps a mediation function in a span named after the bus.
func Dispatch[A, O any](busName string, fn func(context.Context, A) (O, error)) func(context.Context, A) (O, error) {
	tracer := otel.Tracer(tracerName)
	return func(ctx context.Context, action A) (O, error) {
		ctx, span := tracer.Start(ctx, "mediate",
			trace.WithAttributes(attribute.String("bus.name", busName)))
		defer span.End()

		out, err := fn(ctx, action)
		recordOutcome(span, err)
		return out, err
	}
}

func recordOutcome(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
