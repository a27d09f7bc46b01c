package otelx

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
)

// propagator is fixed rather than taken from otel.GetTextMapPropagator so
// that trace context crosses asynchronous boundaries even when no SDK is set up.
var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Propagate writes the trace context and baggage of ctx into carrier.
// A nil carrier is ignored.
func Propagate(ctx context.Context, carrier map[string]string) {
	if ctx == nil || carrier == nil {
		return
	}
	propagator.Inject(ctx, propagation.MapCarrier(carrier))
}

// Extract returns ctx enriched with the trace context and baggage found in carrier.
func Extract(ctx context.Context, carrier map[string]string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(carrier) == 0 {
		return ctx
	}
	return propagator.Extract(ctx, propagation.MapCarrier(carrier))
}

// Propagator returns the propagator used by Propagate and Extract, for
// instrumentation that takes one explicitly.
func Propagator() propagation.TextMapPropagator {
	return propagator
}
