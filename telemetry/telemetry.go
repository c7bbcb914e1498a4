// Package telemetry bootstraps OpenTelemetry tracing, mirroring
// go-core/telemetry's OTLP-exporter-plus-resource shape. Every teacher app
// guards initialization behind an OTEL_EXPORTER_OTLP_ENDPOINT check and
// runs with a no-op tracer otherwise; cmd/neatoo-server does the same.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer bootstraps a TracerProvider with an OTLP/gRPC span exporter
// targeting endpoint and installs it as the global provider. The caller
// must defer tp.Shutdown(ctx) to flush pending spans.
func InitTracer(ctx context.Context, serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the named tracer from the globally installed provider —
// a no-op tracer if InitTracer was never called, which is the expected
// path for local development without an OTLP collector configured.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
