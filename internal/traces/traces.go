// Package traces wires OpenTelemetry spans around the marketplace services.
//
// Tracing is opt-in: without an OTLP endpoint every span is a no-op, so
// callers instrument unconditionally and pay nothing in development.
package traces

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	scopeName      = "github.com/mintora/mintora"
	serviceName    = "mintora"
	serviceVersion = "0.1.0"
)

// Init installs the global tracer provider, exporting over OTLP/gRPC to
// endpoint. An empty endpoint leaves the default no-op provider in place.
// The returned function flushes and stops the provider.
func Init(ctx context.Context, endpoint string, logger *slog.Logger) (func(context.Context) error, error) {
	if endpoint == "" {
		logger.Info("tracing disabled (no OTEL_EXPORTER_OTLP_ENDPOINT set)")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Info("tracing enabled", "endpoint", endpoint)
	return provider.Shutdown, nil
}

// StartSpan opens a span named name on the package tracer. Callers must
// End the returned span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(scopeName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// Attribute constructors shared across services so span keys stay uniform.

func AccountAddr(addr string) attribute.KeyValue { return attribute.String("account.addr", addr) }
func Amount(amount string) attribute.KeyValue    { return attribute.String("amount", amount) }
func OrderID(id string) attribute.KeyValue       { return attribute.String("order.id", id) }
func TransferID(id string) attribute.KeyValue    { return attribute.String("transfer.id", id) }
func NFTID(id string) attribute.KeyValue         { return attribute.String("nft.id", id) }
func TicketID(id string) attribute.KeyValue      { return attribute.String("ticket.id", id) }
