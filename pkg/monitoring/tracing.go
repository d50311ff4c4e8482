package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	JaegerEndpoint string
	Environment    string
	SamplingRate   float64
}

// TracingManager handles distributed tracing
type TracingManager struct {
	tracer   trace.Tracer
	config   *TracingConfig
	provider *sdktrace.TracerProvider
}

// NewTracingManager creates a new tracing manager exporting to Jaeger
func NewTracingManager(config *TracingConfig) (*TracingManager, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SamplingRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracingManager{
		tracer:   tp.Tracer(config.ServiceName),
		config:   config,
		provider: tp,
	}, nil
}

// NewNoopTracingManager returns a manager whose spans are never recorded.
// Used when tracing is disabled and in tests.
func NewNoopTracingManager() *TracingManager {
	return &TracingManager{
		tracer: trace.NewNoopTracerProvider().Tracer("noop"),
		config: &TracingConfig{},
	}
}

// StartSpan starts a new span
func (tm *TracingManager) StartSpan(ctx context.Context, operationName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, operationName, opts...)
}

// StartOperationSpan starts a span for a dispatched operation
func (tm *TracingManager) StartOperationSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, "operation."+operation,
		trace.WithAttributes(attribute.String("operation.name", operation)),
	)
}

// StartBlockchainSpan starts a span for ledger calls
func (tm *TracingManager) StartBlockchainSpan(ctx context.Context, chaincode, function, kind string) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("blockchain.%s.%s", chaincode, function)
	return tm.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("blockchain.network", "hyperledger-fabric"),
			attribute.String("blockchain.chaincode", chaincode),
			attribute.String("blockchain.function", function),
			attribute.String("blockchain.kind", kind),
		),
	)
}

// RecordError records an error in the span
func (tm *TracingManager) RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Shutdown flushes and stops the tracing provider
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}
	return tm.provider.Shutdown(ctx)
}

// TraceIDFromContext extracts trace ID from context
func (tm *TracingManager) TraceIDFromContext(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
