// Package observability configures OpenTelemetry tracing for the service.
// Spans come from otelgin (HTTP), the GORM tracing plugin (queries) and the
// services layer; all of them use the global provider installed here.
package observability

import (
	"context"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"google.golang.org/grpc/credentials"

	"github.com/tbourn/go-telehealth-backend/internal/config"
)

// ServiceNamespace groups this service's telemetry with its companions.
const ServiceNamespace = "telehealth"

// BuildInfo describes the running binary for the trace resource.
type BuildInfo struct {
	Version     string
	Environment string // APP_ENV
}

// Shutdown flushes pending spans and stops the exporter.
type Shutdown func(context.Context) error

// test seams
var (
	newOTLPClient = otlptracegrpc.NewClient

	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}

	newServiceResourceFn = func(ctx context.Context, serviceName string, info BuildInfo) (*resource.Resource, error) {
		attrs := []resource.Option{
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceNamespace(ServiceNamespace),
				semconv.ServiceVersion(info.Version),
			),
		}
		if info.Environment != "" {
			attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(info.Environment)))
		}
		return resource.New(ctx, attrs...)
	}
)

// SetupOTel installs a batching OTLP/gRPC tracer provider and the W3C
// propagators. When tracing is disabled it changes nothing and returns a
// no-op Shutdown. On error the globals are left untouched.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, info BuildInfo) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	exp, err := newOTLPExporterFn(ctx, newOTLPClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := newServiceResourceFn(ctx, cfg.ServiceName, info)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// clampRatio keeps the sampling ratio in [0, 1]; NaN samples everything.
func clampRatio(r float64) float64 {
	switch {
	case math.IsNaN(r), r > 1:
		return 1
	case r < 0:
		return 0
	default:
		return r
	}
}
