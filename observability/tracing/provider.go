// Package tracing exports spans for pipeline config reads and updates.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config selects the collector and how much of the pipeline traffic is kept.
type Config struct {
	Endpoint       string // collector host:port
	ServiceName    string
	ServiceVersion string
	Insecure       bool
	// SampleRate keeps that share of root traces; values outside (0, 1)
	// keep every trace.
	SampleRate float64
}

func DefaultConfig() Config {
	return Config{
		Endpoint:    "localhost:4318",
		ServiceName: "pipelineapi",
		Insecure:    true,
		SampleRate:  1.0,
	}
}

// Provider is the installed SDK provider. Shutdown flushes spans still
// queued for export.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider exports over OTLP/HTTP to cfg.Endpoint and installs the
// provider globally, so Tracer and the HTTP instrumentation pick it up.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tracing: otlp exporter for %s: %w", cfg.Endpoint, err)
	}
	return install(ctx, cfg, sdktrace.WithBatcher(exporter))
}

func install(ctx context.Context, cfg Config, export sdktrace.TracerProviderOption) (*Provider, error) {
	kv := []resource.Option{resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName))}
	if cfg.ServiceVersion != "" {
		kv = append(kv, resource.WithAttributes(semconv.ServiceVersionKey.String(cfg.ServiceVersion)))
	}
	res, err := resource.New(ctx, kv...)
	if err != nil {
		return nil, fmt.Errorf("tracing: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(export,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	// Incoming traceparent headers continue the caller's trace.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{tp: tp}, nil
}

func sampler(rate float64) sdktrace.Sampler {
	if rate <= 0 || rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
