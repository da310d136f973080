package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func installInMemory(t *testing.T, cfg Config) *tracetest.InMemoryExporter {
	t.Helper()
	previous := otel.GetTracerProvider()
	exporter := tracetest.NewInMemoryExporter()
	p, err := install(context.Background(), cfg, sdktrace.WithSyncer(exporter))
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	t.Cleanup(func() {
		_ = p.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})
	return exporter
}

func TestDefaultConfigTargetsLocalCollector(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Endpoint != "localhost:4318" || !cfg.Insecure {
		t.Errorf("expected insecure localhost:4318, got %+v", cfg)
	}
	if cfg.ServiceName != "pipelineapi" {
		t.Errorf("unexpected service name %q", cfg.ServiceName)
	}
}

func TestInstalledProviderExportsPipelineSpans(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceVersion = "1.2.3"
	exporter := installInMemory(t, cfg)

	_, span := StartPipelineSpan(context.Background(), nil, "update", "pipeline1")
	Finish(span, nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Resource.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["service.name"] != "pipelineapi" || attrs["service.version"] != "1.2.3" {
		t.Errorf("unexpected resource %v", attrs)
	}
}

func TestSampler(t *testing.T) {
	params := sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		Name:          "pipeline.get",
	}
	for _, rate := range []float64{0, 1, 2} {
		if got := sampler(rate).ShouldSample(params).Decision; got != sdktrace.RecordAndSample {
			t.Errorf("rate %v: expected every trace sampled, got %v", rate, got)
		}
	}
	if got := sampler(0.01).ShouldSample(params).Decision; got != sdktrace.Drop {
		t.Errorf("expected a high trace id to be dropped at 1%%, got %v", got)
	}
}

func TestShutdownWithoutProvider(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
