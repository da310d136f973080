package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exporter
}

func TestStartPipelineSpan(t *testing.T) {
	tp, exporter := newTestProvider(t)

	ctx, span := StartPipelineSpan(context.Background(), tp.Tracer("test"), "update", "pipeline1")
	Annotate(ctx, attribute.Int("http.status_code", 200))
	Finish(span, nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name != "pipeline.update" {
		t.Errorf("unexpected span name %q", s.Name)
	}
	if s.Status.Code != codes.Ok {
		t.Errorf("expected ok status, got %v", s.Status.Code)
	}
	found := map[string]bool{}
	for _, attr := range s.Attributes {
		found[string(attr.Key)] = true
	}
	if !found["pipeline.name"] || !found["http.status_code"] {
		t.Errorf("missing attributes, got %v", s.Attributes)
	}
}

func TestFinishRecordsError(t *testing.T) {
	tp, exporter := newTestProvider(t)

	_, span := StartPipelineSpan(context.Background(), tp.Tracer("test"), "get", "p")
	Finish(span, errors.New("boom"))

	s := exporter.GetSpans()[0]
	if s.Status.Code != codes.Error || s.Status.Description != "boom" {
		t.Errorf("unexpected status %+v", s.Status)
	}
	if len(s.Events) == 0 {
		t.Error("expected an exception event")
	}
}
