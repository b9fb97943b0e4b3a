package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("reloom-client")

	if cfg.ServiceName != "reloom-client" {
		t.Errorf("expected ServiceName 'reloom-client', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure to be true")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("reloom-client")

	if cfg.ServiceName != "reloom-client" {
		t.Errorf("expected ServiceName 'reloom-client', got %s", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestNewMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	if metrics == nil {
		t.Fatal("expected non-nil metrics")
	}

	ctx := context.Background()
	metrics.RecordRequestStart(ctx)
	metrics.RecordRequestEnd(ctx, "GET", "/designs", "ok", 100*time.Millisecond)
	metrics.RecordMutation(ctx, "like.toggle", "ok", 50*time.Millisecond)
	metrics.RecordError(ctx, "validation", "designs")
}

func TestStartSpanRecordsAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), SpanFeedLoad)
	SetSpanAttribute(ctx, AttrCacheKey, "designs?limit=20")
	SetSpanAttribute(ctx, AttrDurationMs, int64(42))
	SetSpanError(ctx, fmt.Errorf("boom"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Name() != SpanFeedLoad {
		t.Errorf("expected span name %q, got %q", SpanFeedLoad, spans[0].Name())
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected recorded error event on span")
	}
}

func TestOperationContextRoundTrip(t *testing.T) {
	oc := NewOperationContext("like.toggle", "user-1", nil)
	ctx := WithOperationContext(context.Background(), oc)

	got := OperationContextFromContext(ctx)
	if got != oc {
		t.Fatal("expected the same operation context back")
	}
	if got.OperationName != "like.toggle" {
		t.Errorf("OperationName = %q", got.OperationName)
	}
	if OperationContextFromContext(context.Background()) != nil {
		t.Error("expected nil for empty context")
	}
}

func TestOperationContextEndOperation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	oc := NewOperationContext("design.create", "user-1", nil)
	ctx, span := oc.StartSpanForOperation(context.Background(), SpanMutation)
	oc.EndOperation(ctx, span, "error", fmt.Errorf("boom"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected recorded error event on span")
	}
}
