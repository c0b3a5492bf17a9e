package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tbourn/go-changingroom-backend/internal/config"
)

// withGlobals restores the otel globals and the package seams after the test.
func withGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	dial, describe := dialExporter, describeService
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
		dialExporter, describeService = dial, describe
	})
}

// memoryExporter swaps the OTLP exporter for an in-memory one.
func memoryExporter(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	dialExporter = func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
		return exp, nil
	}
	return exp
}

func enabled(name string) config.OTELConfig {
	return config.OTELConfig{Enabled: true, Insecure: true, Endpoint: "localhost:4317", ServiceName: name, SampleRatio: 1}
}

func TestSetupOTel_DisabledLeavesGlobals(t *testing.T) {
	withGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Endpoint: "ignored:4317"}, "v0")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("tracer provider replaced while disabled")
	}
}

func TestSetupOTel_ExportsSpansWithServiceResource(t *testing.T) {
	withGlobals(t)
	exp := memoryExporter(t)

	shutdown, err := SetupOTel(context.Background(), enabled("room-api"), "v1.4.0")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	_, span := otel.Tracer("sessions").Start(context.Background(), "SessionService.Open")
	span.End()

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	if !ok {
		t.Fatalf("global provider is %T", otel.GetTracerProvider())
	}
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "SessionService.Open" {
		t.Fatalf("exported spans = %+v", spans)
	}
	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Resource.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	if attrs["service.name"] != "room-api" || attrs["service.version"] != "v1.4.0" || attrs["service.namespace"] != serviceNamespace {
		t.Fatalf("resource attributes = %v", attrs)
	}
}

func TestSetupOTel_PropagatesTraceContext(t *testing.T) {
	withGlobals(t)
	memoryExporter(t)

	shutdown, err := SetupOTel(context.Background(), enabled("room-api"), "v1")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := otel.Tracer("test").Start(context.Background(), "outbound")
	defer span.End()
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if carrier.Get("traceparent") == "" {
		t.Fatalf("traceparent not injected: %v", carrier)
	}
}

func TestSetupOTel_RealExporterDialsLazily(t *testing.T) {
	withGlobals(t)

	for _, insecure := range []bool{true, false} {
		cfg := enabled("room-api")
		cfg.Insecure = insecure
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		shutdown, err := SetupOTel(ctx, cfg, "v1")
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		_ = shutdown(context.Background())
	}
}

func TestSetupOTel_Failures(t *testing.T) {
	cases := []struct {
		name  string
		patch func()
	}{
		{"exporter", func() {
			dialExporter = func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
				return nil, errors.New("dial refused")
			}
		}},
		{"resource", func() {
			dialExporter = func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
				return tracetest.NewInMemoryExporter(), nil
			}
			describeService = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("bad resource")
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			withGlobals(t)
			before := otel.GetTracerProvider()
			tc.patch()

			if _, err := SetupOTel(context.Background(), enabled("room-api"), "v1"); err == nil {
				t.Fatal("expected error")
			}
			if otel.GetTracerProvider() != before {
				t.Fatal("tracer provider replaced on failure")
			}
		})
	}
}

func TestRootSampler(t *testing.T) {
	cases := map[float64]string{
		1.5:  sdktrace.AlwaysSample().Description(),
		1:    sdktrace.AlwaysSample().Description(),
		0:    sdktrace.NeverSample().Description(),
		-1:   sdktrace.NeverSample().Description(),
		0.25: sdktrace.TraceIDRatioBased(0.25).Description(),
	}
	for ratio, want := range cases {
		if got := rootSampler(ratio).Description(); got != want {
			t.Errorf("rootSampler(%v) = %q, want %q", ratio, got, want)
		}
	}
}
