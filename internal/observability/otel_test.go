package observability

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/tbourn/lecture-discussions/internal/config"
)

func preserveOTelGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

// stubClient stands in for the gRPC collector connection and counts the
// spans it receives.
type stubClient struct {
	mu    sync.Mutex
	spans int
}

func (c *stubClient) Start(context.Context) error { return nil }
func (c *stubClient) Stop(context.Context) error  { return nil }

func (c *stubClient) UploadTraces(_ context.Context, rs []*tracepb.ResourceSpans) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rs {
		for _, ss := range r.ScopeSpans {
			c.spans += len(ss.Spans)
		}
	}
	return nil
}

func (c *stubClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spans
}

// useStubExporter routes exports to a stubClient instead of a collector.
func useStubExporter(t *testing.T) *stubClient {
	t.Helper()
	orig := newOTLPExporterFn
	t.Cleanup(func() { newOTLPExporterFn = orig })
	stub := &stubClient{}
	newOTLPExporterFn = func(ctx context.Context, _ otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, stub)
	}
	return stub
}

func enabled(name string) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
	}
}

func TestSetupOTel_Disabled_NoOp(t *testing.T) {
	preserveOTelGlobals(t)
	prevTP := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false, Endpoint: "ignored:4317"}, "v0.0.0")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
	if otel.GetTracerProvider() != prevTP {
		t.Fatalf("disabled setup must not touch the global provider")
	}
}

func TestSetupOTel_InstallsProviderAndPropagator(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		preserveOTelGlobals(t)
		stub := useStubExporter(t)

		cfg := enabled("lecture-discussions")
		cfg.Insecure = insecure
		shutdown, err := SetupOTel(context.Background(), cfg, "v1.2.3")
		if err != nil {
			t.Fatalf("insecure=%v: unexpected err: %v", insecure, err)
		}

		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("expected *sdktrace.TracerProvider")
		}

		ctx, span := Tracer("test").Start(context.Background(), "span")
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		span.End()
		if carrier.Get("traceparent") == "" {
			t.Fatalf("traceparent not injected")
		}

		ct, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := shutdown(ct); err != nil {
			t.Fatalf("insecure=%v: shutdown returned error: %v", insecure, err)
		}
		cancel()
		if got := stub.count(); got != 1 {
			t.Fatalf("insecure=%v: exported spans = %d, want 1", insecure, got)
		}
	}
}

func TestSetupOTel_ExporterError_GlobalsIntact(t *testing.T) {
	preserveOTelGlobals(t)

	orig := newOTLPExporterFn
	t.Cleanup(func() { newOTLPExporterFn = orig })
	newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, errors.New("boom-exporter")
	}

	prevTP := otel.GetTracerProvider()
	if _, err := SetupOTel(context.Background(), enabled("svc"), "v0"); err == nil {
		t.Fatalf("expected error, got nil")
	}
	if otel.GetTracerProvider() != prevTP {
		t.Fatalf("tracer provider changed on failure")
	}
}

func TestSetupOTel_ResourceError_GlobalsIntact(t *testing.T) {
	preserveOTelGlobals(t)

	orig := newServiceResourceFn
	t.Cleanup(func() { newServiceResourceFn = orig })
	newServiceResourceFn = func(context.Context, string, string) (*resource.Resource, error) {
		return nil, errors.New("boom-resource")
	}

	prevProp := otel.GetTextMapPropagator()
	if _, err := SetupOTel(context.Background(), enabled("svc"), "v0"); err == nil {
		t.Fatalf("expected error, got nil")
	}
	if otel.GetTextMapPropagator() != prevProp {
		t.Fatalf("propagator changed on failure")
	}
}

func TestSampler_Clamps(t *testing.T) {
	cases := map[float64]string{
		-1:   "AlwaysOffSampler",
		0:    "AlwaysOffSampler",
		0.25: "TraceIDRatioBased{0.25}",
		1:    "AlwaysOnSampler",
		7:    "AlwaysOnSampler",
	}
	for ratio, root := range cases {
		desc := Sampler(ratio).Description()
		if !strings.HasPrefix(desc, "ParentBased{root:"+root) {
			t.Fatalf("Sampler(%v) = %s, want root %s", ratio, desc, root)
		}
	}
}

func TestTracer_NamesComponent(t *testing.T) {
	preserveOTelGlobals(t)

	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	_, span := Tracer("services").Start(context.Background(), "CreateDiscussion")
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("spans = %d, want 1", len(ended))
	}
	if got := ended[0].InstrumentationScope().Name; got != InstrumentationName+"/services" {
		t.Fatalf("scope = %q", got)
	}
}
