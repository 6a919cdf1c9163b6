package observability

import (
	"context"
	"testing"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(TracerConfig{ServiceName: "speedlog-test"})
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}

	_, span := Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Errorf("expected no-op span when tracing is disabled")
	}
	span.End()
}

func TestInitTracer_UnsupportedProtocol(t *testing.T) {
	_, err := InitTracer(TracerConfig{ServiceName: "speedlog-test", Protocol: "udp", Enabled: true})
	if err == nil {
		t.Fatalf("expected error for unsupported protocol")
	}
}
