package observability

import (
	"context"
	"errors"
	"testing"
)

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("SIM_TRACING_ENABLED", "")
	t.Setenv("SIM_TRACING_EXPORTER", "")
	t.Setenv("SIM_TRACING_SERVICE_NAME", "")
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "")
	t.Setenv("SIM_OTLP_ENDPOINT", "")

	cfg := TracingConfigFromEnv()
	if cfg.Enabled {
		t.Fatalf("tracing enabled by default")
	}
	if cfg.Exporter != "stdout" || cfg.ServiceName != "rpl-replay-sim" || cfg.SampleRatio != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestTracingConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("SIM_TRACING_ENABLED", "TRUE")
	t.Setenv("SIM_TRACING_EXPORTER", "OTLP")
	t.Setenv("SIM_TRACING_SERVICE_NAME", "lab")
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("SIM_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.ServiceName != "lab" || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}

	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "7")
	if cfg := TracingConfigFromEnv(); cfg.SampleRatio != 1 {
		t.Fatalf("out-of-range ratio accepted: %v", cfg.SampleRatio)
	}
}

func TestResourceAttrsLabelScenario(t *testing.T) {
	attrs := map[string]string{}
	for _, kv := range resourceAttrs(TracingConfig{ServiceName: "lab", Scenario: "replay"}) {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	if attrs["service.name"] != "lab" || attrs["sim.scenario"] != "replay" || attrs["sim.model"] != "rpl-dio-replay" {
		t.Fatalf("resource attributes = %v", attrs)
	}

	for _, kv := range resourceAttrs(TracingConfig{ServiceName: "lab"}) {
		if kv.Key == "sim.scenario" {
			t.Fatalf("empty scenario should not be labelled")
		}
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}

func TestInitTracingUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestShutdownWithTimeoutSwallowsErrors(t *testing.T) {
	called := false
	ShutdownWithTimeout(context.Background(), func(context.Context) error {
		called = true
		return errors.New("flush failed")
	}, nil)
	if !called {
		t.Fatalf("shutdown func not called")
	}
	ShutdownWithTimeout(context.Background(), nil, nil)
}
