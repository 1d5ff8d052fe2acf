package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Cioraz/Iot-Project/internal/replay"
)

func newTestTracer(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp
}

func TestRunSpanRecordsDroppedReplays(t *testing.T) {
	recorder, tp := newTestTracer(t)

	_, span := StartRunSpan(context.Background(), tp.Tracer("test"), RunAttrs{
		Scenario:   "replay",
		RunID:      "r1",
		StopTime:   10 * time.Second,
		Attack:     true,
		Receivers:  2,
		Mitigating: 1,
	})
	span.Record(replay.Outcome{Node: 1, Seq: 1, Time: time.Second, Decision: replay.Accepted})
	span.Record(replay.Outcome{Node: 1, Seq: 1, Time: 2 * time.Second, Decision: replay.Dropped})
	span.Finish(RunTotals{Accepted: 1, Dropped: 1, Transmissions: 10, EventsFired: 12, FinalTime: 10 * time.Second})
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != RunSpanName {
		t.Fatalf("spans = %v, want one %s", spans, RunSpanName)
	}
	got := spans[0]

	attrs := map[string]string{}
	for _, kv := range got.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	for key, want := range map[string]string{
		"scenario.name":                 "replay",
		"run.id":                        "r1",
		"scenario.mitigating_receivers": "1",
		"outcomes.dropped":              "1",
		"attacker.transmissions":        "10",
		"sim.final_time_seconds":        "10",
	} {
		if attrs[key] != want {
			t.Fatalf("attribute %s = %q, want %q (all: %v)", key, attrs[key], want, attrs)
		}
	}

	events := got.Events()
	if len(events) != 1 || events[0].Name != "replay.dropped" {
		t.Fatalf("events = %v, want one replay.dropped", events)
	}
	evAttrs := map[string]string{}
	for _, kv := range events[0].Attributes {
		evAttrs[string(kv.Key)] = kv.Value.Emit()
	}
	if evAttrs["dio.node"] != "1" || evAttrs["dio.seq"] != "1" || evAttrs["sim.time_seconds"] != "2" {
		t.Fatalf("event attributes = %v", evAttrs)
	}
}

func TestRunSpanFail(t *testing.T) {
	recorder, tp := newTestTracer(t)

	_, span := StartRunSpan(context.Background(), tp.Tracer("test"), RunAttrs{Scenario: "x"})
	boom := errors.New("boom")
	if err := span.Fail(boom); err != boom {
		t.Fatalf("Fail returned %v, want the same error", err)
	}
	span.End()

	got := recorder.Ended()[0]
	if got.Status().Code != codes.Error || got.Status().Description != "boom" {
		t.Fatalf("status = %+v, want error boom", got.Status())
	}
	if len(got.Events()) != 1 || got.Events()[0].Name != "exception" {
		t.Fatalf("events = %v, want a recorded exception", got.Events())
	}
}

func TestRunSpanNilTracerUsesGlobal(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{}, nil); err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := StartRunSpan(context.Background(), nil, RunAttrs{Scenario: "x"})
	span.Record(replay.Outcome{Decision: replay.Dropped})
	span.End()
}
