package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Cioraz/Iot-Project/internal/replay"
)

// RunSpanName is the name of the span covering one simulation run.
const RunSpanName = "scenario.run"

// RunAttrs describes a run when its span starts.
type RunAttrs struct {
	Scenario  string
	RunID     string
	StopTime  time.Duration
	Attack    bool
	Receivers int
	// Mitigating counts receivers with the anti-replay filter enabled.
	Mitigating int
}

// RunTotals is what a run produced, attached to its span before it ends.
type RunTotals struct {
	Accepted      int
	Dropped       int
	Transmissions int
	EventsFired   uint64
	Abandoned     int
	FinalTime     time.Duration
}

// RunSpan wraps the span of one run. It is also a report.Sink: every dropped
// replay becomes a span event, so a trace shows where the filter intervened.
// Not safe for concurrent use, like the run it belongs to.
type RunSpan struct {
	span trace.Span
}

// StartRunSpan starts the run span on tracer, or on the global simulation
// tracer when tracer is nil.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, a RunAttrs) (context.Context, *RunSpan) {
	if tracer == nil {
		tracer = Tracer()
	}
	ctx, span := tracer.Start(ctx, RunSpanName, trace.WithAttributes(
		attribute.String("scenario.name", a.Scenario),
		attribute.String("run.id", a.RunID),
		attribute.Float64("scenario.stop_time_seconds", a.StopTime.Seconds()),
		attribute.Bool("scenario.attack", a.Attack),
		attribute.Int("scenario.receivers", a.Receivers),
		attribute.Int("scenario.mitigating_receivers", a.Mitigating),
	))
	return ctx, &RunSpan{span: span}
}

// Record adds a "replay.dropped" event for each dropped delivery.
func (s *RunSpan) Record(o replay.Outcome) {
	if o.Decision != replay.Dropped || !s.span.IsRecording() {
		return
	}
	s.span.AddEvent("replay.dropped", trace.WithAttributes(
		attribute.Int64("dio.node", int64(o.Node)),
		attribute.Int64("dio.seq", int64(o.Seq)),
		attribute.Float64("sim.time_seconds", o.Time.Seconds()),
	))
}

// Finish attaches the run totals.
func (s *RunSpan) Finish(t RunTotals) {
	s.span.SetAttributes(
		attribute.Int("outcomes.accepted", t.Accepted),
		attribute.Int("outcomes.dropped", t.Dropped),
		attribute.Int("attacker.transmissions", t.Transmissions),
		attribute.Int64("scheduler.events_fired", int64(t.EventsFired)),
		attribute.Int("scheduler.abandoned", t.Abandoned),
		attribute.Float64("sim.final_time_seconds", t.FinalTime.Seconds()),
	)
}

// Fail marks the span as failed and returns err unchanged.
func (s *RunSpan) Fail(err error) error {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	return err
}

// End ends the span.
func (s *RunSpan) End() {
	s.span.End()
}
