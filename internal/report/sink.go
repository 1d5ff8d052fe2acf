// Package report consumes the outcome stream of a simulation run: collecting,
// logging, summarising, and rendering outcomes in the formats downstream
// tooling expects.
package report

import (
	"context"

	"github.com/Cioraz/Iot-Project/internal/logging"
	"github.com/Cioraz/Iot-Project/internal/replay"
	"github.com/Cioraz/Iot-Project/timectrl"
)

// Sink receives outcomes in production order.
type Sink interface {
	Record(replay.Outcome)
}

// Collector keeps every outcome in order.
type Collector struct {
	outcomes []replay.Outcome
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record implements Sink.
func (c *Collector) Record(o replay.Outcome) {
	c.outcomes = append(c.outcomes, o)
}

// Outcomes returns a copy of the recorded outcomes.
func (c *Collector) Outcomes() []replay.Outcome {
	out := make([]replay.Outcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out
}

// Len returns the number of recorded outcomes.
func (c *Collector) Len() int { return len(c.outcomes) }

// MultiSink fans each outcome out to every non-nil sink, in order.
type MultiSink []Sink

// Record implements Sink.
func (m MultiSink) Record(o replay.Outcome) {
	for _, s := range m {
		if s != nil {
			s.Record(o)
		}
	}
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(replay.Outcome)

// Record implements Sink.
func (f SinkFunc) Record(o replay.Outcome) { f(o) }

// LogSink writes one structured log line per outcome.
type LogSink struct {
	ctx context.Context
	log logging.Logger
}

// NewLogSink returns a sink logging through log with ctx.
func NewLogSink(ctx context.Context, log logging.Logger) *LogSink {
	if log == nil {
		log = logging.Noop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &LogSink{ctx: ctx, log: log}
}

// Record implements Sink.
func (s *LogSink) Record(o replay.Outcome) {
	msg := "accepted DIO"
	if o.Decision == replay.Dropped {
		msg = "DROPPED replayed DIO"
	}
	s.log.Info(s.ctx, msg,
		logging.Uint("node", uint64(o.Node)),
		logging.Uint("seq", uint64(o.Seq)),
		logging.String("t", timectrl.FormatSeconds(o.Time)),
	)
}
