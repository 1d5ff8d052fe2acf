package actor

import (
	"context"

	"github.com/Cioraz/Iot-Project/internal/logging"
	"github.com/Cioraz/Iot-Project/internal/replay"
	"github.com/Cioraz/Iot-Project/timectrl"
)

// OutcomeSink consumes delivery outcomes in the order they are produced.
type OutcomeSink interface {
	Record(replay.Outcome)
}

// Receiver is a DIO-receiving node. It owns exactly one replay filter.
type Receiver struct {
	filter *replay.Filter
	clock  timectrl.SimClock
	sink   OutcomeSink

	ctx context.Context
	log logging.Logger
}

// ReceiverOption customises Receiver construction.
type ReceiverOption func(*Receiver)

// WithReceiverLogger attaches a logger; ctx is used for every log call.
func WithReceiverLogger(ctx context.Context, log logging.Logger) ReceiverOption {
	return func(r *Receiver) {
		r.ctx = ctx
		r.log = log
	}
}

// NewReceiver creates a receiver for node that stamps outcomes with clock and
// forwards them to sink. A nil sink discards outcomes.
func NewReceiver(node replay.NodeID, mitigation bool, clock timectrl.SimClock, sink OutcomeSink, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		filter: replay.NewFilter(node, mitigation),
		clock:  clock,
		sink:   sink,
		ctx:    context.Background(),
		log:    logging.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.Noop()
	}
	return r
}

// Node returns the receiver's node ID.
func (r *Receiver) Node() replay.NodeID { return r.filter.Node() }

// Mitigation reports whether this receiver drops replays.
func (r *Receiver) Mitigation() bool { return r.filter.Mitigation() }

// Filter exposes the receiver's filter for diagnostics.
func (r *Receiver) Filter() *replay.Filter { return r.filter }

// Deliver hands seq to the filter at the current simulated time and
// publishes the outcome.
func (r *Receiver) Deliver(seq replay.SequenceNumber) replay.Outcome {
	out := r.filter.Receive(seq, r.clock.Now())
	r.log.Debug(r.ctx, "dio delivered",
		logging.Uint("node", uint64(out.Node)),
		logging.Uint("seq", uint64(out.Seq)),
		logging.String("decision", out.Decision.String()),
	)
	if r.sink != nil {
		r.sink.Record(out)
	}
	return out
}
