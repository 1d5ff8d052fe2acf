package scenario

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Cioraz/Iot-Project/internal/logging"
	"github.com/Cioraz/Iot-Project/internal/observability"
	"github.com/Cioraz/Iot-Project/internal/replay"
	"github.com/Cioraz/Iot-Project/internal/report"
	"github.com/Cioraz/Iot-Project/internal/sim/actor"
	"github.com/Cioraz/Iot-Project/internal/sim/scheduler"
	"github.com/Cioraz/Iot-Project/timectrl"
)

// MetricsRecorder receives run telemetry. *observability.SimCollector
// satisfies it.
type MetricsRecorder interface {
	report.Sink
	scheduler.MetricsRecorder
	IncTransmissions()
	ObserveSimTime(scenario string, seconds float64)
	ObserveRun(scenario string, finalSeconds float64, err error)
}

// Result is what a run produced. Outcomes are in the order the scheduler
// fired the corresponding deliveries.
type Result struct {
	RunID         string
	Outcomes      []replay.Outcome
	Transmissions []actor.Transmission
	FinalTime     time.Duration
	EventsFired   uint64
	Abandoned     int
	SeenCounts    map[replay.NodeID]int
}

// Summary aggregates the run's outcomes.
func (r *Result) Summary() report.Summary {
	return report.Summarize(r.Outcomes)
}

type options struct {
	sink    report.Sink
	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
}

// Option customises a run.
type Option func(*options)

// WithSink streams every outcome to s as it is produced, in addition to
// collecting it in the Result.
func WithSink(s report.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithLogger attaches a structured logger used by the run and its actors.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer overrides the tracer used for the run span.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// Run executes cfg to completion on a fresh scheduler and returns its
// outcomes. Runs share no state, so independent runs may proceed in
// parallel goroutines.
func Run(ctx context.Context, cfg Config, opts ...Option) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{log: logging.Noop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Noop()
	}

	ctx, runID := logging.EnsureRunID(ctx)
	mitigating := 0
	for _, rc := range cfg.Receivers {
		if rc.Mitigation {
			mitigating++
		}
	}
	ctx, span := observability.StartRunSpan(ctx, o.tracer, observability.RunAttrs{
		Scenario:   cfg.Name,
		RunID:      runID,
		StopTime:   cfg.StopTime,
		Attack:     cfg.Attack.Enabled,
		Receivers:  len(cfg.Receivers),
		Mitigating: mitigating,
	})
	defer span.End()

	log := o.log.With(logging.String("scenario", cfg.Name))

	collector := report.NewCollector()
	sinks := report.MultiSink{collector, span}
	if o.sink != nil {
		sinks = append(sinks, o.sink)
	}
	var schedOpts []scheduler.Option
	if o.metrics != nil {
		sinks = append(sinks, o.metrics)
		schedOpts = append(schedOpts, scheduler.WithMetricsRecorder(o.metrics))
	}

	clock := timectrl.NewVirtualClock()
	if o.metrics != nil {
		clock.AddListener(func(now time.Duration) {
			o.metrics.ObserveSimTime(cfg.Name, now.Seconds())
		})
	}
	sched := scheduler.New(clock, schedOpts...)

	receivers := make(map[replay.NodeID]*actor.Receiver, len(cfg.Receivers))
	order := make([]replay.NodeID, 0, len(cfg.Receivers))
	for _, rc := range cfg.Receivers {
		receivers[rc.Node] = actor.NewReceiver(rc.Node, rc.Mitigation, sched.Clock(), sinks,
			actor.WithReceiverLogger(ctx, log.With(logging.String("component", "receiver"))))
		order = append(order, rc.Node)
	}

	res := &Result{RunID: runID}

	// The attacker launch is registered first, then legitimate traffic, then
	// replays. Same-instant events keep this order.
	var attacker *actor.Attacker
	if cfg.Attack.Enabled {
		var err error
		attacker, err = actor.NewAttacker(sched, actor.AttackerConfig{
			Node:        cfg.Attack.Attacker,
			CapturedSeq: cfg.Attack.CapturedSeq,
			Interval:    cfg.Attack.RepeatInterval,
			Repeat:      cfg.Attack.Repeat,
		},
			actor.WithAttackerLogger(ctx, log.With(logging.String("component", "attacker"))),
			actor.WithTransmitHook(func(tx actor.Transmission) {
				res.Transmissions = append(res.Transmissions, tx)
				if o.metrics != nil {
					o.metrics.IncTransmissions()
				}
			}),
		)
		if err != nil {
			return nil, span.Fail(fmt.Errorf("run %s: %w", cfg.Name, err))
		}
		defer attacker.Stop()

		if err := schedule(sched, cfg.Attack.StartDelay, actor.Launch(attacker)); err != nil {
			return nil, span.Fail(fmt.Errorf("run %s: %w", cfg.Name, err))
		}
	}

	for _, d := range cfg.Deliveries {
		if err := schedule(sched, d.At, actor.Deliver(receivers[d.Receiver], d.Seq)); err != nil {
			return nil, span.Fail(fmt.Errorf("run %s: delivery: %w", cfg.Name, err))
		}
	}
	if cfg.Attack.Enabled {
		for _, d := range cfg.Attack.Replays {
			if err := schedule(sched, d.At, actor.Deliver(receivers[d.Receiver], d.Seq)); err != nil {
				return nil, span.Fail(fmt.Errorf("run %s: replay: %w", cfg.Name, err))
			}
		}
	}

	log.Info(ctx, "simulation starting",
		logging.Int("receivers", len(receivers)),
		logging.Int("pending_events", sched.Pending()),
		logging.Float("stop_time_seconds", cfg.StopTime.Seconds()),
		logging.Bool("attack", cfg.Attack.Enabled),
	)

	runErr := sched.Run(ctx, cfg.StopTime)
	if attacker != nil {
		// Teardown: no attacker callback may outlive the run.
		attacker.Stop()
	}

	res.Outcomes = collector.Outcomes()
	res.FinalTime = sched.Now()
	res.EventsFired = sched.Fired()
	res.Abandoned = sched.Abandoned()
	res.SeenCounts = make(map[replay.NodeID]int, len(order))
	for _, id := range order {
		res.SeenCounts[id] = receivers[id].Filter().SeenCount()
	}

	summary := res.Summary()
	span.Finish(observability.RunTotals{
		Accepted:      summary.Accepted,
		Dropped:       summary.Dropped,
		Transmissions: len(res.Transmissions),
		EventsFired:   res.EventsFired,
		Abandoned:     res.Abandoned,
		FinalTime:     res.FinalTime,
	})
	if o.metrics != nil {
		o.metrics.ObserveRun(cfg.Name, res.FinalTime.Seconds(), runErr)
	}

	if runErr != nil {
		log.Warn(ctx, "simulation interrupted", logging.Err(runErr),
			logging.String("t", timectrl.FormatSeconds(res.FinalTime)))
		return res, span.Fail(fmt.Errorf("run %s: %w", cfg.Name, runErr))
	}

	log.Info(ctx, "simulation complete",
		logging.Int("accepted", summary.Accepted),
		logging.Int("dropped", summary.Dropped),
		logging.Int("transmissions", len(res.Transmissions)),
		logging.Int("abandoned_events", res.Abandoned),
		logging.String("t", timectrl.FormatSeconds(res.FinalTime)),
	)
	return res, nil
}

func schedule(s *scheduler.Scheduler, at time.Duration, a actor.Action) error {
	if err := a.Validate(); err != nil {
		return err
	}
	// Everything is registered at t=0, so the absolute time is the delay.
	_, err := s.Schedule(at, a.Fire)
	return err
}
