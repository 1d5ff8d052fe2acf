package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/Cioraz/Iot-Project/internal/logging"
	"github.com/Cioraz/Iot-Project/internal/replay"
	"github.com/Cioraz/Iot-Project/internal/sim/scheduler"
	"github.com/Cioraz/Iot-Project/timectrl"
)

// Transmission is one replay of the captured DIO by an attacker. No packet is
// built; the transmission is only reported.
type Transmission struct {
	Attacker replay.NodeID
	Seq      replay.SequenceNumber
	Time     time.Duration
	Count    int // 1-based index of this transmission
}

// AttackerConfig describes a replay attacker.
type AttackerConfig struct {
	Node        replay.NodeID
	CapturedSeq replay.SequenceNumber
	Interval    time.Duration
	Repeat      bool
}

// Attacker periodically re-sends a captured DIO. It never talks to receivers;
// the scenario schedules the matching replay deliveries separately.
type Attacker struct {
	cfg   AttackerConfig
	sched *scheduler.Scheduler

	onTransmit func(Transmission)
	reg        *scheduler.Registration
	started    bool
	sent       int

	ctx context.Context
	log logging.Logger
}

// AttackerOption customises Attacker construction.
type AttackerOption func(*Attacker)

// WithTransmitHook sets the callback invoked for every transmission.
func WithTransmitHook(fn func(Transmission)) AttackerOption {
	return func(a *Attacker) {
		a.onTransmit = fn
	}
}

// WithAttackerLogger attaches a logger; ctx is used for every log call.
func WithAttackerLogger(ctx context.Context, log logging.Logger) AttackerOption {
	return func(a *Attacker) {
		a.ctx = ctx
		a.log = log
	}
}

// NewAttacker validates cfg and returns an attacker bound to sched.
func NewAttacker(sched *scheduler.Scheduler, cfg AttackerConfig, opts ...AttackerOption) (*Attacker, error) {
	if sched == nil {
		return nil, fmt.Errorf("new attacker: nil scheduler")
	}
	if cfg.Repeat && cfg.Interval <= 0 {
		return nil, fmt.Errorf("new attacker: interval %s: %w", cfg.Interval, scheduler.ErrInvalidDelay)
	}
	a := &Attacker{
		cfg:   cfg,
		sched: sched,
		ctx:   context.Background(),
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logging.Noop()
	}
	return a, nil
}

// Start transmits once and, when configured to repeat, keeps transmitting
// every Interval until Stop. Calling Start again is a no-op.
func (a *Attacker) Start() {
	if a.started {
		return
	}
	a.started = true
	a.transmit()

	if !a.cfg.Repeat {
		return
	}
	reg, err := a.sched.Acquire(a.cfg.Interval, a.cfg.Interval, a.transmit)
	if err != nil {
		// Interval was validated in NewAttacker.
		a.log.Error(a.ctx, "attacker could not re-arm", logging.Err(err))
		return
	}
	a.reg = reg
}

// Stop cancels any pending retransmission. Safe to call more than once, and
// before Start.
func (a *Attacker) Stop() {
	a.reg.Release()
	a.reg = nil
}

// Node returns the attacker's node ID.
func (a *Attacker) Node() replay.NodeID { return a.cfg.Node }

// Transmissions returns how many times the attacker has transmitted.
func (a *Attacker) Transmissions() int { return a.sent }

// Active reports whether a retransmission is still scheduled.
func (a *Attacker) Active() bool { return a.reg.Active() }

func (a *Attacker) transmit() {
	a.sent++
	tx := Transmission{
		Attacker: a.cfg.Node,
		Seq:      a.cfg.CapturedSeq,
		Time:     a.sched.Now(),
		Count:    a.sent,
	}
	a.log.Info(a.ctx, "replay attacker sending fake DIO",
		logging.Uint("node", uint64(tx.Attacker)),
		logging.Uint("seq", uint64(tx.Seq)),
		logging.String("t", timectrl.FormatSeconds(tx.Time)),
	)
	if a.onTransmit != nil {
		a.onTransmit(tx)
	}
}
