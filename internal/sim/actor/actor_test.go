package actor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Cioraz/Iot-Project/internal/replay"
	"github.com/Cioraz/Iot-Project/internal/sim/scheduler"
)

type sliceSink struct {
	outcomes []replay.Outcome
}

func (s *sliceSink) Record(o replay.Outcome) { s.outcomes = append(s.outcomes, o) }

func TestReceiver_StampsOutcomesWithSimTime(t *testing.T) {
	sched := scheduler.New(nil)
	sink := &sliceSink{}
	r := NewReceiver(1, true, sched.Clock(), sink)

	for _, at := range []time.Duration{time.Second, 2 * time.Second} {
		if _, err := sched.Schedule(at, Deliver(r, 1).Fire); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	if err := sched.Run(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(sink.outcomes))
	}
	first, second := sink.outcomes[0], sink.outcomes[1]
	if first.Time != time.Second || first.Decision != replay.Accepted {
		t.Fatalf("first outcome = %+v, want ACCEPTED at 1s", first)
	}
	if second.Time != 2*time.Second || second.Decision != replay.Dropped {
		t.Fatalf("second outcome = %+v, want DROPPED at 2s", second)
	}
}

func TestReceiver_NilSink(t *testing.T) {
	sched := scheduler.New(nil)
	r := NewReceiver(3, false, sched.Clock(), nil)

	if out := r.Deliver(5); out.Decision != replay.Accepted || out.Node != 3 {
		t.Fatalf("Deliver() = %+v", out)
	}
	if !r.Filter().Seen(5) || r.Mitigation() || r.Node() != 3 {
		t.Fatalf("receiver accessors inconsistent")
	}
}

func TestAttacker_RepeatsUntilStopped(t *testing.T) {
	sched := scheduler.New(nil)

	var txs []Transmission
	a, err := NewAttacker(sched, AttackerConfig{Node: 0, CapturedSeq: 1, Interval: time.Second, Repeat: true},
		WithTransmitHook(func(tx Transmission) { txs = append(txs, tx) }))
	if err != nil {
		t.Fatalf("NewAttacker: %v", err)
	}

	if _, err := sched.Schedule(100*time.Millisecond, Launch(a).Fire); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := sched.Schedule(3500*time.Millisecond, a.Stop); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	_ = sched.Run(context.Background(), 10*time.Second)

	want := []time.Duration{100 * time.Millisecond, 1100 * time.Millisecond, 2100 * time.Millisecond, 3100 * time.Millisecond}
	if len(txs) != len(want) {
		t.Fatalf("transmissions at %v, want %d", txs, len(want))
	}
	for i, tx := range txs {
		if tx.Time != want[i] || tx.Count != i+1 || tx.Seq != 1 {
			t.Fatalf("transmission %d = %+v, want t=%v count=%d", i, tx, want[i], i+1)
		}
	}
	if a.Transmissions() != 4 || a.Active() {
		t.Fatalf("Transmissions()=%d Active()=%v after stop", a.Transmissions(), a.Active())
	}
}

func TestAttacker_SingleShot(t *testing.T) {
	sched := scheduler.New(nil)
	a, err := NewAttacker(sched, AttackerConfig{Node: 0, CapturedSeq: 1})
	if err != nil {
		t.Fatalf("NewAttacker: %v", err)
	}
	_, _ = sched.Schedule(time.Second, Launch(a).Fire)
	_ = sched.Run(context.Background(), 10*time.Second)

	if a.Transmissions() != 1 {
		t.Fatalf("Transmissions() = %d, want 1", a.Transmissions())
	}
}

func TestAttacker_StartTwiceIsNoop(t *testing.T) {
	sched := scheduler.New(nil)
	a, _ := NewAttacker(sched, AttackerConfig{Interval: time.Second, Repeat: true})

	a.Start()
	a.Start()
	if a.Transmissions() != 1 {
		t.Fatalf("Transmissions() = %d, want 1", a.Transmissions())
	}
	if sched.Pending() != 1 {
		t.Fatalf("Pending() = %d, want a single recurring registration", sched.Pending())
	}
	a.Stop()
	a.Stop()
	if sched.Pending() != 0 {
		t.Fatalf("Pending() after Stop = %d, want 0", sched.Pending())
	}
}

func TestAttacker_StopBeforeStart(t *testing.T) {
	sched := scheduler.New(nil)
	a, _ := NewAttacker(sched, AttackerConfig{Interval: time.Second, Repeat: true})
	a.Stop()
	if a.Active() {
		t.Fatalf("attacker active before start")
	}
}

func TestNewAttacker_Validation(t *testing.T) {
	if _, err := NewAttacker(nil, AttackerConfig{}); err == nil {
		t.Fatalf("expected error for nil scheduler")
	}
	_, err := NewAttacker(scheduler.New(nil), AttackerConfig{Repeat: true})
	if !errors.Is(err, scheduler.ErrInvalidDelay) {
		t.Fatalf("error = %v, want ErrInvalidDelay", err)
	}
}

func TestAction_Validate(t *testing.T) {
	sched := scheduler.New(nil)
	r := NewReceiver(1, true, sched.Clock(), nil)
	a, _ := NewAttacker(sched, AttackerConfig{})

	cases := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"delivery", Deliver(r, 1), false},
		{"launch", Launch(a), false},
		{"delivery without receiver", Action{Kind: KindReceiver}, true},
		{"launch without attacker", Action{Kind: KindAttacker}, true},
		{"unknown", Action{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.action.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
	if KindReceiver.String() != "receiver" || KindAttacker.String() != "attacker" || Kind(42).String() != "unknown" {
		t.Fatalf("Kind.String() mismatch")
	}
}
