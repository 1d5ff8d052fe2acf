package actor

import (
	"fmt"

	"github.com/Cioraz/Iot-Project/internal/replay"
)

// Kind is the closed set of actors a scenario can schedule.
type Kind int

const (
	KindUnknown Kind = iota
	KindReceiver
	KindAttacker
)

func (k Kind) String() string {
	switch k {
	case KindReceiver:
		return "receiver"
	case KindAttacker:
		return "attacker"
	default:
		return "unknown"
	}
}

// Action is a schedulable unit of work: either a DIO delivery to a receiver
// or the start of an attacker. The Kind tag selects which fields are used.
type Action struct {
	Kind Kind

	// KindReceiver
	Receiver *Receiver
	Seq      replay.SequenceNumber

	// KindAttacker
	Attacker *Attacker
}

// Deliver builds an action that delivers seq to r when fired.
func Deliver(r *Receiver, seq replay.SequenceNumber) Action {
	return Action{Kind: KindReceiver, Receiver: r, Seq: seq}
}

// Launch builds an action that starts a when fired.
func Launch(a *Attacker) Action {
	return Action{Kind: KindAttacker, Attacker: a}
}

// Validate checks that the fields required by the Kind are set.
func (a Action) Validate() error {
	switch a.Kind {
	case KindReceiver:
		if a.Receiver == nil {
			return fmt.Errorf("receiver action without receiver")
		}
	case KindAttacker:
		if a.Attacker == nil {
			return fmt.Errorf("attacker action without attacker")
		}
	default:
		return fmt.Errorf("unknown action kind %d", int(a.Kind))
	}
	return nil
}

// Fire runs the action. It is meant to be passed to the scheduler as the
// event callback.
func (a Action) Fire() {
	switch a.Kind {
	case KindReceiver:
		a.Receiver.Deliver(a.Seq)
	case KindAttacker:
		a.Attacker.Start()
	}
}
