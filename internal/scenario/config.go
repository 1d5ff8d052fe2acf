package scenario

import (
	"errors"
	"fmt"
	"time"

	"github.com/Cioraz/Iot-Project/internal/replay"
)

// ErrInvalidConfig wraps every validation failure reported by Config.Validate.
var ErrInvalidConfig = errors.New("invalid scenario config")

// ReceiverConfig declares one receiving node.
type ReceiverConfig struct {
	Node       replay.NodeID
	Mitigation bool
}

// Delivery is a DIO carrying Seq arriving at Receiver at simulated time At.
type Delivery struct {
	Receiver replay.NodeID
	Seq      replay.SequenceNumber
	At       time.Duration
}

// AttackConfig describes the optional replay attacker and the replay
// deliveries it causes. The attacker's own firing and the Replays stream
// are scheduled independently.
type AttackConfig struct {
	Enabled        bool
	Attacker       replay.NodeID
	CapturedSeq    replay.SequenceNumber
	StartDelay     time.Duration
	RepeatInterval time.Duration
	Repeat         bool
	Replays        []Delivery
}

// Config is everything a run needs. Deliveries are legitimate traffic.
type Config struct {
	Name       string
	StopTime   time.Duration
	Receivers  []ReceiverConfig
	Deliveries []Delivery
	Attack     AttackConfig
}

// Validate reports the first structural problem in c.
func (c Config) Validate() error {
	if c.StopTime <= 0 {
		return fmt.Errorf("%w: stop time %s must be positive", ErrInvalidConfig, c.StopTime)
	}

	receivers := make(map[replay.NodeID]struct{}, len(c.Receivers))
	for _, r := range c.Receivers {
		if _, dup := receivers[r.Node]; dup {
			return fmt.Errorf("%w: duplicate receiver node %d", ErrInvalidConfig, r.Node)
		}
		receivers[r.Node] = struct{}{}
	}

	check := func(kind string, i int, d Delivery) error {
		if _, ok := receivers[d.Receiver]; !ok {
			return fmt.Errorf("%w: %s %d targets unknown receiver %d", ErrInvalidConfig, kind, i, d.Receiver)
		}
		if d.At < 0 {
			return fmt.Errorf("%w: %s %d has negative time %s", ErrInvalidConfig, kind, i, d.At)
		}
		return nil
	}
	for i, d := range c.Deliveries {
		if err := check("delivery", i, d); err != nil {
			return err
		}
	}

	if !c.Attack.Enabled {
		return nil
	}
	if _, clash := receivers[c.Attack.Attacker]; clash {
		return fmt.Errorf("%w: attacker node %d is also a receiver", ErrInvalidConfig, c.Attack.Attacker)
	}
	if c.Attack.StartDelay < 0 {
		return fmt.Errorf("%w: attack start delay %s is negative", ErrInvalidConfig, c.Attack.StartDelay)
	}
	if c.Attack.Repeat && c.Attack.RepeatInterval <= 0 {
		return fmt.Errorf("%w: attack repeat interval %s must be positive", ErrInvalidConfig, c.Attack.RepeatInterval)
	}
	for i, d := range c.Attack.Replays {
		if err := check("replay", i, d); err != nil {
			return err
		}
	}
	return nil
}

// WithMitigation returns a copy of c with every receiver's mitigation flag
// set to on.
func (c Config) WithMitigation(on bool) Config {
	out := c
	out.Receivers = make([]ReceiverConfig, len(c.Receivers))
	for i, r := range c.Receivers {
		r.Mitigation = on
		out.Receivers[i] = r
	}
	return out
}

// WithStopTime returns a copy of c with StopTime replaced.
func (c Config) WithStopTime(stop time.Duration) Config {
	out := c
	out.StopTime = stop
	return out
}
