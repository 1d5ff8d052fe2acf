package scenario

import (
	"fmt"
	"sort"
	"time"
)

// Built-in scenario names.
const (
	PresetBaseline = "baseline"
	PresetReplay   = "replay"
)

var presets = map[string]func(mitigation bool) Config{
	PresetBaseline: Baseline,
	PresetReplay:   Replay,
}

// PresetNames lists the built-in scenarios in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns the named built-in scenario.
func Preset(name string, mitigation bool) (Config, error) {
	build, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown scenario %q (have %v)", name, PresetNames())
	}
	return build(mitigation), nil
}

// Baseline is normal traffic with no attacker: every DIO carries a fresh
// sequence number, so nothing is dropped whatever the flags say. Node 1
// always runs with mitigation on and node 2 with it off; the mitigation
// argument is ignored.
func Baseline(bool) Config {
	return Config{
		Name:     PresetBaseline,
		StopTime: 5 * time.Second,
		Receivers: []ReceiverConfig{
			{Node: 1, Mitigation: true},
			{Node: 2, Mitigation: false},
		},
		Deliveries: []Delivery{
			{Receiver: 1, Seq: 1, At: 1 * time.Second},
			{Receiver: 2, Seq: 1, At: 1500 * time.Millisecond},
			{Receiver: 1, Seq: 2, At: 2 * time.Second},
			{Receiver: 2, Seq: 2, At: 2500 * time.Millisecond},
			{Receiver: 1, Seq: 3, At: 3 * time.Second},
		},
	}
}

// Replay has attacker node 0 re-sending the captured DIO seq=1 every second
// from t=0.1s, while both receivers are hit with replays of seq=1. Both
// receivers share the given mitigation setting.
func Replay(mitigation bool) Config {
	return Config{
		Name:     PresetReplay,
		StopTime: 10 * time.Second,
		Receivers: []ReceiverConfig{
			{Node: 1, Mitigation: mitigation},
			{Node: 2, Mitigation: mitigation},
		},
		Attack: AttackConfig{
			Enabled:        true,
			Attacker:       0,
			CapturedSeq:    1,
			StartDelay:     100 * time.Millisecond,
			RepeatInterval: time.Second,
			Repeat:         true,
			Replays: []Delivery{
				{Receiver: 1, Seq: 1, At: 1 * time.Second},
				{Receiver: 1, Seq: 1, At: 2 * time.Second},
				{Receiver: 2, Seq: 1, At: 1500 * time.Millisecond},
				{Receiver: 2, Seq: 1, At: 2500 * time.Millisecond},
			},
		},
	}
}
