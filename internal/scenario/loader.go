package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Cioraz/Iot-Project/internal/replay"
	"github.com/Cioraz/Iot-Project/timectrl"
)

// internal JSON shapes; times are fractional seconds on the wire.
type configJSON struct {
	Name       string         `json:"name"`
	StopTime   float64        `json:"stop_time"`
	Receivers  []receiverJSON `json:"receivers"`
	Deliveries []deliveryJSON `json:"deliveries"`
	Attack     *attackJSON    `json:"attack"`
}

type receiverJSON struct {
	Node       uint32 `json:"node"`
	Mitigation bool   `json:"mitigation"`
}

type deliveryJSON struct {
	Receiver uint32  `json:"receiver"`
	Seq      uint32  `json:"seq"`
	At       float64 `json:"at"`
}

type attackJSON struct {
	Enabled        bool           `json:"enabled"`
	Attacker       uint32         `json:"attacker"`
	CapturedSeq    uint32         `json:"captured_seq"`
	StartDelay     float64        `json:"start_delay"`
	RepeatInterval float64        `json:"repeat_interval"`
	Repeat         *bool          `json:"repeat"` // optional; defaults to true
	Replays        []deliveryJSON `json:"replays"`
}

// LoadConfig decodes a JSON scenario from r and validates it. Unknown fields
// are rejected so that typos do not silently change a run.
func LoadConfig(r io.Reader) (Config, error) {
	var payload configJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return Config{}, fmt.Errorf("LoadConfig: decode failed: %w", err)
	}

	stop, err := seconds("stop_time", payload.StopTime)
	if err != nil {
		return Config{}, err
	}
	deliveries, err := toDeliveries("deliveries", payload.Deliveries)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Name:       payload.Name,
		StopTime:   stop,
		Receivers:  make([]ReceiverConfig, 0, len(payload.Receivers)),
		Deliveries: deliveries,
	}
	for _, r := range payload.Receivers {
		cfg.Receivers = append(cfg.Receivers, ReceiverConfig{
			Node:       replay.NodeID(r.Node),
			Mitigation: r.Mitigation,
		})
	}

	if a := payload.Attack; a != nil {
		repeat := true
		if a.Repeat != nil {
			repeat = *a.Repeat
		}
		start, err := seconds("attack.start_delay", a.StartDelay)
		if err != nil {
			return Config{}, err
		}
		interval, err := seconds("attack.repeat_interval", a.RepeatInterval)
		if err != nil {
			return Config{}, err
		}
		replays, err := toDeliveries("attack.replays", a.Replays)
		if err != nil {
			return Config{}, err
		}
		cfg.Attack = AttackConfig{
			Enabled:        a.Enabled,
			Attacker:       replay.NodeID(a.Attacker),
			CapturedSeq:    replay.SequenceNumber(a.CapturedSeq),
			StartDelay:     start,
			RepeatInterval: interval,
			Repeat:         repeat,
			Replays:        replays,
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("LoadConfig: %w", err)
	}
	return cfg, nil
}

func toDeliveries(field string, in []deliveryJSON) ([]Delivery, error) {
	out := make([]Delivery, 0, len(in))
	for i, d := range in {
		at, err := seconds(fmt.Sprintf("%s[%d].at", field, i), d.At)
		if err != nil {
			return nil, err
		}
		out = append(out, Delivery{
			Receiver: replay.NodeID(d.Receiver),
			Seq:      replay.SequenceNumber(d.Seq),
			At:       at,
		})
	}
	return out, nil
}

func seconds(field string, v float64) (time.Duration, error) {
	d, err := timectrl.ParseSeconds(v)
	if err != nil {
		return 0, fmt.Errorf("LoadConfig: %s: %w", field, err)
	}
	return d, nil
}
