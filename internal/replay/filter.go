// Package replay implements the per-node DIO anti-replay decision.
package replay

import (
	"fmt"
	"time"
)

// NodeID identifies a node for attribution only; it has no ordering meaning.
type NodeID uint32

// SequenceNumber identifies a logical DIO instance.
type SequenceNumber uint32

// Decision is the result of a single delivery.
type Decision int

const (
	// Accepted means the receiver processed the DIO.
	Accepted Decision = iota
	// Dropped means the receiver discarded the DIO as a replay.
	Dropped
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "ACCEPTED"
	case Dropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// MarshalText encodes the decision as "ACCEPTED" or "DROPPED".
func (d Decision) MarshalText() ([]byte, error) {
	switch d {
	case Accepted, Dropped:
		return []byte(d.String()), nil
	default:
		return nil, fmt.Errorf("replay: unknown decision %d", int(d))
	}
}

// UnmarshalText parses the encoding produced by MarshalText.
func (d *Decision) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ACCEPTED":
		*d = Accepted
	case "DROPPED":
		*d = Dropped
	default:
		return fmt.Errorf("replay: unknown decision %q", string(b))
	}
	return nil
}

// Outcome records what a receiver decided for one delivery.
type Outcome struct {
	Node     NodeID         `json:"node"`
	Seq      SequenceNumber `json:"seq"`
	Time     time.Duration  `json:"time_ns"`
	Decision Decision       `json:"decision"`
}

// Filter tracks the sequence numbers one receiving node has seen. Every
// receiver owns its own Filter; two nodes must never share one.
//
// Not safe for concurrent use.
type Filter struct {
	node       NodeID
	mitigation bool
	seen       map[SequenceNumber]struct{}
}

// NewFilter creates an empty filter for node. When mitigation is false the
// filter still records history but never drops.
func NewFilter(node NodeID, mitigation bool) *Filter {
	return &Filter{
		node:       node,
		mitigation: mitigation,
		seen:       make(map[SequenceNumber]struct{}),
	}
}

// Receive decides whether the DIO carrying seq is accepted at simulated time
// at. Only set membership matters, not whether seq is larger than anything
// seen before.
func (f *Filter) Receive(seq SequenceNumber, at time.Duration) Outcome {
	out := Outcome{Node: f.node, Seq: seq, Time: at, Decision: Accepted}

	_, dup := f.seen[seq]
	if f.mitigation && dup {
		out.Decision = Dropped
		return out
	}
	f.seen[seq] = struct{}{}
	return out
}

// Node returns the owning node's ID.
func (f *Filter) Node() NodeID { return f.node }

// Mitigation reports whether replayed DIOs are dropped.
func (f *Filter) Mitigation() bool { return f.mitigation }

// Seen reports whether seq has been recorded.
func (f *Filter) Seen(seq SequenceNumber) bool {
	_, ok := f.seen[seq]
	return ok
}

// SeenCount returns the number of distinct sequence numbers recorded.
func (f *Filter) SeenCount() int { return len(f.seen) }
