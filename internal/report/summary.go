package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Cioraz/Iot-Project/internal/replay"
	"github.com/Cioraz/Iot-Project/timectrl"
)

// NodeSummary counts decisions for one receiver.
type NodeSummary struct {
	Node     replay.NodeID `json:"node"`
	Accepted int           `json:"accepted"`
	Dropped  int           `json:"dropped"`
}

// Summary aggregates a run's outcomes, nodes sorted by ID.
type Summary struct {
	Accepted int           `json:"accepted"`
	Dropped  int           `json:"dropped"`
	Nodes    []NodeSummary `json:"nodes"`
}

// Summarize counts accepted and dropped deliveries overall and per node.
func Summarize(outcomes []replay.Outcome) Summary {
	byNode := make(map[replay.NodeID]*NodeSummary)
	var s Summary
	for _, o := range outcomes {
		ns, ok := byNode[o.Node]
		if !ok {
			ns = &NodeSummary{Node: o.Node}
			byNode[o.Node] = ns
		}
		switch o.Decision {
		case replay.Accepted:
			s.Accepted++
			ns.Accepted++
		case replay.Dropped:
			s.Dropped++
			ns.Dropped++
		}
	}

	s.Nodes = make([]NodeSummary, 0, len(byNode))
	for _, ns := range byNode {
		s.Nodes = append(s.Nodes, *ns)
	}
	sort.Slice(s.Nodes, func(i, j int) bool { return s.Nodes[i].Node < s.Nodes[j].Node })
	return s
}

// Node returns the summary for one node, or a zero summary if it never
// received anything.
func (s Summary) Node(id replay.NodeID) NodeSummary {
	for _, ns := range s.Nodes {
		if ns.Node == id {
			return ns
		}
	}
	return NodeSummary{Node: id}
}

// WriteSummary prints the summary as plain text.
func WriteSummary(w io.Writer, s Summary) error {
	if _, err := fmt.Fprintf(w, "accepted=%d dropped=%d\n", s.Accepted, s.Dropped); err != nil {
		return err
	}
	for _, ns := range s.Nodes {
		if _, err := fmt.Fprintf(w, "  node %d: accepted=%d dropped=%d\n", ns.Node, ns.Accepted, ns.Dropped); err != nil {
			return err
		}
	}
	return nil
}

// Point is one step of the cumulative acceptance curve.
type Point struct {
	Time     time.Duration `json:"time_ns"`
	Accepted int           `json:"accepted"`
}

// Timeline returns the cumulative count of accepted DIOs after each distinct
// outcome time. Outcomes must be in production (time) order.
func Timeline(outcomes []replay.Outcome) []Point {
	var points []Point
	total := 0
	for _, o := range outcomes {
		if o.Decision == replay.Accepted {
			total++
		}
		if n := len(points); n > 0 && points[n-1].Time == o.Time {
			points[n-1].Accepted = total
			continue
		}
		points = append(points, Point{Time: o.Time, Accepted: total})
	}
	return points
}

// WriteTimeline prints the timeline as "t cumulative" rows.
func WriteTimeline(w io.Writer, points []Point) error {
	for _, p := range points {
		if _, err := fmt.Fprintf(w, "%s %d\n", timectrl.FormatSeconds(p.Time), p.Accepted); err != nil {
			return err
		}
	}
	return nil
}
