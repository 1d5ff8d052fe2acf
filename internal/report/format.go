package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Cioraz/Iot-Project/internal/replay"
	"github.com/Cioraz/Iot-Project/timectrl"
)

// WriteNS3Log renders outcomes as ns-3 NS_LOG_INFO style lines, e.g.
//
//	+1.000000000s Node 1 accepted DIO seq=1 at 1
//	+2.000000000s Node 1 DROPPED replayed DIO seq=1 at 2
//
// which is the shape the RPL plotting script parses: the prefix carries the
// log timestamp and the trailing number the event time.
func WriteNS3Log(w io.Writer, outcomes []replay.Outcome) error {
	bw := bufio.NewWriter(w)
	for _, o := range outcomes {
		verb := "accepted"
		if o.Decision == replay.Dropped {
			verb = "DROPPED replayed"
		}
		if _, err := fmt.Fprintf(bw, "+%ss Node %d %s DIO seq=%d at %s\n",
			ns3Seconds(o.Time), o.Node, verb, o.Seq, timectrl.FormatSeconds(o.Time)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ns3Seconds prints a time with nine fractional digits, as ns-3 does.
func ns3Seconds(d time.Duration) string {
	return fmt.Sprintf("%d.%09d", d/time.Second, d%time.Second)
}

// WriteJSONLines writes one JSON object per outcome.
func WriteJSONLines(w io.Writer, outcomes []replay.Outcome) error {
	enc := json.NewEncoder(w)
	for _, o := range outcomes {
		if err := enc.Encode(o); err != nil {
			return fmt.Errorf("encode outcome: %w", err)
		}
	}
	return nil
}

// WriteText writes a compact human-readable table.
func WriteText(w io.Writer, outcomes []replay.Outcome) error {
	bw := bufio.NewWriter(w)
	for _, o := range outcomes {
		if _, err := fmt.Fprintf(bw, "t=%-6s node=%-3d seq=%-4d %s\n",
			timectrl.FormatSeconds(o.Time), o.Node, o.Seq, o.Decision); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Formats names the renderings Write understands.
var Formats = []string{"text", "json", "ns3"}

// CheckFormat reports an error if Write would reject format.
func CheckFormat(format string) error {
	if format == "" {
		return nil
	}
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unsupported output format %q (have %v)", format, Formats)
}

// Write renders outcomes in the named format: "text", "json" or "ns3".
func Write(w io.Writer, format string, outcomes []replay.Outcome) error {
	switch format {
	case "", "text":
		return WriteText(w, outcomes)
	case "json":
		return WriteJSONLines(w, outcomes)
	case "ns3":
		return WriteNS3Log(w, outcomes)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
