package timectrl

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrOutOfRange is returned by ParseSeconds for values that do not fit in a
// time.Duration.
var ErrOutOfRange = errors.New("timectrl: seconds out of range")

// maxSeconds is the largest magnitude, in seconds, a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// SimClock is an interface for reading simulation time. Components that only
// need to stamp outcomes (receivers, attackers, reporters) depend on this
// rather than on the scheduler that owns the clock.
type SimClock interface {
	// Now returns the simulated time elapsed since the start of the run.
	Now() time.Duration
}

// VirtualClock holds the simulated "now" for exactly one simulation run.
// It never reads wall-clock time and never moves backwards.
//
// A VirtualClock is owned by a single scheduler. It is not safe for
// concurrent use; the simulation is single-threaded by construction.
type VirtualClock struct {
	now time.Duration

	listeners []func(time.Duration)
}

// NewVirtualClock constructs a clock starting at simulated time zero.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// Now returns the current simulation time. Implements SimClock.
func (c *VirtualClock) Now() time.Duration {
	return c.now
}

// AddListener registers a callback invoked each time the clock moves forward.
// Listeners run synchronously, before the action that caused the advance.
func (c *VirtualClock) AddListener(fn func(time.Duration)) {
	c.listeners = append(c.listeners, fn)
}

// AdvanceTo moves the clock to t. Moving to the current time is a no-op;
// moving backwards returns an error and leaves the clock untouched.
func (c *VirtualClock) AdvanceTo(t time.Duration) error {
	if t < c.now {
		return fmt.Errorf("timectrl: cannot move clock backwards from %s to %s", c.now, t)
	}
	if t == c.now {
		return nil
	}
	c.now = t
	for _, fn := range c.listeners {
		fn(t)
	}
	return nil
}

// Seconds converts fractional seconds to a simulated duration, rounding to
// the nearest nanosecond so that 0.1 and 1.5 map onto exact tick counts.
func Seconds(s float64) time.Duration {
	return time.Duration(s*float64(time.Second) + copysignHalf(s))
}

// ParseSeconds is Seconds for untrusted input. NaN, infinities and values
// beyond roughly 292 years fail with ErrOutOfRange instead of wrapping.
func ParseSeconds(s float64) (time.Duration, error) {
	if math.IsNaN(s) || math.IsInf(s, 0) || math.Abs(s) >= maxSeconds {
		return 0, fmt.Errorf("%w: %g", ErrOutOfRange, s)
	}
	return Seconds(s), nil
}

func copysignHalf(s float64) float64 {
	if s < 0 {
		return -0.5
	}
	return 0.5
}

// FormatSeconds renders a simulated time as seconds without trailing zeros,
// e.g. 1s => "1", 1.5s => "1.5".
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%g", d.Seconds())
}
