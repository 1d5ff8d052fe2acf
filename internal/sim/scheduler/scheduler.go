package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/btree"

	"github.com/Cioraz/Iot-Project/timectrl"
)

// ErrInvalidDelay is returned when a negative delay, or a non-positive
// recurrence interval, is passed to one of the Schedule methods.
var ErrInvalidDelay = errors.New("invalid delay")

// EventID is an opaque handle for a scheduled event. For recurring events the
// same ID addresses every future occurrence of the registration.
type EventID string

// MetricsRecorder receives a notification for every fired event.
type MetricsRecorder interface {
	ObserveEventFired(pending int)
}

// event is one pending occurrence. Recurring registrations produce a new
// event value per occurrence; only id is shared between them.
type event struct {
	id       EventID
	at       time.Duration
	seq      uint64
	f        func()
	interval time.Duration // > 0 for recurring registrations
}

// less orders events by fire time, then by insertion sequence so that events
// sharing an instant fire in the order they were scheduled.
func less(a, b *event) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	return a.seq < b.seq
}

// Scheduler is a deterministic discrete-event scheduler. It owns a
// VirtualClock and advances it to each event's fire time before invoking the
// event's callback.
//
// Typical usage is "set up all events, then Run once":
//
//	s := scheduler.New(timectrl.NewVirtualClock())
//	s.Schedule(time.Second, deliver)
//	err := s.Run(ctx, 10*time.Second)
//
// Callbacks run synchronously on the goroutine that called Run and may
// schedule or cancel further events. A Scheduler is not safe for concurrent
// use.
type Scheduler struct {
	clock *timectrl.VirtualClock

	counter uint64 // EventID counter
	seq     uint64 // insertion order across all occurrences
	pending *btree.BTreeG[*event]
	index   map[EventID]*event // current pending occurrence per ID

	running   bool
	finished  bool
	fired     uint64
	abandoned int

	metrics MetricsRecorder
}

// Option customises Scheduler construction.
type Option func(*Scheduler)

// WithMetricsRecorder attaches a recorder notified after every fired event.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New creates a scheduler driving the given clock. A nil clock gets a fresh
// VirtualClock starting at zero.
func New(clock *timectrl.VirtualClock, opts ...Option) *Scheduler {
	if clock == nil {
		clock = timectrl.NewVirtualClock()
	}
	s := &Scheduler{
		clock:   clock,
		pending: btree.NewG(16, less),
		index:   make(map[EventID]*event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current simulation time.
func (s *Scheduler) Now() time.Duration {
	return s.clock.Now()
}

// Clock exposes the underlying clock for components that only read time.
func (s *Scheduler) Clock() timectrl.SimClock {
	return s.clock
}

// Schedule registers f to run once at Now()+delay.
func (s *Scheduler) Schedule(delay time.Duration, f func()) (EventID, error) {
	if delay < 0 {
		return "", fmt.Errorf("schedule: delay %s: %w", delay, ErrInvalidDelay)
	}
	return s.add(delay, 0, f), nil
}

// ScheduleRecurring registers f to run at Now()+firstDelay and then every
// interval until the returned ID is cancelled or the run stops.
func (s *Scheduler) ScheduleRecurring(firstDelay, interval time.Duration, f func()) (EventID, error) {
	if firstDelay < 0 {
		return "", fmt.Errorf("schedule recurring: first delay %s: %w", firstDelay, ErrInvalidDelay)
	}
	if interval <= 0 {
		return "", fmt.Errorf("schedule recurring: interval %s: %w", interval, ErrInvalidDelay)
	}
	return s.add(firstDelay, interval, f), nil
}

func (s *Scheduler) add(delay, interval time.Duration, f func()) EventID {
	s.counter++
	id := EventID(fmt.Sprintf("ev-%d", s.counter))

	// Once the run has terminated the handle is still valid but the event
	// can never fire, so there is nothing to store.
	if s.finished {
		return id
	}

	s.enqueue(&event{
		id:       id,
		at:       addTime(s.clock.Now(), delay),
		f:        f,
		interval: interval,
	})
	return id
}

func (s *Scheduler) enqueue(ev *event) {
	s.seq++
	ev.seq = s.seq
	s.pending.ReplaceOrInsert(ev)
	s.index[ev.id] = ev
}

// Cancel removes a pending event, or stops a recurring registration. It is a
// no-op if the ID is unknown, already fired, or already cancelled.
func (s *Scheduler) Cancel(id EventID) {
	ev, ok := s.index[id]
	if !ok {
		return
	}
	delete(s.index, id)
	// The occurrence may be the one currently firing, in which case it is no
	// longer in the tree and Delete is a no-op.
	s.pending.Delete(ev)
}

// Pending returns the number of events waiting to fire.
func (s *Scheduler) Pending() int {
	return s.pending.Len()
}

// Fired returns the number of event occurrences invoked so far.
func (s *Scheduler) Fired() uint64 {
	return s.fired
}

// Abandoned returns how many events were still pending beyond the stop time
// when Run terminated.
func (s *Scheduler) Abandoned() int {
	return s.abandoned
}

// Finished reports whether Run has terminated.
func (s *Scheduler) Finished() bool {
	return s.finished
}

// Run fires events in (time, scheduling order) until no pending event has a
// fire time <= stop. The context is checked between events; if it is done
// the run terminates with ctx.Err().
//
// Run is single-shot: once it returns, later calls return nil immediately and
// newly scheduled events never fire. A nested call from inside a callback is
// also a no-op.
func (s *Scheduler) Run(ctx context.Context, stop time.Duration) error {
	if s.finished || s.running {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.running = true
	defer s.finish()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, ok := s.pending.Min()
		if !ok || ev.at > stop {
			return nil
		}
		s.pending.DeleteMin()

		if err := s.clock.AdvanceTo(ev.at); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		s.fire(ev)
	}
}

func (s *Scheduler) fire(ev *event) {
	if ev.interval == 0 {
		delete(s.index, ev.id)
	}

	s.fired++
	if ev.f != nil {
		ev.f()
	}

	// Re-arm recurring registrations unless the callback cancelled its own ID.
	// An occurrence past MaxTime cannot be represented and ends the series.
	if ev.interval > 0 && s.index[ev.id] == ev {
		if ev.at > MaxTime-ev.interval {
			delete(s.index, ev.id)
		} else {
			s.enqueue(&event{
				id:       ev.id,
				at:       ev.at + ev.interval,
				f:        ev.f,
				interval: ev.interval,
			})
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveEventFired(s.pending.Len())
	}
}

// MaxTime is the latest representable fire time. Delays that would land past
// it are clamped to it.
const MaxTime = time.Duration(math.MaxInt64)

// addTime returns now+delay, saturating at MaxTime. delay must be >= 0.
func addTime(now, delay time.Duration) time.Duration {
	if delay > MaxTime-now {
		return MaxTime
	}
	return now + delay
}

func (s *Scheduler) finish() {
	s.running = false
	s.finished = true
	s.abandoned = s.pending.Len()
	s.pending.Clear(false)
	clear(s.index)
}
