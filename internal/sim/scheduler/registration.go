package scheduler

import "time"

// Registration is a scoped recurring schedule. Releasing it cancels every
// future occurrence; an owner should defer Release so no callback outlives
// it on any exit path.
type Registration struct {
	s  *Scheduler
	id EventID
}

// Acquire registers a recurring event like ScheduleRecurring and returns a
// guard owning it.
func (s *Scheduler) Acquire(firstDelay, interval time.Duration, f func()) (*Registration, error) {
	id, err := s.ScheduleRecurring(firstDelay, interval, f)
	if err != nil {
		return nil, err
	}
	return &Registration{s: s, id: id}, nil
}

// ID returns the underlying event ID.
func (r *Registration) ID() EventID {
	if r == nil {
		return ""
	}
	return r.id
}

// Active reports whether the registration still has a pending occurrence.
func (r *Registration) Active() bool {
	if r == nil || r.s == nil {
		return false
	}
	_, ok := r.s.index[r.id]
	return ok
}

// Release cancels the registration. Safe to call more than once and on a nil
// Registration.
func (r *Registration) Release() {
	if r == nil || r.s == nil {
		return
	}
	r.s.Cancel(r.id)
	r.s = nil
}
