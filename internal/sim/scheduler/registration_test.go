package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegistration_ReleaseStopsOccurrences(t *testing.T) {
	s := New(nil)

	count := 0
	reg, err := s.Acquire(0, time.Second, func() { count++ })
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !reg.Active() {
		t.Fatalf("freshly acquired registration should be active")
	}
	mustSchedule(t, s, 1500*time.Millisecond, reg.Release)

	_ = s.Run(context.Background(), 10*time.Second)
	if count != 2 {
		t.Fatalf("recurring fired %d times, want 2 (t=0,1)", count)
	}
	if reg.Active() {
		t.Fatalf("released registration still active")
	}
}

func TestRegistration_ReleaseIsIdempotent(t *testing.T) {
	s := New(nil)

	reg, err := s.Acquire(time.Second, time.Second, func() {})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	reg.Release()
	reg.Release()

	var nilReg *Registration
	nilReg.Release()
	if nilReg.Active() {
		t.Fatalf("nil registration reported active")
	}

	if s.Pending() != 0 {
		t.Fatalf("Pending() = %d after release, want 0", s.Pending())
	}
}

func TestRegistration_DeferredReleaseOnEarlyReturn(t *testing.T) {
	s := New(nil)

	count := 0
	setup := func() error {
		reg, err := s.Acquire(time.Second, time.Second, func() { count++ })
		if err != nil {
			return err
		}
		defer reg.Release()
		return errors.New("setup aborted")
	}
	if err := setup(); err == nil {
		t.Fatalf("expected setup error")
	}

	_ = s.Run(context.Background(), 5*time.Second)
	if count != 0 {
		t.Fatalf("callback outlived its released registration, fired %d times", count)
	}
}

func TestRegistration_AcquireValidatesInterval(t *testing.T) {
	s := New(nil)

	reg, err := s.Acquire(0, 0, func() {})
	if !errors.Is(err, ErrInvalidDelay) {
		t.Fatalf("Acquire error = %v, want ErrInvalidDelay", err)
	}
	if reg != nil {
		t.Fatalf("expected nil registration on error")
	}
}
