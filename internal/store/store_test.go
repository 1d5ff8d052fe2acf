package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Cioraz/Iot-Project/internal/scenario"
)

func mustRun(t *testing.T, cfg scenario.Config) *scenario.Result {
	t.Helper()
	res, err := scenario.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("scenario.Run: %v", err)
	}
	return res
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), WithNow(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	res := mustRun(t, scenario.Replay(true))
	id, err := s.SaveRun(ctx, scenario.PresetReplay, true, res)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id != res.RunID {
		t.Fatalf("SaveRun id = %q, want %q", id, res.RunID)
	}

	got, err := s.Outcomes(ctx, id)
	if err != nil {
		t.Fatalf("Outcomes: %v", err)
	}
	if !reflect.DeepEqual(got, res.Outcomes) {
		t.Fatalf("Outcomes round trip mismatch:\n got %+v\nwant %+v", got, res.Outcomes)
	}

	run, err := s.Run(ctx, id)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	summary := res.Summary()
	want := Run{
		ID:            id,
		Scenario:      scenario.PresetReplay,
		Mitigation:    true,
		FinalTime:     res.FinalTime,
		EventsFired:   res.EventsFired,
		Transmissions: len(res.Transmissions),
		Accepted:      summary.Accepted,
		Dropped:       summary.Dropped,
		CreatedAt:     fixed,
	}
	if !reflect.DeepEqual(run, want) {
		t.Fatalf("Run = %+v, want %+v", run, want)
	}
}

func TestRunsListsInOrder(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s, err := Open(":memory:", WithNow(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if runs, err := s.Runs(ctx); err != nil || len(runs) != 0 {
		t.Fatalf("empty Runs = %v, %v", runs, err)
	}

	off := mustRun(t, scenario.Replay(false))
	on := mustRun(t, scenario.Replay(true))
	if _, err := s.SaveRun(ctx, "replay", false, off); err != nil {
		t.Fatalf("SaveRun off: %v", err)
	}
	if _, err := s.SaveRun(ctx, "replay", true, on); err != nil {
		t.Fatalf("SaveRun on: %v", err)
	}

	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Runs len = %d, want 2", len(runs))
	}
	if runs[0].ID != off.RunID || runs[0].Mitigation {
		t.Fatalf("first run = %+v", runs[0])
	}
	if runs[1].ID != on.RunID || !runs[1].Mitigation {
		t.Fatalf("second run = %+v", runs[1])
	}
	if runs[0].Dropped != 0 || runs[1].Dropped != 2 {
		t.Fatalf("dropped counts = %d/%d, want 0/2", runs[0].Dropped, runs[1].Dropped)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	res := mustRun(t, scenario.Baseline(false))
	if _, err := s.SaveRun(ctx, "baseline", false, res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	runs, err := s.Runs(ctx)
	if err != nil || len(runs) != 1 || runs[0].ID != res.RunID {
		t.Fatalf("Runs after reopen = %+v, %v", runs, err)
	}
}

func TestSaveRunErrors(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.SaveRun(ctx, "x", false, nil); !errors.Is(err, ErrNoRunID) {
		t.Fatalf("nil result err = %v, want ErrNoRunID", err)
	}
	if _, err := s.SaveRun(ctx, "x", false, &scenario.Result{}); !errors.Is(err, ErrNoRunID) {
		t.Fatalf("empty run id err = %v, want ErrNoRunID", err)
	}

	res := mustRun(t, scenario.Baseline(false))
	if _, err := s.SaveRun(ctx, "baseline", false, res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if _, err := s.SaveRun(ctx, "baseline", false, res); err == nil {
		t.Fatalf("expected duplicate run id to fail")
	}

	// The failed duplicate must not leave stray outcomes behind.
	got, err := s.Outcomes(ctx, res.RunID)
	if err != nil {
		t.Fatalf("Outcomes: %v", err)
	}
	if len(got) != len(res.Outcomes) {
		t.Fatalf("outcomes = %d, want %d", len(got), len(res.Outcomes))
	}
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.Run(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Run err = %v, want ErrNotFound", err)
	}
	if _, err := s.Outcomes(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Outcomes err = %v, want ErrNotFound", err)
	}
}
