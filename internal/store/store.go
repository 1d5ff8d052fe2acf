// Package store persists finished runs and their per-delivery outcomes in
// SQLite so that mitigation on/off runs can be compared after the fact.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/Cioraz/Iot-Project/internal/replay"
	"github.com/Cioraz/Iot-Project/internal/scenario"
)

var (
	// ErrNotFound is returned when a run ID has no row.
	ErrNotFound = errors.New("store: run not found")
	// ErrNoRunID is returned when saving a result that carries no run ID.
	ErrNoRunID = errors.New("store: result has no run id")
)

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "0001_runs",
			Up: []string{
				`CREATE TABLE runs (
					id            TEXT PRIMARY KEY,
					scenario      TEXT    NOT NULL,
					mitigation    INTEGER NOT NULL,
					final_time_ns INTEGER NOT NULL,
					events_fired  INTEGER NOT NULL,
					transmissions INTEGER NOT NULL,
					accepted      INTEGER NOT NULL,
					dropped       INTEGER NOT NULL,
					created_at    TEXT    NOT NULL
				)`,
				`CREATE TABLE outcomes (
					run_id   TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
					idx      INTEGER NOT NULL,
					node     INTEGER NOT NULL,
					seq      INTEGER NOT NULL,
					time_ns  INTEGER NOT NULL,
					decision TEXT    NOT NULL,
					PRIMARY KEY (run_id, idx)
				)`,
				`CREATE INDEX outcomes_node ON outcomes(run_id, node)`,
			},
			Down: []string{
				`DROP INDEX outcomes_node`,
				`DROP TABLE outcomes`,
				`DROP TABLE runs`,
			},
		},
	},
}

// Run is the stored header of one simulation run.
type Run struct {
	ID            string        `json:"id"`
	Scenario      string        `json:"scenario"`
	Mitigation    bool          `json:"mitigation"`
	FinalTime     time.Duration `json:"final_time_ns"`
	EventsFired   uint64        `json:"events_fired"`
	Transmissions int           `json:"transmissions"`
	Accepted      int           `json:"accepted"`
	Dropped       int           `json:"dropped"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Store wraps a SQLite database holding run history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the wall clock used for created_at.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. ":memory:" gives a private in-process database.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection: sqlite serialises writers anyway, and ":memory:" is
	// per connection.
	db.SetMaxOpenConns(1)

	if _, err := migrate.Exec(db, "sqlite3", migrations, migrate.Up); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate %s: %w", path, err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes res and all its outcomes in one transaction and returns the
// run ID it was stored under.
func (s *Store) SaveRun(ctx context.Context, name string, mitigation bool, res *scenario.Result) (string, error) {
	if res == nil || res.RunID == "" {
		return "", ErrNoRunID
	}
	summary := res.Summary()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs(id, scenario, mitigation, final_time_ns, events_fired, transmissions, accepted, dropped, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, name, mitigation, int64(res.FinalTime), int64(res.EventsFired),
		len(res.Transmissions), summary.Accepted, summary.Dropped,
		s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("store: insert run %s: %w", res.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes(run_id, idx, node, seq, time_ns, decision) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("store: prepare outcomes: %w", err)
	}
	defer stmt.Close()

	for i, o := range res.Outcomes {
		decision, err := o.Decision.MarshalText()
		if err != nil {
			return "", fmt.Errorf("store: outcome %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, res.RunID, i, int64(o.Node), int64(o.Seq), int64(o.Time), string(decision)); err != nil {
			return "", fmt.Errorf("store: insert outcome %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit: %w", err)
	}
	return res.RunID, nil
}

// Outcomes returns the stored outcomes of runID in the order they were produced.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]replay.Outcome, error) {
	if _, err := s.Run(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT node, seq, time_ns, decision FROM outcomes WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: query outcomes: %w", err)
	}
	defer rows.Close()

	out := []replay.Outcome{}
	for rows.Next() {
		var (
			node, seq, at int64
			decision      string
		)
		if err := rows.Scan(&node, &seq, &at, &decision); err != nil {
			return nil, fmt.Errorf("store: scan outcome: %w", err)
		}
		o := replay.Outcome{
			Node: replay.NodeID(node),
			Seq:  replay.SequenceNumber(seq),
			Time: time.Duration(at),
		}
		if err := o.Decision.UnmarshalText([]byte(decision)); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Run fetches one run header.
func (s *Store) Run(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return r, err
}

// Runs lists every stored run, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

const selectRuns = `SELECT id, scenario, mitigation, final_time_ns, events_fired, transmissions, accepted, dropped, created_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r         Run
		finalTime int64
		fired     int64
		created   string
	)
	err := sc.Scan(&r.ID, &r.Scenario, &r.Mitigation, &finalTime, &fired,
		&r.Transmissions, &r.Accepted, &r.Dropped, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("store: scan run: %w", err)
	}
	r.FinalTime = time.Duration(finalTime)
	r.EventsFired = uint64(fired)
	r.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, fmt.Errorf("store: run %s created_at: %w", r.ID, err)
	}
	return r, nil
}
