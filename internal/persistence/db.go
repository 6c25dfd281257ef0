// Package persistence stores sweep results and board snapshots in SQLite.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNoMeta is returned by GetMeta for an unknown key.
var ErrNoMeta = errors.New("meta key not found")

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; harness sinks are called from a single goroutine anyway.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sweeps (
		id TEXT PRIMARY KEY,
		sim TEXT NOT NULL,
		runs INTEGER NOT NULL,
		plan_json TEXT NOT NULL,
		started_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		sweep_id TEXT NOT NULL,
		run INTEGER NOT NULL,
		sim TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		settled INTEGER NOT NULL,
		data_json TEXT NOT NULL,
		vars_json TEXT NOT NULL,
		states_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sim TEXT NOT NULL,
		step INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		states_json TEXT NOT NULL,
		vars_json TEXT NOT NULL,
		taken_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_sweep ON runs(sweep_id, run);
	CREATE INDEX IF NOT EXISTS idx_snapshots_sim ON snapshots(sim);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Sweep is the header row of a sweep.
type Sweep struct {
	ID        string
	Sim       string
	Runs      int
	PlanJSON  string
	StartedAt time.Time
}

// Run is one stored result row.
type Run struct {
	RunID    string
	SweepID  string
	Run      int
	Sim      string
	Width    int
	Height   int
	Steps    int
	Duration time.Duration
	Settled  bool
	Data     map[string]string
	Vars     map[string]string
	States   map[string]int
}

type runRow struct {
	RunID      string `db:"run_id"`
	SweepID    string `db:"sweep_id"`
	Run        int    `db:"run"`
	Sim        string `db:"sim"`
	Width      int    `db:"width"`
	Height     int    `db:"height"`
	Steps      int    `db:"steps"`
	DurationNS int64  `db:"duration_ns"`
	Settled    bool   `db:"settled"`
	DataJSON   string `db:"data_json"`
	VarsJSON   string `db:"vars_json"`
	StatesJSON string `db:"states_json"`
}

// Snapshot is a summary of a live board at one step.
type Snapshot struct {
	Sim     string
	Step    int
	Agents  int
	States  map[string]int
	Vars    map[string]string
	TakenAt time.Time
}

// SaveSweep records the sweep header. plan is stored as JSON.
func (db *DB) SaveSweep(ctx context.Context, id, sim string, runs int, plan any) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	_, err = db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO sweeps (id, sim, runs, plan_json, started_at) VALUES (?, ?, ?, ?, ?)",
		id, sim, runs, string(planJSON), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert sweep %s: %w", id, err)
	}
	return nil
}

// GetSweep loads a sweep header.
func (db *DB) GetSweep(ctx context.Context, id string) (Sweep, error) {
	var row struct {
		ID        string `db:"id"`
		Sim       string `db:"sim"`
		Runs      int    `db:"runs"`
		PlanJSON  string `db:"plan_json"`
		StartedAt int64  `db:"started_at"`
	}
	err := db.conn.GetContext(ctx, &row,
		"SELECT id, sim, runs, plan_json, started_at FROM sweeps WHERE id = ?", id)
	if err != nil {
		return Sweep{}, fmt.Errorf("get sweep %s: %w", id, err)
	}
	return Sweep{
		ID:        row.ID,
		Sim:       row.Sim,
		Runs:      row.Runs,
		PlanJSON:  row.PlanJSON,
		StartedAt: time.Unix(row.StartedAt, 0),
	}, nil
}

// SaveRuns inserts result rows in one transaction.
func (db *DB) SaveRuns(ctx context.Context, runs []Run) error {
	if len(runs) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO runs
		(run_id, sweep_id, run, sim, width, height, steps, duration_ns, settled,
		 data_json, vars_json, states_json)
		VALUES (:run_id, :sweep_id, :run, :sim, :width, :height, :steps, :duration_ns, :settled,
		 :data_json, :vars_json, :states_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range runs {
		row, err := toRow(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert run %d: %w", r.Run, err)
		}
	}

	return tx.Commit()
}

// Runs returns the rows of a sweep ordered by run number.
func (db *DB) Runs(ctx context.Context, sweepID string) ([]Run, error) {
	var rows []runRow
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT run_id, sweep_id, run, sim, width, height, steps, duration_ns, settled,
		        data_json, vars_json, states_json
		 FROM runs WHERE sweep_id = ? ORDER BY run`, sweepID)
	if err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// SaveSnapshot appends a board summary.
func (db *DB) SaveSnapshot(ctx context.Context, s Snapshot) error {
	states, err := json.Marshal(s.States)
	if err != nil {
		return err
	}
	vars, err := json.Marshal(s.Vars)
	if err != nil {
		return err
	}
	if s.TakenAt.IsZero() {
		s.TakenAt = time.Now()
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO snapshots (sim, step, agents, states_json, vars_json, taken_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.Sim, s.Step, s.Agents, string(states), string(vars), s.TakenAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	slog.Debug("snapshot saved", "sim", s.Sim, "step", s.Step, "agents", s.Agents)
	return nil
}

// RecentSnapshots returns the most recent N snapshots of a sim, newest first.
func (db *DB) RecentSnapshots(ctx context.Context, sim string, limit int) ([]Snapshot, error) {
	var rows []struct {
		Sim        string `db:"sim"`
		Step       int    `db:"step"`
		Agents     int    `db:"agents"`
		StatesJSON string `db:"states_json"`
		VarsJSON   string `db:"vars_json"`
		TakenAt    int64  `db:"taken_at"`
	}
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT sim, step, agents, states_json, vars_json, taken_at
		 FROM snapshots WHERE sim = ? ORDER BY id DESC LIMIT ?`, sim, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		s := Snapshot{Sim: row.Sim, Step: row.Step, Agents: row.Agents, TakenAt: time.Unix(row.TakenAt, 0)}
		if err := json.Unmarshal([]byte(row.StatesJSON), &s.States); err != nil {
			return nil, fmt.Errorf("decode snapshot states: %w", err)
		}
		if err := json.Unmarshal([]byte(row.VarsJSON), &s.Vars); err != nil {
			return nil, fmt.Errorf("decode snapshot vars: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNoMeta, key)
	}
	return value, err
}

func toRow(r Run) (runRow, error) {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return runRow{}, err
	}
	vars, err := json.Marshal(r.Vars)
	if err != nil {
		return runRow{}, err
	}
	states, err := json.Marshal(r.States)
	if err != nil {
		return runRow{}, err
	}
	return runRow{
		RunID:      r.RunID,
		SweepID:    r.SweepID,
		Run:        r.Run,
		Sim:        r.Sim,
		Width:      r.Width,
		Height:     r.Height,
		Steps:      r.Steps,
		DurationNS: int64(r.Duration),
		Settled:    r.Settled,
		DataJSON:   string(data),
		VarsJSON:   string(vars),
		StatesJSON: string(states),
	}, nil
}

func fromRow(row runRow) (Run, error) {
	r := Run{
		RunID:    row.RunID,
		SweepID:  row.SweepID,
		Run:      row.Run,
		Sim:      row.Sim,
		Width:    row.Width,
		Height:   row.Height,
		Steps:    row.Steps,
		Duration: time.Duration(row.DurationNS),
		Settled:  row.Settled,
	}
	if err := json.Unmarshal([]byte(row.DataJSON), &r.Data); err != nil {
		return Run{}, fmt.Errorf("decode run %s data: %w", row.RunID, err)
	}
	if err := json.Unmarshal([]byte(row.VarsJSON), &r.Vars); err != nil {
		return Run{}, fmt.Errorf("decode run %s vars: %w", row.RunID, err)
	}
	if err := json.Unmarshal([]byte(row.StatesJSON), &r.States); err != nil {
		return Run{}, fmt.Errorf("decode run %s states: %w", row.RunID, err)
	}
	return r, nil
}
