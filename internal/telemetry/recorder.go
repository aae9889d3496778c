// Package telemetry records herd traces to SQLite for offline diagnostics.
// The simulation never reads a trace back.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/cattle-herd/internal/engine"
	"github.com/talgya/cattle-herd/internal/world"
)

// DB wraps a SQLite connection holding one or more recorded runs.
type DB struct {
	conn *sqlx.DB
	run  string
}

// Run is one recorded simulation run.
type Run struct {
	ID        string `db:"id" json:"id"`
	Seed      int64  `db:"seed" json:"seed"`
	Config    string `db:"config" json:"-"`
	StartedAt string `db:"started_at" json:"started_at"`
}

// Sample is one animal's state at one tick.
type Sample struct {
	Tick     uint64  `db:"tick" json:"tick"`
	Agent    uint64  `db:"agent" json:"agent"`
	X        float64 `db:"x" json:"x"`
	Y        float64 `db:"y" json:"y"`
	Z        float64 `db:"z" json:"z"`
	Fear     float64 `db:"fear" json:"fear"`
	Panicked bool    `db:"panicked" json:"panicked"`
	Mode     string  `db:"mode" json:"mode"`
	Branch   string  `db:"branch" json:"branch"`
	Task     string  `db:"task" json:"task"`
	Area     string  `db:"area" json:"area"`
}

type eventRow struct {
	Tick        uint64  `db:"tick"`
	Time        float64 `db:"time"`
	Agent       uint64  `db:"agent"`
	Category    string  `db:"category"`
	Description string  `db:"description"`
	Meta        string  `db:"meta_json"`
}

// Open opens or creates a trace database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Every new connection would see its own empty database.
		conn.SetMaxOpenConns(1)
	}

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
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		config TEXT NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS samples (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL,
		fear REAL NOT NULL,
		panicked INTEGER NOT NULL,
		mode TEXT NOT NULL,
		branch TEXT NOT NULL,
		task TEXT NOT NULL,
		area TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		time REAL NOT NULL,
		agent INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		meta_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_run_agent ON samples(run_id, agent, tick);
	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun starts a new run and returns its id. Samples and events recorded
// afterwards belong to it.
func (db *DB) BeginRun(seed int64, config []byte) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, config, started_at) VALUES (?, ?, ?, ?)",
		id, seed, string(config), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	db.run = id
	slog.Info("telemetry run started", "run", id, "seed", seed)
	return id, nil
}

// RunID returns the current run, or "" before BeginRun.
func (db *DB) RunID() string { return db.run }

// Runs lists every recorded run, newest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT id, seed, config, started_at FROM runs ORDER BY started_at DESC, rowid DESC")
	return runs, err
}

// RecordSamples writes one sample per animal for tick.
func (db *DB) RecordSamples(tick uint64, states []engine.AgentState) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO samples
		(run_id, tick, agent, x, y, z, fear, panicked, mode, branch, task, area)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range states {
		if !st.Alive {
			continue
		}
		_, err := stmt.Exec(
			db.run, tick, uint64(st.ID),
			st.Position.X, st.Position.Y, st.Position.Z,
			st.Fear, st.Panicked, st.Mode, st.Branch, st.Task, st.Area,
		)
		if err != nil {
			return fmt.Errorf("insert sample %d: %w", st.ID, err)
		}
	}

	return tx.Commit()
}

// RecordEvents appends events to the current run.
func (db *DB) RecordEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		meta := []byte("{}")
		if len(e.Meta) > 0 {
			if meta, err = json.Marshal(e.Meta); err != nil {
				return fmt.Errorf("encode event meta: %w", err)
			}
		}
		_, err := tx.Exec(
			`INSERT INTO events (run_id, tick, time, agent, category, description, meta_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			db.run, e.Tick, e.Time, uint64(e.Agent), e.Category, e.Description, string(meta),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a value by key.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

// RecentEvents returns the newest events of the current run, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		`SELECT tick, time, agent, category, description, meta_json FROM events
		WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		db.run, limit,
	)
	if err != nil {
		return nil, err
	}

	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		e := engine.Event{
			Tick:        r.Tick,
			Time:        r.Time,
			Agent:       world.ActorID(r.Agent),
			Category:    r.Category,
			Description: r.Description,
		}
		if r.Meta != "" && r.Meta != "{}" {
			if err := json.Unmarshal([]byte(r.Meta), &e.Meta); err != nil {
				return nil, fmt.Errorf("decode event meta: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, nil
}

// AgentTrace returns up to limit of the newest samples of one animal in the
// current run, oldest first.
func (db *DB) AgentTrace(id world.ActorID, limit int) ([]Sample, error) {
	var samples []Sample
	err := db.conn.Select(&samples,
		`SELECT tick, agent, x, y, z, fear, panicked, mode, branch, task, area FROM (
			SELECT * FROM samples WHERE run_id = ? AND agent = ? ORDER BY tick DESC LIMIT ?
		) ORDER BY tick ASC`,
		db.run, uint64(id), limit,
	)
	return samples, err
}
