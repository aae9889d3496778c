package telemetry

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/talgya/cattle-herd/internal/engine"
	"github.com/talgya/cattle-herd/internal/world"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBeginRun(t *testing.T) {
	db := openTest(t)
	if db.RunID() != "" {
		t.Fatalf("no run before BeginRun")
	}
	id, err := db.BeginRun(42, []byte("seed: 42\n"))
	if err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("run id %q is not a uuid: %v", id, err)
	}
	if db.RunID() != id {
		t.Fatalf("run id: got %q, want %q", db.RunID(), id)
	}

	runs, err := db.Runs()
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != id || runs[0].Seed != 42 || runs[0].Config != "seed: 42\n" {
		t.Fatalf("runs: %+v", runs)
	}
}

func TestRecordSamplesAndTrace(t *testing.T) {
	db := openTest(t)
	if _, err := db.BeginRun(1, nil); err != nil {
		t.Fatalf("begin run: %v", err)
	}

	for tick := uint64(1); tick <= 5; tick++ {
		states := []engine.AgentState{
			{ID: 1, Position: world.V(float64(tick), 0, 0), Fear: float32(tick), Mode: "walking", Branch: "wander", Area: "none", Alive: true},
			{ID: 2, Position: world.V(0, float64(tick), 0), Panicked: true, Mode: "panic", Branch: "flee", Task: "MoveTo", Area: "panic", Alive: true},
			{ID: 3, Alive: false},
		}
		if err := db.RecordSamples(tick, states); err != nil {
			t.Fatalf("record tick %d: %v", tick, err)
		}
	}

	trace, err := db.AgentTrace(1, 3)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if len(trace) != 3 {
		t.Fatalf("trace length: got %d, want 3", len(trace))
	}
	if trace[0].Tick != 3 || trace[2].Tick != 5 {
		t.Fatalf("trace should hold the newest ticks oldest first: %+v", trace)
	}
	if trace[2].X != 5 || trace[2].Fear != 5 || trace[2].Branch != "wander" {
		t.Fatalf("sample: %+v", trace[2])
	}

	flee, err := db.AgentTrace(2, 1)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if len(flee) != 1 || !flee[0].Panicked || flee[0].Task != "MoveTo" {
		t.Fatalf("panicked sample: %+v", flee)
	}

	dead, err := db.AgentTrace(3, 10)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if len(dead) != 0 {
		t.Fatalf("dead animals are not sampled: %+v", dead)
	}
}

func TestRecordEvents(t *testing.T) {
	db := openTest(t)
	if _, err := db.BeginRun(1, nil); err != nil {
		t.Fatalf("begin run: %v", err)
	}

	events := []engine.Event{
		{Tick: 1, Time: 0.1, Agent: 4, Category: "panic", Description: "animal 4 panicked", Meta: map[string]any{"fear": 0.8}},
		{Tick: 2, Time: 0.2, Category: "zone", Description: "zone 1 deregistered"},
	}
	if err := db.RecordEvents(events); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := db.RecordEvents(nil); err != nil {
		t.Fatalf("empty record: %v", err)
	}

	got, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events: got %d, want 2", len(got))
	}
	if got[0].Category != "zone" || got[0].Meta != nil {
		t.Fatalf("newest event first: %+v", got[0])
	}
	if got[1].Agent != 4 || got[1].Meta["fear"] != 0.8 {
		t.Fatalf("event round trip: %+v", got[1])
	}

	// A new run starts with an empty event log.
	if _, err := db.BeginRun(2, nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got, _ := db.RecentEvents(10); len(got) != 0 {
		t.Fatalf("events leaked across runs: %+v", got)
	}
}

func TestMeta(t *testing.T) {
	db := openTest(t)
	if err := db.SaveMeta("last_tick", "10"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveMeta("last_tick", "20"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err := db.GetMeta("last_tick")
	if err != nil || v != "20" {
		t.Fatalf("get: %q %v", v, err)
	}
	if _, err := db.GetMeta("missing"); err == nil {
		t.Fatalf("missing key should error")
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.SaveMeta("k", "v"); err != nil {
		t.Fatalf("save: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if v, err := db.GetMeta("k"); err != nil || v != "v" {
		t.Fatalf("reopened meta: %q %v", v, err)
	}
}

func TestOpenFilePragmas(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.conn.Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode: got %q, want wal", mode)
	}
	var timeout int
	if err := db.conn.Get(&timeout, "PRAGMA busy_timeout"); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Fatalf("busy_timeout: got %d, want 5000", timeout)
	}
}
