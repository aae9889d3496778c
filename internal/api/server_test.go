package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/talgya/cattle-herd/internal/config"
	"github.com/talgya/cattle-herd/internal/engine"
	"github.com/talgya/cattle-herd/internal/telemetry"
	"github.com/talgya/cattle-herd/internal/world"
)

const testKey = "secret"

type fixture struct {
	srv    *Server
	h      http.Handler
	animal world.ActorID
}

func newFixture(t *testing.T, withDB bool) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Seed = 3
	cfg.Nav = "plain"
	sim, err := engine.NewSimulation(cfg)
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	c := sim.SpawnAgent(world.V(0, 0, 0))
	sim.Step(cfg.Tick.DT)

	s := &Server{Sim: sim, Eng: engine.NewEngine(cfg.Tick.DT), AdminKey: testKey, RateLimit: 100}
	if withDB {
		db, err := telemetry.Open(":memory:")
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		if _, err := db.BeginRun(cfg.Seed, nil); err != nil {
			t.Fatalf("begin run: %v", err)
		}
		if err := db.RecordSamples(sim.CurrentTick(), sim.AgentStates()); err != nil {
			t.Fatalf("record: %v", err)
		}
		s.DB = db
	}
	return &fixture{srv: s, h: s.Handler(), animal: c.Agent.ID}
}

func (f *fixture) do(method, path, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(http.MethodGet, "/api/v1/status", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code: %d", rec.Code)
	}
	var got map[string]any
	decode(t, rec, &got)
	if got["animals"] != float64(1) || got["tick"] != float64(1) {
		t.Fatalf("status: %v", got)
	}
	if got["run_id"] != f.srv.DB.RunID() {
		t.Fatalf("run id: got %v", got["run_id"])
	}
}

func TestAgents(t *testing.T) {
	f := newFixture(t, false)

	var all []engine.AgentState
	decode(t, f.do(http.MethodGet, "/api/v1/agents", "", ""), &all)
	if len(all) != 1 || all[0].ID != f.animal {
		t.Fatalf("agents: %+v", all)
	}

	var panicked []engine.AgentState
	decode(t, f.do(http.MethodGet, "/api/v1/agents?panicked=true", "", ""), &panicked)
	if len(panicked) != 0 {
		t.Fatalf("calm animal listed as panicked: %+v", panicked)
	}
}

func TestAgentDetail(t *testing.T) {
	f := newFixture(t, false)
	path := "/api/v1/agent/" + strconv.FormatUint(uint64(f.animal), 10)

	rec := f.do(http.MethodGet, path, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("detail code: %d %s", rec.Code, rec.Body.String())
	}
	var got struct {
		ID         world.ActorID  `json:"id"`
		Attributes map[string]any `json:"attributes"`
	}
	decode(t, rec, &got)
	if got.ID != f.animal || len(got.Attributes) == 0 {
		t.Fatalf("detail: %+v", got)
	}

	if rec := f.do(http.MethodGet, "/api/v1/agent/999", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown agent: got %d, want 404", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/v1/agent/cow", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: got %d, want 400", rec.Code)
	}
	if rec := f.do(http.MethodGet, path+"/trace", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("trace without telemetry: got %d, want 404", rec.Code)
	}
}

func TestAgentTrace(t *testing.T) {
	f := newFixture(t, true)
	path := "/api/v1/agent/" + strconv.FormatUint(uint64(f.animal), 10) + "/trace"

	var trace []telemetry.Sample
	rec := f.do(http.MethodGet, path, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("trace code: %d %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &trace)
	if len(trace) != 1 || trace[0].Tick != 1 {
		t.Fatalf("trace: %+v", trace)
	}
}

func TestAdminAuth(t *testing.T) {
	f := newFixture(t, false)
	body := `{"speed": 5}`

	if rec := f.do(http.MethodPost, "/api/v1/speed", body, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d, want 401", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/v1/speed", body, "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d, want 401", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/v1/speed", body, testKey); rec.Code != http.StatusOK {
		t.Fatalf("good token: got %d", rec.Code)
	}
	if f.srv.Eng.Speed() != 5 {
		t.Fatalf("speed: got %g, want 5", f.srv.Eng.Speed())
	}

	// GET on a mixed endpoint stays public.
	var speed map[string]float64
	decode(t, f.do(http.MethodGet, "/api/v1/speed", "", ""), &speed)
	if speed["speed"] != 5 {
		t.Fatalf("speed view: %v", speed)
	}

	f.srv.AdminKey = ""
	h := f.srv.Handler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/speed", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("disabled admin: got %d, want 403", rec.Code)
	}
}

func TestFearAndLasso(t *testing.T) {
	f := newFixture(t, false)
	id := strconv.FormatUint(uint64(f.animal), 10)

	rec := f.do(http.MethodPost, "/api/v1/fear", `{"id": `+id+`, "fear": 40}`, testKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("fear: %d %s", rec.Code, rec.Body.String())
	}
	var fear struct {
		Fear float32 `json:"fear"`
	}
	decode(t, rec, &fear)
	if fear.Fear < 39 {
		t.Fatalf("fear after intervention: got %g", fear.Fear)
	}

	if rec := f.do(http.MethodGet, "/api/v1/fear", "", testKey); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET fear: got %d, want 405", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/v1/fear", `{"id": 999, "fear": 1}`, testKey); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown agent: got %d, want 404", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/v1/fear", `{"id":`, testKey); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: got %d, want 400", rec.Code)
	}

	if rec := f.do(http.MethodPost, "/api/v1/lasso", `{"id": `+id+`, "owner": 1048576}`, testKey); rec.Code != http.StatusOK {
		t.Fatalf("lasso: %d %s", rec.Code, rec.Body.String())
	}
	var lassoed []engine.AgentState
	decode(t, f.do(http.MethodGet, "/api/v1/agents", "", ""), &lassoed)
	if !lassoed[0].Lassoed {
		t.Fatalf("animal should be lassoed: %+v", lassoed[0])
	}

	var events []engine.Event
	decode(t, f.do(http.MethodGet, "/api/v1/events?category=intervention", "", ""), &events)
	if len(events) == 0 {
		t.Fatalf("interventions should be logged")
	}
	for _, e := range events {
		if e.Category != "intervention" {
			t.Fatalf("category filter leaked %+v", e)
		}
	}
}

func TestImpulse(t *testing.T) {
	f := newFixture(t, false)
	id := strconv.FormatUint(uint64(f.animal), 10)
	body := `{"id": ` + id + `, "impulse": {"x": 300, "y": 0, "z": 0}, "velocity_change": true}`
	if rec := f.do(http.MethodPost, "/api/v1/impulse", body, testKey); rec.Code != http.StatusOK {
		t.Fatalf("impulse: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimitBudgets(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	clock := time.Unix(1000, 0)
	rl.now = func() time.Time { return clock }

	steps := []struct {
		client string
		class  RequestClass
		want   bool
	}{
		{"a", ClassIntervention, true},
		{"a", ClassIntervention, true},
		{"a", ClassIntervention, false},
		{"a", ClassControl, true},
		{"b", ClassIntervention, true},
		{"a", ClassControl, true},
		{"a", ClassControl, false},
	}
	for i, st := range steps {
		if got := rl.Allow(st.client, st.class); got != st.want {
			t.Fatalf("step %d (%s %s): got %v, want %v", i, st.client, st.class, got, st.want)
		}
	}
	if got := rl.RetryAfter("a", ClassIntervention); got != 60 && got != 61 {
		t.Fatalf("retry-after: got %d", got)
	}

	clock = clock.Add(time.Minute)
	if !rl.Allow("a", ClassIntervention) {
		t.Fatalf("budget should refill after the window")
	}
	if got := rl.RetryAfter("nobody", ClassControl); got != 0 {
		t.Fatalf("retry-after for unseen client: got %d", got)
	}
}

func TestRateLimitRoutes(t *testing.T) {
	f := newFixture(t, false)
	f.srv.RateLimit = 1
	f.h = f.srv.Handler()
	id := strconv.FormatUint(uint64(f.animal), 10)
	fear := `{"id": ` + id + `, "fear": 5}`

	if rec := f.do(http.MethodPost, "/api/v1/fear", fear, testKey); rec.Code != http.StatusOK {
		t.Fatalf("first fear: %d", rec.Code)
	}
	rec := f.do(http.MethodPost, "/api/v1/lasso", `{"id": `+id+`, "owner": 1048576}`, testKey)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("lasso shares the intervention budget: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("429 without Retry-After")
	}
	if rec := f.do(http.MethodPost, "/api/v1/speed", `{"speed": 2}`, testKey); rec.Code != http.StatusOK {
		t.Fatalf("speed has its own budget: got %d", rec.Code)
	}
	for i := 0; i < 3; i++ {
		if rec := f.do(http.MethodGet, "/api/v1/speed", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("reads are not metered: got %d", rec.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	if got := clientIP(req); got != "10.0.0.5" {
		t.Fatalf("remote: got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "192.168.1.9, 10.0.0.1")
	if got := clientIP(req); got != "192.168.1.9" {
		t.Fatalf("forwarded: got %q", got)
	}
}
