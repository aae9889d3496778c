// Package api provides the HTTP inspector for a running herd.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/cattle-herd/internal/engine"
	"github.com/talgya/cattle-herd/internal/telemetry"
	"github.com/talgya/cattle-herd/internal/world"
)

// Server serves the herd state over HTTP.
type Server struct {
	Sim       *engine.Simulation
	Eng       *engine.Engine
	DB        *telemetry.DB // Optional. Enables run ids and agent traces.
	Port      int
	AdminKey  string // Bearer token for POST endpoints. Empty = POST disabled.
	RateLimit int    // Admin writes per minute per client and request class

	srv *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	rate := s.RateLimit
	if rate <= 0 {
		rate = 30
	}
	rl := NewRateLimiter(rate, time.Minute)
	admin := func(class RequestClass, h http.HandlerFunc) http.HandlerFunc {
		return limited(rl, class, s.adminOnly(h))
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentRoutes)
	mux.HandleFunc("/api/v1/zones", s.handleZones)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", admin(ClassControl, s.handleSpeed))
	mux.HandleFunc("/api/v1/impulse", admin(ClassIntervention, postOnly(s.handleImpulse)))
	mux.HandleFunc("/api/v1/fear", admin(ClassIntervention, postOnly(s.handleFear)))
	mux.HandleFunc("/api/v1/lasso", admin(ClassIntervention, postOnly(s.handleLasso)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status()
	status := map[string]any{
		"name":     "herdsim",
		"tick":     st.Tick,
		"time":     st.Time,
		"sim_time": st.SimTime,
		"animals":  st.Animals,
		"zones":    st.Zones,
		"guides":   st.Guides,
		"actors":   st.Actors,
		"stats":    st.Stats,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	if s.DB != nil {
		status["run_id"] = s.DB.RunID()
	}
	writeJSON(w, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Status().Stats)
}

// handleAgents lists every animal. Optional filters: ?branch=flee and
// ?panicked=true.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	branch := r.URL.Query().Get("branch")
	panicked := r.URL.Query().Get("panicked") == "true"

	result := make([]engine.AgentState, 0)
	for _, a := range s.Sim.AgentStates() {
		if branch != "" && a.Branch != branch {
			continue
		}
		if panicked && !a.Panicked {
			continue
		}
		result = append(result, a)
	}
	writeJSON(w, result)
}

// handleAgentRoutes serves /agent/:id and /agent/:id/trace.
func (s *Server) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/agent/"), "/")
	if parts[0] == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	detail, ok := s.Sim.AgentDetail(world.ActorID(id))
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	if len(parts) >= 2 && parts[1] == "trace" {
		s.handleAgentTrace(w, r, world.ActorID(id))
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleAgentTrace(w http.ResponseWriter, r *http.Request, id world.ActorID) {
	if s.DB == nil {
		http.Error(w, "telemetry disabled", http.StatusNotFound)
		return
	}
	limit := queryLimit(r, 100, 1000)
	trace, err := s.DB.AgentTrace(id, limit)
	if err != nil {
		slog.Error("agent trace query failed", "agent", id, "error", err)
		http.Error(w, "trace unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, trace)
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Zones())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 500)
	events := s.Sim.RecentEvents(0)

	if category := r.URL.Query().Get("category"); category != "" {
		filtered := make([]engine.Event, 0)
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleImpulse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID             world.ActorID `json:"id"`
		Impulse        world.Vec3    `json:"impulse"`
		VelocityChange bool          `json:"velocity_change"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.Sim.ApplyImpulse(req.ID, req.Impulse, req.VelocityChange); err != nil {
		writeInterventionError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "id": req.ID})
}

// handleFear scares or calms an animal. Both amounts are optional.
func (s *Server) handleFear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   world.ActorID `json:"id"`
		Fear float32       `json:"fear"`
		Calm float32       `json:"calm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Fear < 0 || req.Calm < 0 {
		http.Error(w, "fear and calm must not be negative", http.StatusBadRequest)
		return
	}
	if req.Fear > 0 {
		if err := s.Sim.AddFear(req.ID, req.Fear); err != nil {
			writeInterventionError(w, err)
			return
		}
	}
	if req.Calm > 0 {
		if err := s.Sim.AddCalm(req.ID, req.Calm); err != nil {
			writeInterventionError(w, err)
			return
		}
	}

	detail, ok := s.Sim.AgentDetail(req.ID)
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"id": req.ID, "fear": detail.Fear, "panicked": detail.Panicked})
}

func (s *Server) handleLasso(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      world.ActorID `json:"id"`
		Owner   world.ActorID `json:"owner"`
		Release bool          `json:"release"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var err error
	if req.Release {
		err = s.Sim.ReleaseLasso(req.ID)
	} else {
		err = s.Sim.Lasso(req.ID, req.Owner)
	}
	if err != nil {
		writeInterventionError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "id": req.ID, "lassoed": !req.Release})
}

func writeInterventionError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrUnknownAgent) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func queryLimit(r *http.Request, def, max int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
