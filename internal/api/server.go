// Package api provides the HTTP control plane for a running board.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token and are rate limited.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/talgya/automata/internal/engine"
	"github.com/talgya/automata/internal/observability"
	"github.com/talgya/automata/internal/persistence"
	"github.com/talgya/automata/internal/rules"
)

// maxSteps bounds a single POST /api/v1/step request.
const maxSteps = 10000

// Server serves one board over HTTP. All board access goes through Runner.
type Server struct {
	Runner   *engine.Runner
	Sim      string
	Metrics  *observability.Collector // Optional
	DB       *persistence.DB          // Optional; snapshots return 503 without it
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Limiter throttles POST endpoints per client. Nil uses 120 per minute.
	Limiter *RateLimiter
}

// Handler builds the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	if s.Limiter == nil {
		s.Limiter = NewRateLimiter(120, time.Minute)
	}
	mux := http.NewServeMux()

	// Public endpoints.
	s.route(mux, "/api/v1/status", s.handleStatus)
	s.route(mux, "/api/v1/board", s.handleBoard)
	s.route(mux, "/api/v1/agents", s.handleAgents)
	s.route(mux, "/api/v1/agent/", s.handleAgent)
	s.route(mux, "/api/v1/rules", s.handleRules)

	// Endpoints that read on GET and change the board on POST.
	s.route(mux, "/api/v1/vars", s.control(s.handleVars))
	s.route(mux, "/api/v1/speed", s.control(s.handleSpeed))

	// Control endpoints (POST only).
	s.route(mux, "/api/v1/step", s.control(postOnly(s.handleStep)))
	s.route(mux, "/api/v1/reset", s.control(postOnly(s.handleReset)))
	s.route(mux, "/api/v1/snapshot", s.control(postOnly(s.handleSnapshot)))

	mux.Handle("/metrics", s.Metrics.Handler())

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server can
// be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "sim", s.Sim, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// route registers h with request metrics and a span named after the route.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	traced := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := observability.StartSpan(r.Context(), "http "+pattern,
			attribute.String("http.method", r.Method),
			attribute.String("sim", s.Sim),
		)
		defer span.End()
		h(w, r.WithContext(ctx))
	})
	mux.Handle(pattern, s.Metrics.Instrument(pattern, traced))
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
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

// control wraps a handler so POST requests need the admin token and pass the
// rate limiter. GET requests pass through.
func (s *Server) control(next http.HandlerFunc) http.HandlerFunc {
	limited := RateLimitMiddleware(s.Limiter, next)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next(w, r)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "control endpoints disabled (no AUTOMATA_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		limited(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var out map[string]any
	s.Runner.Do(func(b *engine.Board) error {
		out = status(b)
		return nil
	})
	out["sim"] = s.Sim
	out["speed"] = s.Runner.Speed()
	out["running"] = s.Runner.Running()
	writeJSON(w, out)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	type layerView struct {
		Layer int        `json:"layer"`
		Rows  [][]string `json:"rows"`
	}
	var out struct {
		BoardView
		Grid []layerView `json:"grid"`
	}
	s.Runner.Do(func(b *engine.Board) error {
		out.BoardView = boardView(b)
		for l := range b.LayerCount() {
			out.Grid = append(out.Grid, layerView{Layer: l, Rows: grid(b, l)})
		}
		return nil
	})
	writeJSON(w, out)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	var out AgentsView
	s.Runner.Do(func(b *engine.Board) error {
		out = agentsView(b)
		return nil
	})
	writeJSON(w, out)
}

// handleAgent serves GET /api/v1/agent/:id.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/agent/")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	var (
		out   AgentView
		found bool
	)
	s.Runner.Do(func(b *engine.Board) error {
		if a, ok := b.Agent(engine.AgentID(id)); ok {
			out, found = agentView(a), true
		}
		return nil
	})
	if !found {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	var text string
	s.Runner.Do(func(b *engine.Board) error {
		text = rules.Format(b.Rules())
		return nil
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, text)
}

// handleVars reads the parameter map on GET and sets one entry on POST.
func (s *Server) handleVars(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Name  string `json:"name"`
			Value any    `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		var m Model
		s.Runner.Do(func(b *engine.Board) error {
			b.Vars()[req.Name] = req.Value
			m = buildModel(b)
			return nil
		})
		slog.Info("var set", "name", req.Name, "value", req.Value)
		writeJSON(w, m)
		return
	}

	var vars map[string]any
	s.Runner.Do(func(b *engine.Board) error {
		vars = buildModel(b).Values
		return nil
	})
	writeJSON(w, vars)
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
		s.Runner.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Runner.Speed()})
}

// handleStep advances the board n ticks (default 1) and returns the model.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	n := 1
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > maxSteps {
			http.Error(w, fmt.Sprintf("n must be 1-%d", maxSteps), http.StatusBadRequest)
			return
		}
		n = parsed
	}

	for range n {
		if err := s.Runner.Step(); err != nil {
			slog.Error("step failed", "error", err)
			http.Error(w, "step failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	s.writeModel(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	err := s.Runner.Do(func(b *engine.Board) error {
		if err := b.Reset(); err != nil {
			return err
		}
		s.Metrics.ObserveBoard(b)
		return nil
	})
	if err != nil {
		slog.Error("reset failed", "error", err)
		http.Error(w, "reset failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("board reset", "sim", s.Sim)
	s.writeModel(w)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	var snap persistence.Snapshot
	s.Runner.Do(func(b *engine.Board) error {
		snap = Snapshot(s.Sim, b)
		return nil
	})
	if err := s.DB.SaveSnapshot(r.Context(), snap); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"step":    snap.Step,
		"message": "snapshot saved",
	})
}

func (s *Server) writeModel(w http.ResponseWriter) {
	var m Model
	s.Runner.Do(func(b *engine.Board) error {
		m = buildModel(b)
		return nil
	})
	writeJSON(w, m)
}

// Snapshot summarizes b for the snapshot store.
func Snapshot(sim string, b *engine.Board) persistence.Snapshot {
	vars := make(map[string]string, len(b.Vars()))
	for k, v := range b.Vars() {
		vars[k] = fmt.Sprint(v)
	}
	return persistence.Snapshot{
		Sim:    sim,
		Step:   b.StepCount(),
		Agents: b.AgentCount(),
		States: b.StateCounts(),
		Vars:   vars,
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
