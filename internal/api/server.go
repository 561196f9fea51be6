// Package api provides the HTTP API for observing and steering the colony.
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
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/persistence"
	"github.com/talgya/mini-colony/internal/persistence/archive"
	"github.com/talgya/mini-colony/internal/world"
)

const (
	defaultMaxStreams  = 4
	defaultCommandRate = 120
	streamCatchUp      = 50
	heartbeatInterval  = 15 * time.Second
)

// Server serves the colony over HTTP.
type Server struct {
	Eng        *engine.Engine
	DB         *persistence.DB // Optional
	ArchiveDir string          // Optional. Snapshots also write an archive here.
	Port       int
	AdminKey   string // Bearer token for POST endpoints. Empty = POST disabled.

	CommandsPerMinute int // Per client IP
	MaxStreams        int // Concurrent SSE and websocket observers

	streams  atomic.Int32
	limiter  *RateLimiter
	upgrader websocket.Upgrader
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	if s.limiter == nil {
		rate := s.CommandsPerMinute
		if rate <= 0 {
			rate = defaultCommandRate
		}
		s.limiter = NewRateLimiter(rate, time.Minute)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true }, // Read-only stream
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/ants", s.handleAnts)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stream", s.handleStream)
	mux.HandleFunc("/api/v1/ws", s.handleWS)

	// Admin endpoints (POST, require bearer token). GET reads current values.
	mux.HandleFunc("/api/v1/playback", s.adminOnly(s.handlePlayback))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/command", s.adminOnly(RateLimitMiddleware(s.limiter, s.handleCommand)))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	handler := s.Handler()
	go s.limiter.Run(ctx)

	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP shutdown", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
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
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no COLONYSIM_ADMIN_KEY set)", http.StatusForbidden)
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

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Eng.Status()
	writeJSON(w, struct {
		engine.Status
		Clock           string  `json:"clock"`
		CatchUpProgress float64 `json:"catch_up_progress"`
		PendingCommands int     `json:"pending_commands"`
	}{
		Status:          st,
		Clock:           st.Time.String(),
		CatchUpProgress: st.FastForward.Progress(),
		PendingCommands: s.Eng.Sim.PendingCommands(),
	})
}

type antSummary struct {
	ID        agents.AntID   `json:"id"`
	Name      string         `json:"name"`
	Role      string         `json:"role"`
	Position  world.Position `json:"position"`
	Ahead     world.Position `json:"ahead"`
	Hunger    float64        `json:"hunger"`
	HungerMax float64        `json:"hunger_max"`
	Tier      string         `json:"tier"`
	Carrying  string         `json:"carrying,omitempty"`
	CanAct    bool           `json:"can_act"`
	Dead      bool           `json:"dead"`
}

// handleAnts lists ants in creation order. ?role=worker|queen and
// ?alive=true filter the list.
func (s *Server) handleAnts(w http.ResponseWriter, r *http.Request) {
	role := strings.ToLower(r.URL.Query().Get("role"))
	aliveOnly := r.URL.Query().Get("alive") == "true"

	result := []antSummary{}
	s.Eng.View(func(sim *engine.Simulation) {
		for _, a := range sim.Ants {
			if role != "" && strings.ToLower(a.Role.String()) != role {
				continue
			}
			if aliveOnly && a.Dead {
				continue
			}
			sum := antSummary{
				ID:        a.ID,
				Name:      a.Name,
				Role:      a.Role.String(),
				Position:  a.Position,
				Ahead:     a.Ahead(),
				Hunger:    a.Hunger.Value(),
				HungerMax: a.Hunger.Max(),
				Tier:      sim.Tiers.Of(a.Hunger).String(),
				CanAct:    a.CanAct(),
				Dead:      a.Dead,
			}
			if !a.Inventory.Empty() {
				sum.Carrying = world.ElementName(a.Inventory.Kind)
			}
			result = append(result, sum)
		}
	})
	writeJSON(w, result)
}

// handleEvents returns recent events, oldest first. ?limit (default 50, max
// 500) and ?category filter the list.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	category := r.URL.Query().Get("category")
	if category == "" {
		writeJSON(w, s.Eng.Sim.Events.Recent(limit))
		return
	}

	filtered := []engine.Event{}
	for _, e := range s.Eng.Sim.Events.Recent(0) {
		if e.Category == category {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	writeJSON(w, filtered)
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Action string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var err error
		switch strings.ToLower(req.Action) {
		case "play":
			err = s.Eng.Play()
		case "pause":
			err = s.Eng.Pause()
		default:
			http.Error(w, "action must be play or pause", http.StatusBadRequest)
			return
		}
		if errors.Is(err, engine.ErrFastForwarding) || errors.Is(err, engine.ErrStopped) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Info("playback requested", "action", req.Action)
	}

	st := s.Eng.Status()
	writeJSON(w, map[string]any{
		"playback":     st.Playback,
		"fast_forward": st.FastForward,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			TicksPerSecond int `json:"ticks_per_second"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.Eng.SetTicksPerSecond(req.TicksPerSecond); err != nil {
			http.Error(w, fmt.Sprintf("ticks_per_second must be 1-%d", engine.MaxUserTicksPerSecond), http.StatusBadRequest)
			return
		}
	}

	writeJSON(w, map[string]int{"ticks_per_second": s.Eng.Status().TicksPerSecond})
}

// handleCommand queues a sandbox command. It is applied on the next tick.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Kind string `json:"kind"`
		X    int    `json:"x"`
		Y    int    `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	pos := world.Position{X: req.X, Y: req.Y}
	var inBounds bool
	s.Eng.View(func(sim *engine.Simulation) {
		inBounds = sim.World.Grid.InBounds(pos)
	})
	if !inBounds {
		http.Error(w, fmt.Sprintf("position %s is outside the world", pos), http.StatusBadRequest)
		return
	}

	cmd := engine.ExternalCommand{Kind: engine.CommandKind(req.Kind), Position: pos}
	if err := s.Eng.Enqueue(cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"queued":   true,
		"position": pos,
	})
}

// handleSnapshot saves the colony to the database and, when configured,
// writes an archive file.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil && s.ArchiveDir == "" {
		http.Error(w, "persistence not available", http.StatusServiceUnavailable)
		return
	}

	snap := s.Eng.Snapshot()
	tick := snap.Story.ElapsedTicks
	resp := map[string]any{"tick": tick, "message": "snapshot saved"}

	if s.DB != nil {
		if err := s.DB.SaveWorldState(snap); err != nil {
			slog.Error("snapshot save failed", "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
	}
	if s.ArchiveDir != "" {
		path := filepath.Join(s.ArchiveDir, archive.Name(tick))
		if err := archive.Write(path, snap); err != nil {
			slog.Error("archive write failed", "path", path, "error", err)
			http.Error(w, "archive failed", http.StatusInternalServerError)
			return
		}
		resp["archive"] = path
	}

	writeJSON(w, resp)
}

// acquireStream reserves an observer slot. The caller must call the
// returned release func when ok.
func (s *Server) acquireStream() (release func(), ok bool) {
	limit := s.MaxStreams
	if limit <= 0 {
		limit = defaultMaxStreams
	}
	if s.streams.Add(1) > int32(limit) {
		s.streams.Add(-1)
		return nil, false
	}
	return func() { s.streams.Add(-1) }, true
}

// handleStream provides an SSE endpoint for real-time event streaming.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	release, ok := s.acquireStream()
	if !ok {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer release()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.Eng.Sim.Events
	subID, ch := events.Subscribe()
	defer events.Unsubscribe(subID)

	for _, e := range events.Recent(streamCatchUp) {
		writeSSEEvent(w, e)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Category, data)
}

// handleWS streams events to a websocket observer. Messages from the client
// are read only to notice the close.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	release, ok := s.acquireStream()
	if !ok {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer release()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events := s.Eng.Sim.Events
	subID, ch := events.Subscribe()
	defer events.Unsubscribe(subID)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(e engine.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteJSON(e)
	}
	for _, e := range events.Recent(streamCatchUp) {
		if err := write(e); err != nil {
			return
		}
	}

	slog.Info("websocket observer connected", "sub_id", subID)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := write(e); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		case <-closed:
			slog.Info("websocket observer disconnected", "sub_id", subID)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
