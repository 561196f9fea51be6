package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/persistence"
	"github.com/talgya/mini-colony/internal/persistence/archive"
	"github.com/talgya/mini-colony/internal/world"
)

const adminKey = "test-key"

var epoch = time.Date(2024, 6, 21, 9, 0, 0, 0, time.UTC)

// newTestServer returns a server over a small playing colony.
func newTestServer(t *testing.T) (*Server, *engine.MockTimeProvider) {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.Seed = 3
	cfg.InitialWorkers = 3
	cfg.Gen = world.SmallTestConfig()
	clock := engine.NewMockTimeProvider(epoch)
	eng := engine.NewEngine(engine.NewSimulation(cfg, clock.Now()), clock)
	eng.Start()
	eng.Frame()
	require.Equal(t, "playing", eng.Status().Playback)

	return &Server{Eng: eng, AdminKey: adminKey}, clock
}

func do(t *testing.T, h http.Handler, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth {
		req.Header.Set("Authorization", "Bearer "+adminKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/status", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "playing", body["playback"])
	assert.Equal(t, "Day 1, 08:00", body["clock"])
	assert.EqualValues(t, 1, body["catch_up_progress"])
	assert.EqualValues(t, engine.DefaultTicksPerSecond, body["ticks_per_second"])
}

func TestAdminAuth(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"ticks_per_second":20}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.AdminKey = ""
	rec = do(t, h, http.MethodPost, "/api/v1/speed", `{"ticks_per_second":20}`, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Reads stay public.
	rec = do(t, h, http.MethodGet, "/api/v1/speed", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSpeed(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"ticks_per_second":25}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25, decode[map[string]int](t, rec)["ticks_per_second"])

	for _, body := range []string{`{"ticks_per_second":0}`, `{"ticks_per_second":1501}`, `nope`} {
		rec = do(t, h, http.MethodPost, "/api/v1/speed", body, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, 25, s.Eng.Status().TicksPerSecond)
}

func TestPlayback(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/playback", `{"action":"pause"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	s.Eng.Frame()
	assert.Equal(t, "paused", s.Eng.Status().Playback)

	rec = do(t, h, http.MethodPost, "/api/v1/playback", `{"action":"rewind"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/playback", `{"action":"play"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	s.Eng.Frame()
	assert.Equal(t, "playing", s.Eng.Status().Playback)

	s.Eng.Stop()
	rec = do(t, h, http.MethodPost, "/api/v1/playback", `{"action":"play"}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPlaybackRejectedWhileCatchingUp(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Seed = 3
	cfg.Gen = world.SmallTestConfig()
	clock := engine.NewMockTimeProvider(epoch)
	sim := engine.NewSimulation(cfg, clock.Now())
	sim.State.RealWorld = engine.RealWorldTimeOf(epoch.Add(-time.Hour))
	eng := engine.NewEngine(sim, clock)
	eng.Start()
	clock.Advance(16 * time.Millisecond)
	eng.Frame()
	require.True(t, sim.State.Playback.IsOrBecoming(engine.FastForwarding))

	s := &Server{Eng: eng, AdminKey: adminKey}
	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/playback", `{"action":"pause"}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "fast-forwarding")
}

func TestCommand(t *testing.T) {
	s, clock := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/command", `{"kind":"spawn_food","x":1,"y":0}`, true)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, 1, s.Eng.Sim.PendingCommands())

	clock.Advance(100 * time.Millisecond)
	s.Eng.Frame()
	assert.Equal(t, 0, s.Eng.Sim.PendingCommands())

	rec = do(t, h, http.MethodPost, "/api/v1/command", `{"kind":"summon_dragon","x":1,"y":0}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/command", `{"kind":"spawn_food","x":-1,"y":0}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "outside")

	rec = do(t, h, http.MethodGet, "/api/v1/command", "", false)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCommandRateLimited(t *testing.T) {
	s, _ := newTestServer(t)
	s.CommandsPerMinute = 2
	h := s.Handler()

	body := `{"kind":"spawn_sand","x":2,"y":0}`
	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, "/api/v1/command", body, true)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/v1/command", body, true)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestAnts(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/ants", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]antSummary](t, rec)
	assert.Len(t, all, 4)

	rec = do(t, h, http.MethodGet, "/api/v1/ants?role=queen", "", false)
	queens := decode[[]antSummary](t, rec)
	require.Len(t, queens, 1)
	assert.Equal(t, "Queen", queens[0].Role)
	assert.Equal(t, "Full", queens[0].Tier)

	s.Eng.View(func(sim *engine.Simulation) { sim.Ants[1].Kill() })
	rec = do(t, h, http.MethodGet, "/api/v1/ants?alive=true", "", false)
	assert.Len(t, decode[[]antSummary](t, rec), 3)
}

func TestEvents(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	log := s.Eng.Sim.Events
	for i := 1; i <= 5; i++ {
		cat := "forage"
		if i%2 == 0 {
			cat = "death"
		}
		log.Emit(engine.Event{Tick: uint64(i), Category: cat, Description: "e"})
	}

	rec := do(t, h, http.MethodGet, "/api/v1/events?limit=2", "", false)
	events := decode[[]engine.Event](t, rec)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(5), events[1].Tick)

	rec = do(t, h, http.MethodGet, "/api/v1/events?category=death&limit=1", "", false)
	events = decode[[]engine.Event](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(4), events[0].Tick)
}

func TestSnapshot(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/snapshot", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	dir := t.TempDir()
	db, err := persistence.Open(filepath.Join(dir, "colony.db"))
	require.NoError(t, err)
	defer db.Close()
	s.DB = db
	s.ArchiveDir = filepath.Join(dir, "archive")

	rec = do(t, s.Handler(), http.MethodPost, "/api/v1/snapshot", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, db.HasWorldState())

	path, ok, err := archive.Latest(s.ArchiveDir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, path, decode[map[string]any](t, rec)["archive"])
}

func TestStreamSlots(t *testing.T) {
	s := &Server{MaxStreams: 1}
	release, ok := s.acquireStream()
	require.True(t, ok)
	_, ok = s.acquireStream()
	assert.False(t, ok)
	release()
	_, ok = s.acquireStream()
	assert.True(t, ok)
}

func TestSSEStream(t *testing.T) {
	s, _ := newTestServer(t)
	s.Eng.Sim.Events.Emit(engine.Event{Tick: 1, Category: "forage", Description: "found food"})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: forage\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"found food"`)
}

func TestWebsocketStream(t *testing.T) {
	s, _ := newTestServer(t)
	events := s.Eng.Sim.Events
	events.Emit(engine.Event{Tick: 1, Category: "forage", Description: "catch-up"})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var e engine.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, "catch-up", e.Description)

	events.Emit(engine.Event{Tick: 2, Category: "death", Description: "live"})
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, "live", e.Description)
	assert.Equal(t, uint64(2), e.Tick)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
