package gardener

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-colony/internal/api"
	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/world"
)

func ant(id uint64, tier string, ratio float64, ahead Position) AntInfo {
	return AntInfo{ID: id, Tier: tier, Hunger: ratio * 100, HungerMax: 100, Ahead: ahead}
}

func snapshot(food int, ants ...AntInfo) *ColonySnapshot {
	s := &ColonySnapshot{Ants: ants}
	s.Status.Playback = "playing"
	s.Status.Stats.Food = food
	return s
}

func TestTriage(t *testing.T) {
	tests := []struct {
		name string
		snap *ColonySnapshot
		want string
	}{
		{"fed and stocked", snapshot(5, ant(1, "Full", 0, Position{}), ant(2, "Peckish", 0.3, Position{})), LevelHealthy},
		{"one hungry", snapshot(5, ant(1, "Hungry", 0.6, Position{}), ant(2, "Full", 0, Position{})), LevelWatch},
		{"low stock", snapshot(1, ant(1, "Full", 0, Position{}), ant(2, "Full", 0, Position{})), LevelWatch},
		{"mostly hungry", snapshot(5, ant(1, "Hungry", 0.6, Position{}), ant(2, "Hungry", 0.6, Position{}), ant(3, "Full", 0, Position{})), LevelWarning},
		{"starving, no food", snapshot(0, ant(1, "Starving", 0.8, Position{}), ant(2, "Full", 0, Position{})), LevelCritical},
		{"starving, plenty of food", snapshot(9, ant(1, "Starving", 0.8, Position{}), ant(2, "Full", 0, Position{})), LevelWatch},
		{"no ants", snapshot(0), LevelHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Triage(tt.snap).CrisisLevel)
		})
	}
}

func TestTriageCatchingUp(t *testing.T) {
	snap := snapshot(0, ant(1, "Starving", 0.9, Position{X: 1}))
	snap.Status.Playback = "fast_forwarding"
	h := Triage(snap)
	require.True(t, h.CatchingUp)

	d := Decide(snap, h, LoadMemory(""), 4)
	assert.Equal(t, ActionNone, d.Action)
}

func TestDecideCriticalFeedsHungriestFirst(t *testing.T) {
	carrier := ant(4, "Starving", 0.95, Position{X: 9, Y: 9})
	carrier.Carrying = "Food"
	snap := snapshot(0,
		ant(1, "Hungry", 0.6, Position{X: 1, Y: 2}),
		ant(2, "Starving", 0.9, Position{X: 2, Y: 2}),
		ant(3, "Starving", 0.8, Position{X: 2, Y: 2}), // same cell as ant 2
		carrier,
		ant(5, "Starving", 0.85, Position{X: -1, Y: 2}), // off the grid
		ant(6, "Full", 0, Position{X: 7, Y: 2}),
	)
	h := Triage(snap)
	require.Equal(t, LevelCritical, h.CrisisLevel)

	d := Decide(snap, h, LoadMemory(""), 8)
	assert.Equal(t, ActionFeed, d.Action)
	assert.Equal(t, []Command{
		{Kind: "spawn_food", X: 2, Y: 2},
		{Kind: "spawn_food", X: 1, Y: 2},
	}, d.Commands)

	d = Decide(snap, h, LoadMemory(""), 1)
	assert.Len(t, d.Commands, 1)
}

func TestDecideWarningWaitsAfterFeeding(t *testing.T) {
	snap := snapshot(5,
		ant(1, "Hungry", 0.6, Position{X: 1, Y: 2}),
		ant(2, "Hungry", 0.7, Position{X: 3, Y: 2}),
		ant(3, "Hungry", 0.55, Position{X: 5, Y: 2}),
	)
	h := Triage(snap)
	require.Equal(t, LevelWarning, h.CrisisLevel)
	mem := LoadMemory("")

	d := Decide(snap, h, mem, 4)
	require.Equal(t, ActionFeed, d.Action)
	assert.Len(t, d.Commands, 2, "warning feeds half")
	assert.Equal(t, Command{Kind: "spawn_food", X: 3, Y: 2}, d.Commands[0])

	mem.Record(CycleRecord{Action: ActionFeed})
	d = Decide(snap, h, mem, 4)
	assert.Equal(t, ActionNone, d.Action)
}

func TestMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	mem := LoadMemory(path)
	_, ok := mem.Last()
	assert.False(t, ok)

	for i := 1; i <= maxRecords+2; i++ {
		mem.Record(CycleRecord{Tick: uint64(i), Action: ActionNone})
	}
	require.Len(t, mem.Records, maxRecords)
	mem.Save()

	loaded := LoadMemory(path)
	require.Len(t, loaded.Records, maxRecords)
	last, ok := loaded.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(maxRecords+2), last.Tick)
	assert.Equal(t, uint64(3), loaded.Records[0].Tick)
}

// fakeColony serves canned observations and records commands.
type fakeColony struct {
	mu       sync.Mutex
	snap     *ColonySnapshot
	commands []Command
	status   int
}

func (f *fakeColony) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Path {
	case "/api/v1/status":
		json.NewEncoder(w).Encode(f.snap.Status)
	case "/api/v1/ants":
		json.NewEncoder(w).Encode(f.snap.Ants)
	case "/api/v1/command":
		var c Command
		json.NewDecoder(r.Body).Decode(&c)
		if f.status != 0 && len(f.commands) > 0 {
			w.WriteHeader(f.status)
			return
		}
		f.commands = append(f.commands, c)
		w.WriteHeader(http.StatusAccepted)
	default:
		http.NotFound(w, r)
	}
}

func TestRunCycle(t *testing.T) {
	colony := &fakeColony{snap: snapshot(0,
		ant(1, "Starving", 0.9, Position{X: 4, Y: 3}),
		ant(2, "Starving", 0.8, Position{X: 6, Y: 3}),
	)}
	srv := httptest.NewServer(colony)
	defer srv.Close()

	c := &Caretaker{
		Observer: NewObserver(srv.URL),
		Actor:    NewActor(srv.URL, "key"),
		Memory:   LoadMemory(filepath.Join(t.TempDir(), "memory.json")),
	}
	d, err := c.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, ActionFeed, d.Action)
	assert.Len(t, colony.commands, 2)

	last, _ := c.Memory.Last()
	assert.Equal(t, 2, last.Drops)
	assert.Equal(t, LevelCritical, last.CrisisLevel)
}

func TestRunCycleStopsWhenRateLimited(t *testing.T) {
	colony := &fakeColony{
		snap: snapshot(0,
			ant(1, "Starving", 0.9, Position{X: 4, Y: 3}),
			ant(2, "Starving", 0.8, Position{X: 6, Y: 3}),
			ant(3, "Starving", 0.8, Position{X: 8, Y: 3}),
		),
		status: http.StatusTooManyRequests,
	}
	srv := httptest.NewServer(colony)
	defer srv.Close()

	c := &Caretaker{
		Observer: NewObserver(srv.URL),
		Actor:    NewActor(srv.URL, "key"),
		Memory:   LoadMemory(""),
	}
	_, err := c.RunCycle()
	assert.ErrorIs(t, err, ErrRateLimited)
	last, _ := c.Memory.Last()
	assert.Equal(t, 1, last.Drops)
}

func TestActSkipsRejected(t *testing.T) {
	colony := &fakeColony{snap: snapshot(0), status: http.StatusBadRequest}
	srv := httptest.NewServer(colony)
	defer srv.Close()

	n, err := NewActor(srv.URL, "key").Act([]Command{
		{Kind: "spawn_food", X: 1}, {Kind: "spawn_food", X: 2}, {Kind: "spawn_food", X: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestAgainstColonyAPI checks the observation and command contract with the
// real colony API.
func TestAgainstColonyAPI(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Seed = 11
	cfg.InitialWorkers = 3
	cfg.Gen = world.SmallTestConfig()
	epoch := time.Date(2024, 6, 21, 9, 0, 0, 0, time.UTC)
	clock := engine.NewMockTimeProvider(epoch)
	eng := engine.NewEngine(engine.NewSimulation(cfg, clock.Now()), clock)
	eng.Start()
	eng.Frame()

	srv := httptest.NewServer((&api.Server{Eng: eng, AdminKey: "key"}).Handler())
	defer srv.Close()

	snap, err := NewObserver(srv.URL).Observe()
	require.NoError(t, err)
	assert.Equal(t, "playing", snap.Status.Playback)
	assert.Equal(t, "Day 1, 08:00", snap.Status.Clock)
	assert.Len(t, snap.Ants, 4)
	assert.Equal(t, 4, snap.Status.Stats.Alive)
	for _, a := range snap.Ants {
		assert.Equal(t, "Full", a.Tier)
		assert.Positive(t, a.HungerMax)
	}

	n, err := NewActor(srv.URL, "key").Act([]Command{{Kind: "spawn_food", X: 0, Y: 0}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, eng.Sim.PendingCommands())

	_, err = NewActor(srv.URL, "wrong").Act([]Command{{Kind: "spawn_food", X: 0, Y: 0}})
	assert.ErrorContains(t, err, "401")
}
