// Simulation ties together the nest, the colony and the per-tick systems.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/world"
)

// Config holds the tunables a simulation is created with.
type Config struct {
	Seed               int64
	TicksPerSecond     int
	RealTime           bool
	RealSun            bool
	Latitude           float64
	Longitude          float64
	HungerMaxSeconds   float64 // Story seconds for an unfed ant to starve
	InitiativeCooldown int     // Ticks an ant sits out after acting
	TurnChance         float64 // Chance per move of turning around unprompted
	Tiers              agents.Tiers
	InitialWorkers     int
	Gen                world.GenConfig
}

// DefaultConfig returns a sandbox-sized colony.
func DefaultConfig() Config {
	return Config{
		TicksPerSecond:     DefaultTicksPerSecond,
		Latitude:           37.0,
		Longitude:          -122.0,
		HungerMaxSeconds:   3 * SecondsPerDay,
		InitiativeCooldown: 2,
		TurnChance:         0.02,
		Tiers:              agents.DefaultTiers(),
		InitialWorkers:     20,
		Gen:                world.DefaultGenConfig(),
	}
}

// Simulation holds the complete story state. It is not safe for concurrent
// use except where noted; the Engine serializes access.
type Simulation struct {
	State    *SimulationState
	World    *world.World
	Ants     []*agents.Ant // Creation order; every system iterates in this order
	AntIndex map[agents.AntID]*agents.Ant
	Spawner  *agents.Spawner
	Tiers    agents.Tiers
	Events   *EventLog

	cfg  Config
	rng  *rand.Rand
	grid world.Commands // Deferred grid mutations for the current tick

	// External commands queued from other goroutines.
	cmdMu    sync.Mutex
	commands []ExternalCommand

	Stats SimStats
}

// SimStats tracks aggregate colony statistics.
type SimStats struct {
	Alive        int     `json:"alive"`
	Dead         int     `json:"dead"`
	AvgHunger    float64 `json:"avg_hunger"`
	CarryingFood int     `json:"carrying_food"`
	Food         int     `json:"food"`
	Foraged      int     `json:"foraged"`      // Since the last daily report
	Eaten        int     `json:"eaten"`        // Since the last daily report
	Regurgitated int     `json:"regurgitated"` // Since the last daily report
	Starved      int     `json:"starved"`      // Since the last daily report
}

// NewSimulation generates a fresh story at now.
func NewSimulation(cfg Config, now time.Time) *Simulation {
	if cfg.Seed == 0 {
		cfg.Seed = rand.Int63()
	}
	cfg.Gen.Seed = cfg.Seed

	st := NewSimulationState(now, cfg.TicksPerSecond)
	st.Story.IsRealTime = cfg.RealTime
	st.Story.IsRealSun = cfg.RealSun
	st.Story.Latitude = cfg.Latitude
	st.Story.Longitude = cfg.Longitude

	w := world.Generate(cfg.Gen)
	s := newSimulation(cfg, st, w)
	for _, a := range s.Spawner.SpawnColony(w, cfg.InitialWorkers, 0) {
		s.addAnt(a)
	}
	s.updateStats()

	slog.Info("colony founded",
		"seed", cfg.Seed,
		"grid", w.Grid,
		"ants", len(s.Ants),
		"elements", humanize.Comma(int64(w.ElementCount())),
	)
	return s
}

func newSimulation(cfg Config, st *SimulationState, w *world.World) *Simulation {
	return &Simulation{
		State:    st,
		World:    w,
		AntIndex: make(map[agents.AntID]*agents.Ant),
		Spawner: agents.NewSpawner(agents.SpawnConfig{
			Seed:             cfg.Seed,
			HungerMaxSeconds: cfg.HungerMaxSeconds,
			TicksPerSecond:   DefaultTicksPerSecond,
			Cooldown:         cfg.InitiativeCooldown,
		}),
		Tiers:  cfg.Tiers,
		Events: NewEventLog(),
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed + 500)),
	}
}

// CurrentTick returns the story's elapsed ticks.
func (s *Simulation) CurrentTick() uint64 {
	return s.State.Story.ElapsedTicks()
}

// EmitEvent records an event at the current tick.
func (s *Simulation) EmitEvent(category, format string, args ...any) {
	s.Events.Emit(Event{
		Tick:        s.CurrentTick(),
		Category:    category,
		Description: fmt.Sprintf(format, args...),
	})
}

func (s *Simulation) addAnt(a *agents.Ant) {
	s.Ants = append(s.Ants, a)
	s.AntIndex[a.ID] = a
}

func (s *Simulation) removeAnt(id agents.AntID) {
	for i, a := range s.Ants {
		if a.ID == id {
			s.Ants = append(s.Ants[:i], s.Ants[i+1:]...)
			break
		}
	}
	delete(s.AntIndex, id)
}

// stage is one step function of the per-tick pipeline.
type stage struct {
	name    string
	run     func(*Simulation)
	running bool // Only while Playing or FastForwarding
}

// pipeline is the fixed order of every fixed step. Each stage relies on
// the ones before it:
//   - initiative must be refreshed before any system reads CanAct;
//   - grid commands queued by hunger are applied before regurgitation so a
//     digging ant already carries its food and is not a candidate;
//   - wander runs last so moves never invalidate an earlier adjacency check;
//   - the story tick precedes rate control so a fast-forward step counts.
var pipeline = []stage{
	{name: "external_commands", run: (*Simulation).applyExternalCommands},
	{name: "initiative", run: (*Simulation).refreshInitiative, running: true},
	{name: "hunger", run: (*Simulation).hungerSystem, running: true},
	{name: "grid_commands", run: (*Simulation).applyGridCommands, running: true},
	{name: "regurgitation", run: (*Simulation).regurgitationSystem, running: true},
	{name: "wander", run: (*Simulation).wanderSystem, running: true},
	{name: "story_tick", run: func(s *Simulation) { s.State.Story.AdvanceTick() }, running: true},
}

// Step runs one fixed step at wall-clock time now. ticked reports whether
// the story clock advanced.
func (s *Simulation) Step(now time.Time) (ticked bool) {
	running := s.State.Playback.Current().Running()
	for _, st := range pipeline {
		if st.running && !running {
			continue
		}
		st.run(s)
	}
	s.State.UpdateRealWorldTime(now)
	s.State.SetRateOfTime()
	return running
}

func (s *Simulation) refreshInitiative() {
	for _, a := range s.Ants {
		if a.Alive() {
			a.Initiative.Refresh()
		}
	}
}

func (s *Simulation) applyGridCommands() {
	s.grid.Apply(s.World)
}

// TickDay runs every story day: statistics and the daily report.
func (s *Simulation) TickDay(tick uint64) {
	s.updateStats()

	counts := world.ElementCounts(s.World)
	slog.Info("daily report",
		"tick", humanize.Comma(int64(tick)),
		"time", s.State.Story.TimeInfo().String(),
		"alive", s.Stats.Alive,
		"dead", s.Stats.Dead,
		"avg_hunger", fmt.Sprintf("%.1f", s.Stats.AvgHunger),
		"foraged", s.Stats.Foraged,
		"eaten", s.Stats.Eaten,
		"regurgitated", s.Stats.Regurgitated,
		"starved", s.Stats.Starved,
		"food", counts[world.ElementFood],
		"dirt", humanize.Comma(int64(counts[world.ElementDirt])),
		"sand", humanize.Comma(int64(counts[world.ElementSand])),
	)

	// Log recent deaths.
	for _, e := range s.Events.Recent(20) {
		if e.Category == "death" && e.Tick+TicksPerStoryDay > tick {
			slog.Info("event", "category", e.Category, "description", e.Description)
		}
	}

	s.Stats.Foraged, s.Stats.Eaten, s.Stats.Regurgitated, s.Stats.Starved = 0, 0, 0, 0
}

func (s *Simulation) updateStats() {
	s.Stats = s.liveStats()
}

// liveStats recomputes the population fields and keeps the daily counters.
func (s *Simulation) liveStats() SimStats {
	st := s.Stats
	st.Alive, st.Dead, st.CarryingFood = 0, 0, 0
	total := 0.0
	for _, a := range s.Ants {
		if a.Dead {
			st.Dead++
			continue
		}
		st.Alive++
		total += a.Hunger.Value()
		if a.Inventory.Carrying(world.ElementFood) {
			st.CarryingFood++
		}
	}
	st.AvgHunger = 0
	if st.Alive > 0 {
		st.AvgHunger = total / float64(st.Alive)
	}
	st.Food = world.ElementCounts(s.World)[world.ElementFood]
	return st
}

// RefreshStats recomputes the aggregate statistics.
func (s *Simulation) RefreshStats() { s.updateStats() }
