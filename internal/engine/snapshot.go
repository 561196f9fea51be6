// Plain data views of a story, sufficient to rebuild it exactly.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/world"
)

// AntSnapshot is the plain view of one ant.
type AntSnapshot struct {
	ID          agents.AntID            `json:"id"`
	UUID        uuid.UUID               `json:"uuid"`
	Name        string                  `json:"name"`
	Role        agents.Role             `json:"role"`
	Position    world.Position          `json:"position"`
	Orientation agents.Orientation      `json:"orientation"`
	Inventory   agents.Inventory        `json:"inventory"`
	Hunger      agents.HungerState      `json:"hunger"`
	Initiative  *agents.InitiativeState `json:"initiative,omitempty"` // Nil for dead ants
	Dead        bool                    `json:"dead"`
	BornTick    uint64                  `json:"born_tick"`
}

// WorldSnapshot is everything persisted for a story.
type WorldSnapshot struct {
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	SurfaceLevel   int             `json:"surface_level"`
	Seed           int64           `json:"seed"`
	Story          StoryTimeState  `json:"story"`
	RealWorldTime  RealWorldTime   `json:"real_world_time"`
	TicksPerSecond int             `json:"ticks_per_second"`
	NextAntID      agents.AntID    `json:"next_ant_id"`
	Ants           []AntSnapshot   `json:"ants"`
	Elements       []world.Element `json:"elements"` // Placed and carried
}

// Snapshot captures the story as plain data.
func (s *Simulation) Snapshot() WorldSnapshot {
	snap := WorldSnapshot{
		Width:          s.World.Grid.Width(),
		Height:         s.World.Grid.Height(),
		SurfaceLevel:   s.World.SurfaceLevel,
		Seed:           s.cfg.Seed,
		Story:          s.State.Story.State(),
		RealWorldTime:  s.State.RealWorld,
		TicksPerSecond: s.State.TicksPerSecond,
		NextAntID:      s.Spawner.NextID(),
		Ants:           make([]AntSnapshot, 0, len(s.Ants)),
	}
	for _, a := range s.Ants {
		as := AntSnapshot{
			ID:          a.ID,
			UUID:        a.UUID,
			Name:        a.Name,
			Role:        a.Role,
			Position:    a.Position,
			Orientation: a.Orientation,
			Inventory:   a.Inventory,
			Hunger:      a.Hunger.State(),
			Dead:        a.Dead,
			BornTick:    a.BornTick,
		}
		if a.Initiative != nil {
			st := a.Initiative.State()
			as.Initiative = &st
		}
		snap.Ants = append(snap.Ants, as)
	}
	for _, e := range s.World.Elements() {
		snap.Elements = append(snap.Elements, *e)
	}
	return snap
}

// RestoreSimulation rebuilds a story from a snapshot. The story comes back
// Stopped; the engine's Start reconciles the gap since RealWorldTime.
func RestoreSimulation(cfg Config, snap WorldSnapshot) (*Simulation, error) {
	if snap.Width <= 0 || snap.Height <= 0 {
		return nil, fmt.Errorf("restore: invalid grid size %dx%d", snap.Width, snap.Height)
	}
	story, err := RestoreStoryTime(snap.Story)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}

	tps := snap.TicksPerSecond
	if tps < 1 || tps > MaxUserTicksPerSecond {
		tps = DefaultTicksPerSecond
	}
	st := &SimulationState{
		Story:          story,
		RealWorld:      snap.RealWorldTime,
		TicksPerSecond: tps,
		Step:           NewFixedStep(PeriodForRate(tps)),
	}

	w := world.NewWorld(snap.Width, snap.Height, snap.SurfaceLevel)
	for _, e := range snap.Elements {
		if err := w.Restore(e); err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
	}

	if snap.Seed != 0 {
		cfg.Seed = snap.Seed
	}
	s := newSimulation(cfg, st, w)

	for _, as := range snap.Ants {
		a, err := restoreAnt(as, w)
		if err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
		if _, dup := s.AntIndex[a.ID]; dup {
			return nil, fmt.Errorf("restore: duplicate ant id %d", a.ID)
		}
		s.addAnt(a)
	}

	next := snap.NextAntID
	for _, a := range s.Ants {
		if a.ID >= next {
			next = a.ID + 1
		}
	}
	s.Spawner.SetNextID(next)
	s.updateStats()
	return s, nil
}

func restoreAnt(as AntSnapshot, w *world.World) (*agents.Ant, error) {
	a := &agents.Ant{
		ID:          as.ID,
		UUID:        as.UUID,
		Name:        as.Name,
		Role:        as.Role,
		Position:    as.Position,
		Orientation: as.Orientation,
		Inventory:   as.Inventory,
		Hunger:      agents.RestoreHunger(as.Hunger),
		Dead:        as.Dead,
		BornTick:    as.BornTick,
	}
	if as.Initiative != nil && !as.Dead {
		ini, err := agents.RestoreInitiative(*as.Initiative)
		if err != nil {
			return nil, fmt.Errorf("ant %d: %w", as.ID, err)
		}
		a.Initiative = ini
	}
	if !a.Inventory.Empty() {
		e, ok := w.Element(a.Inventory.Element)
		if !ok || !e.Carried {
			return nil, fmt.Errorf("ant %d carries missing element %d", as.ID, a.Inventory.Element)
		}
	}
	return a, nil
}

// Status is a point-in-time summary for observers.
type Status struct {
	Tick           uint64           `json:"tick"`
	Time           TimeInfo         `json:"time"`
	Nighttime      bool             `json:"nighttime"`
	Playback       string           `json:"playback"`
	TicksPerSecond int              `json:"ticks_per_second"`
	FastForward    FastForwardState `json:"fast_forward"`
	Stats          SimStats         `json:"stats"`
}

// Status summarizes the story at wall-clock time now. It only reads.
func (s *Simulation) Status(now time.Time) Status {
	return Status{
		Tick:           s.CurrentTick(),
		Time:           s.State.Story.TimeInfo(),
		Nighttime:      s.State.Story.IsNighttime(now),
		Playback:       s.State.Playback.Current().String(),
		TicksPerSecond: s.State.TicksPerSecond,
		FastForward:    s.State.FastForward,
		Stats:          s.liveStats(),
	}
}
