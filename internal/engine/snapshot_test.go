package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/world"
)

func grownColony(t *testing.T) (*Simulation, Config) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Seed = 21
	cfg.InitialWorkers = 6
	cfg.HungerMaxSeconds = 60
	cfg.Gen = world.SmallTestConfig()
	s := NewSimulation(cfg, testEpoch)
	s.State.Playback.Force(Playing)
	for i := 0; i < 300; i++ {
		s.Step(testEpoch)
	}
	return s, cfg
}

func TestSnapshotRestoreIsExact(t *testing.T) {
	s, cfg := grownColony(t)
	s.Ants[1].Kill()

	food, ok := s.World.Spawn(world.ElementFood, world.Position{X: 0, Y: 0})
	require.True(t, ok)
	_, ok = s.World.Lift(food.ID)
	require.True(t, ok)
	s.Ants[0].Inventory = agents.Inventory{Element: food.ID, Kind: world.ElementFood}

	snap := s.Snapshot()
	restored, err := RestoreSimulation(cfg, snap)
	require.NoError(t, err)

	assert.Equal(t, snap, restored.Snapshot())
	assert.Equal(t, Stopped, restored.State.Playback.Current())
	assert.Equal(t, s.CurrentTick(), restored.CurrentTick())
	assert.Nil(t, restored.Ants[1].Initiative)
	assert.Equal(t, s.Spawner.NextID(), restored.Spawner.NextID())
}

func TestSnapshotSurvivesJSON(t *testing.T) {
	s, cfg := grownColony(t)
	snap := s.Snapshot()

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded WorldSnapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := RestoreSimulation(cfg, decoded)
	require.NoError(t, err)
	assert.Equal(t, snap, restored.Snapshot())
}

func TestRestoreRejectsBrokenSnapshots(t *testing.T) {
	s, cfg := grownColony(t)

	missing := s.Snapshot()
	missing.Ants[0].Inventory = agents.Inventory{Element: 9999, Kind: world.ElementFood}
	_, err := RestoreSimulation(cfg, missing)
	assert.Error(t, err)

	dup := s.Snapshot()
	dup.Ants[1].ID = dup.Ants[0].ID
	_, err = RestoreSimulation(cfg, dup)
	assert.Error(t, err)

	empty := s.Snapshot()
	empty.Width = 0
	_, err = RestoreSimulation(cfg, empty)
	assert.Error(t, err)
}

func TestStatusIsReadOnly(t *testing.T) {
	s, _ := grownColony(t)
	before := s.Stats

	st := s.Status(testEpoch)

	assert.Equal(t, before, s.Stats)
	assert.Equal(t, s.CurrentTick(), st.Tick)
	assert.Equal(t, "playing", st.Playback)
	assert.Equal(t, len(s.Ants), st.Stats.Alive+st.Stats.Dead)
}

func TestTickDayResetsDailyCounters(t *testing.T) {
	s, _ := grownColony(t)
	s.Stats.Foraged, s.Stats.Eaten = 3, 2

	s.TickDay(s.CurrentTick())

	assert.Zero(t, s.Stats.Foraged)
	assert.Zero(t, s.Stats.Eaten)
	assert.Equal(t, len(s.Ants), s.Stats.Alive+s.Stats.Dead)
}

func TestEventLog(t *testing.T) {
	l := NewEventLog()
	id, ch := l.Subscribe()

	l.Emit(Event{Tick: 1, Category: "command", Description: "first"})
	got := <-ch
	assert.Equal(t, "first", got.Description)

	for i := 2; i <= maxEvents+500; i++ {
		l.Emit(Event{Tick: uint64(i)})
	}
	assert.Equal(t, maxEvents, l.Len())
	recent := l.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(maxEvents+499), recent[0].Tick)
	assert.Equal(t, uint64(maxEvents+500), recent[1].Tick)

	l.Unsubscribe(id)
	for range ch {
	}
	_, open := <-ch
	assert.False(t, open)
}
