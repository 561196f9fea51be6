package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/world"
)

func TestParseCommandKind(t *testing.T) {
	k, err := ParseCommandKind(" Spawn_Food ")
	require.NoError(t, err)
	assert.Equal(t, CmdSpawnFood, k)

	_, err = ParseCommandKind("spawn_dragon")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestEnqueueRejectsUnknown(t *testing.T) {
	s := newTestSim(t)
	assert.ErrorIs(t, s.Enqueue(ExternalCommand{Kind: "flood"}), ErrUnknownCommand)
	assert.Zero(t, s.PendingCommands())

	require.NoError(t, s.Enqueue(ExternalCommand{Kind: "SPAWN_SAND", Position: world.Position{X: 1, Y: 1}}))
	assert.Equal(t, 1, s.PendingCommands())
	s.applyExternalCommands()
	assert.Zero(t, s.PendingCommands())
	assert.True(t, s.World.IsKind(world.Position{X: 1, Y: 1}, world.ElementSand))
}

func TestSpawnCommandsKeepOneOccupant(t *testing.T) {
	s := newTestSim(t)
	p := world.Position{X: 3, Y: 4}
	require.NoError(t, s.Enqueue(ExternalCommand{Kind: CmdSpawnDirt, Position: p}))
	require.NoError(t, s.Enqueue(ExternalCommand{Kind: CmdSpawnFood, Position: p}))
	require.NoError(t, s.Enqueue(ExternalCommand{Kind: CmdSpawnFood, Position: world.Position{X: 50, Y: 50}}))

	s.applyExternalCommands()

	assert.True(t, s.World.IsKind(p, world.ElementDirt))
	assert.Equal(t, 1, s.World.ElementCount())
}

func TestDespawnElementCommand(t *testing.T) {
	s := newTestSim(t)
	p := world.Position{X: 2, Y: 5}
	_, ok := s.World.Spawn(world.ElementSand, p)
	require.True(t, ok)

	require.NoError(t, s.Enqueue(ExternalCommand{Kind: CmdDespawnElement, Position: p}))
	require.NoError(t, s.Enqueue(ExternalCommand{Kind: CmdDespawnElement, Position: world.Position{X: 0, Y: 0}}))
	s.applyExternalCommands()

	assert.True(t, s.World.IsEmpty(p))
	assert.Zero(t, s.World.ElementCount())
}

func TestAntCommands(t *testing.T) {
	s := newTestSim(t)
	p := world.Position{X: 4, Y: 2}

	require.NoError(t, s.Enqueue(ExternalCommand{Kind: CmdSpawnWorkerAnt, Position: p}))
	s.applyExternalCommands()
	require.Len(t, s.Ants, 1)
	worker := s.Ants[0]
	assert.Equal(t, agents.RoleWorker, worker.Role)
	assert.Equal(t, p, worker.Position)
	assert.Same(t, worker, s.AntIndex[worker.ID])

	require.NoError(t, s.Enqueue(ExternalCommand{Kind: CmdKillAnt, Position: p}))
	s.applyExternalCommands()
	assert.True(t, worker.Dead)
	assert.Nil(t, worker.Initiative)

	food, ok := s.World.Spawn(world.ElementFood, world.Position{X: 0, Y: 0})
	require.True(t, ok)
	_, ok = s.World.Lift(food.ID)
	require.True(t, ok)
	worker.Inventory = agents.Inventory{Element: food.ID, Kind: world.ElementFood}

	require.NoError(t, s.Enqueue(ExternalCommand{Kind: CmdDespawnWorkerAnt, Position: p}))
	s.applyExternalCommands()
	assert.Empty(t, s.Ants)
	assert.Empty(t, s.AntIndex)
	_, ok = s.World.Element(food.ID)
	assert.False(t, ok, "carried food goes with the ant")
}

func TestDespawnWorkerLeavesQueen(t *testing.T) {
	s := newTestSim(t)
	p := world.Position{X: 4, Y: 2}
	queen := placeAnt(s, agents.RoleQueen, p, agents.FacingRight, 0)

	require.NoError(t, s.Enqueue(ExternalCommand{Kind: CmdDespawnWorkerAnt, Position: p}))
	s.applyExternalCommands()

	require.Len(t, s.Ants, 1)
	assert.Same(t, queen, s.Ants[0])
}

func TestSpawnWorkerNeedsEmptyCell(t *testing.T) {
	s := newTestSim(t)
	p := world.Position{X: 4, Y: 4}
	_, ok := s.World.Spawn(world.ElementDirt, p)
	require.True(t, ok)

	require.NoError(t, s.Enqueue(ExternalCommand{Kind: CmdSpawnWorkerAnt, Position: p}))
	s.applyExternalCommands()

	assert.Empty(t, s.Ants)
}
