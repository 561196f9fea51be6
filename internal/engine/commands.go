// External commands translate sandbox pointer actions into grid and colony
// mutations. They are queued from any goroutine and drained at the start of
// the next fixed step.
package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/world"
)

// CommandKind names an external command.
type CommandKind string

const (
	CmdSpawnFood        CommandKind = "spawn_food"
	CmdSpawnSand        CommandKind = "spawn_sand"
	CmdSpawnDirt        CommandKind = "spawn_dirt"
	CmdDespawnElement   CommandKind = "despawn_element"
	CmdSpawnWorkerAnt   CommandKind = "spawn_worker_ant"
	CmdKillAnt          CommandKind = "kill_ant"
	CmdDespawnWorkerAnt CommandKind = "despawn_worker_ant"
)

var commandKinds = []CommandKind{
	CmdSpawnFood, CmdSpawnSand, CmdSpawnDirt, CmdDespawnElement,
	CmdSpawnWorkerAnt, CmdKillAnt, CmdDespawnWorkerAnt,
}

// ParseCommandKind validates a command name.
func ParseCommandKind(s string) (CommandKind, error) {
	k := CommandKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range commandKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// ExternalCommand targets one grid cell.
type ExternalCommand struct {
	Kind     CommandKind    `json:"kind"`
	Position world.Position `json:"position"`
}

// Enqueue queues a command for the next fixed step. Safe for concurrent use.
func (s *Simulation) Enqueue(cmd ExternalCommand) error {
	k, err := ParseCommandKind(string(cmd.Kind))
	if err != nil {
		return err
	}
	cmd.Kind = k
	s.cmdMu.Lock()
	s.commands = append(s.commands, cmd)
	s.cmdMu.Unlock()
	return nil
}

// PendingCommands returns the number of queued commands.
func (s *Simulation) PendingCommands() int {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	return len(s.commands)
}

func (s *Simulation) applyExternalCommands() {
	s.cmdMu.Lock()
	cmds := s.commands
	s.commands = nil
	s.cmdMu.Unlock()

	if len(cmds) == 0 {
		return
	}
	for _, cmd := range cmds {
		s.applyExternalCommand(cmd)
	}
	s.grid.Apply(s.World)
}

func (s *Simulation) applyExternalCommand(cmd ExternalCommand) {
	p := cmd.Position
	switch cmd.Kind {
	case CmdSpawnFood, CmdSpawnSand, CmdSpawnDirt:
		if !s.World.IsEmpty(p) {
			slog.Debug("spawn target not empty", "command", cmd.Kind, "position", p)
			return
		}
		s.grid.Spawn(p, spawnKind(cmd.Kind))
		s.EmitEvent("command", "%s at %s", cmd.Kind, p)

	case CmdDespawnElement:
		e, ok := s.World.ElementAt(p)
		if !ok {
			return
		}
		s.grid.Despawn(p, e.ID)
		s.EmitEvent("command", "despawned %s at %s", world.ElementName(e.Kind), p)

	case CmdSpawnWorkerAnt:
		if !s.World.IsEmpty(p) {
			slog.Debug("spawn target not empty", "command", cmd.Kind, "position", p)
			return
		}
		a := s.Spawner.SpawnWorker(p, s.CurrentTick())
		s.addAnt(a)
		s.EmitEvent("command", "%s hatched at %s", a.Name, p)

	case CmdKillAnt:
		a := s.antAt(p, func(a *agents.Ant) bool { return a.Alive() })
		if a == nil {
			return
		}
		a.Kill()
		s.Events.Emit(Event{
			Tick:        s.CurrentTick(),
			Category:    "death",
			Description: a.Name + " was killed",
			Meta:        map[string]any{"ant_id": a.ID, "x": p.X, "y": p.Y},
		})

	case CmdDespawnWorkerAnt:
		a := s.antAt(p, func(a *agents.Ant) bool { return a.Role == agents.RoleWorker })
		if a == nil {
			return
		}
		if !a.Inventory.Empty() {
			s.World.Remove(a.Inventory.Element)
		}
		s.removeAnt(a.ID)
		s.EmitEvent("command", "%s removed from %s", a.Name, p)
	}
}

// antAt returns the first ant, in creation order, at p matching keep.
func (s *Simulation) antAt(p world.Position, keep func(*agents.Ant) bool) *agents.Ant {
	for _, a := range s.Ants {
		if a.Position == p && keep(a) {
			return a
		}
	}
	return nil
}

func spawnKind(k CommandKind) world.ElementKind {
	switch k {
	case CmdSpawnSand:
		return world.ElementSand
	case CmdSpawnDirt:
		return world.ElementDirt
	}
	return world.ElementFood
}
