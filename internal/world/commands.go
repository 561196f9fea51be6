// Deferred grid mutations. Systems queue commands while scanning and the
// scheduler applies them afterwards, so no system mutates the grid mid-scan.
// Every command re-checks its target at apply time.
package world

import "log/slog"

// Command is a single queued grid mutation.
type Command interface {
	Apply(w *World) bool
}

// Commands buffers grid mutations for later application.
type Commands struct {
	queue []Command
}

// Len returns the number of queued commands.
func (c *Commands) Len() int { return len(c.queue) }

// Push queues an arbitrary command.
func (c *Commands) Push(cmd Command) {
	c.queue = append(c.queue, cmd)
}

// Dig queues lifting the target element out of its cell. carry runs only if
// the cell still holds the target when the command is applied.
func (c *Commands) Dig(p Position, target ElementID, carry func(*Element)) {
	c.Push(DigCommand{Position: p, Target: target, Carry: carry})
}

// Replace queues swapping the target element at p for a new kind.
// Replacing with ElementAir removes the target.
func (c *Commands) Replace(p Position, target ElementID, kind ElementKind) {
	c.Push(ReplaceCommand{Position: p, Target: target, Kind: kind})
}

// Despawn queues removing the target element from its cell.
func (c *Commands) Despawn(p Position, target ElementID) {
	c.Push(ReplaceCommand{Position: p, Target: target, Kind: ElementAir})
}

// Spawn queues placing a new element into an empty cell.
func (c *Commands) Spawn(p Position, kind ElementKind) {
	c.Push(SpawnCommand{Position: p, Kind: kind})
}

// Apply runs every queued command in order and empties the queue.
// It returns how many commands took effect.
func (c *Commands) Apply(w *World) int {
	applied := 0
	for _, cmd := range c.queue {
		if cmd.Apply(w) {
			applied++
		}
	}
	c.queue = c.queue[:0]
	return applied
}

// DigCommand lifts an element so an ant can carry it.
type DigCommand struct {
	Position Position
	Target   ElementID
	Carry    func(*Element)
}

func (d DigCommand) Apply(w *World) bool {
	cur, ok := w.Grid.Get(d.Position)
	if !ok || cur != d.Target {
		slog.Info("dig target moved", "position", d.Position, "expected", d.Target, "found", cur)
		return false
	}
	e, ok := w.Lift(d.Target)
	if !ok {
		return false
	}
	if d.Carry != nil {
		d.Carry(e)
	}
	return true
}

// ReplaceCommand swaps one element for another kind in place.
type ReplaceCommand struct {
	Position Position
	Target   ElementID
	Kind     ElementKind
}

func (r ReplaceCommand) Apply(w *World) bool {
	cur, ok := w.Grid.Get(r.Position)
	if !ok {
		slog.Info("no element to replace", "position", r.Position)
		return false
	}
	if cur != r.Target {
		slog.Info("replace target mismatch", "position", r.Position, "expected", r.Target, "found", cur)
		return false
	}
	w.Remove(cur)
	if r.Kind == ElementAir {
		return true
	}
	_, ok = w.Spawn(r.Kind, r.Position)
	return ok
}

// SpawnCommand places a new element into an empty cell.
type SpawnCommand struct {
	Position Position
	Kind     ElementKind
}

func (s SpawnCommand) Apply(w *World) bool {
	if cur, occupied := w.Grid.Get(s.Position); occupied {
		slog.Info("cell already occupied", "position", s.Position, "element", cur)
		return false
	}
	_, ok := w.Spawn(s.Kind, s.Position)
	return ok
}
