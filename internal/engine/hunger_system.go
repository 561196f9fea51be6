// Hunger: starvation, foraging the food directly ahead, and eating carried
// food.
package engine

import (
	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/world"
)

// hungerSystem advances every living ant's hunger. An ant that reaches max
// dies on the spot and loses its initiative for good. A peckish ant that can
// still act digs food directly ahead if its mandibles are free, or eats the
// food it carries.
func (s *Simulation) hungerSystem() {
	for _, a := range s.Ants {
		if a.Dead {
			continue
		}
		a.Hunger.Tick()

		if s.killIfStarved(a) {
			continue
		}

		if !s.Tiers.Of(a.Hunger).AtLeast(agents.TierPeckish) || !a.CanAct() {
			continue
		}

		switch {
		case a.Inventory.Empty():
			s.forage(a)
		case a.Inventory.Carrying(world.ElementFood):
			s.eat(a)
		}
	}
}

// killIfStarved kills a living ant whose hunger has reached max and reports
// whether it did.
func (s *Simulation) killIfStarved(a *agents.Ant) bool {
	if a.Dead || !a.Hunger.IsStarved() {
		return false
	}
	a.Kill()
	s.Stats.Starved++
	s.Events.Emit(Event{
		Tick:        s.CurrentTick(),
		Category:    "death",
		Description: a.Name + " starved",
		Meta:        map[string]any{"ant_id": a.ID, "x": a.Position.X, "y": a.Position.Y},
	})
	return true
}

func (s *Simulation) forage(a *agents.Ant) {
	ahead := a.Ahead()
	food, ok := s.World.ElementAt(ahead)
	if !ok || food.Kind != world.ElementFood {
		return
	}

	ant := a
	s.grid.Dig(ahead, food.ID, func(e *world.Element) {
		ant.Inventory = agents.Inventory{Element: e.ID, Kind: e.Kind}
	})
	a.Initiative.Consume()
	s.Stats.Foraged++
	s.EmitEvent("forage", "%s dug food at %s", a.Name, ahead)
}

func (s *Simulation) eat(a *agents.Ant) {
	s.World.Remove(a.Inventory.Element)
	a.Inventory = agents.Inventory{}
	a.Hunger.Eat()
	a.Initiative.Consume()
	s.Stats.Eaten++
	s.EmitEvent("eat", "%s ate", a.Name)
}
