package gardener

import (
	"fmt"
	"log/slog"
)

// Caretaker runs observe, decide and act cycles against one colony.
type Caretaker struct {
	Observer *Observer
	Actor    *Actor
	Memory   *CycleMemory
	MaxDrops int
}

// RunCycle executes one observe → decide → act cycle and records it.
func (c *Caretaker) RunCycle() (*Decision, error) {
	snap, err := c.Observer.Observe()
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	health := Triage(snap)
	slog.Info("observation complete",
		"tick", snap.Status.Tick,
		"clock", snap.Status.Clock,
		"alive", health.Alive,
		"hungry", health.Hungry,
		"food_per_ant", fmt.Sprintf("%.2f", health.FoodPerAnt),
		"crisis", health.CrisisLevel,
	)

	decision := Decide(snap, health, c.Memory, c.MaxDrops)
	rec := CycleRecord{
		Tick:        snap.Status.Tick,
		Action:      decision.Action,
		HungryShare: health.HungryShare,
		FoodPerAnt:  health.FoodPerAnt,
		CrisisLevel: health.CrisisLevel,
		Rationale:   decision.Rationale,
	}

	var actErr error
	if decision.Action == ActionFeed {
		rec.Drops, actErr = c.Actor.Act(decision.Commands)
		slog.Info("food dropped", "requested", len(decision.Commands), "accepted", rec.Drops)
	} else {
		slog.Info("gardener cycle complete, no intervention", "rationale", decision.Rationale)
	}

	c.Memory.Record(rec)
	c.Memory.Save()
	if actErr != nil {
		return decision, fmt.Errorf("act: %w", actErr)
	}
	return decision, nil
}
