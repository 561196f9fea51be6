package gardener

import (
	"fmt"
	"sort"
)

// Actions.
const (
	ActionNone = "none"
	ActionFeed = "feed"
)

// DefaultMaxDrops caps the food dropped in one cycle.
const DefaultMaxDrops = 8

// Decision is the caretaker's plan for one cycle.
type Decision struct {
	Action    string
	Rationale string
	Commands  []Command
}

// Decide picks zero or more food drops. Food lands on the cell ahead of the
// hungriest ants so they can forage it without searching.
//
// CRITICAL feeds up to maxDrops ants. WARNING feeds half as many, and skips
// a cycle after feeding to give foragers time. Everything else is left alone.
func Decide(snap *ColonySnapshot, health *ColonyHealth, mem *CycleMemory, maxDrops int) *Decision {
	if maxDrops <= 0 {
		maxDrops = DefaultMaxDrops
	}

	switch {
	case health.CatchingUp:
		return &Decision{Action: ActionNone, Rationale: "colony is catching up"}
	case health.CrisisLevel == LevelCritical:
	case health.CrisisLevel == LevelWarning:
		if last, ok := mem.Last(); ok && last.Action == ActionFeed {
			return &Decision{Action: ActionNone, Rationale: "fed last cycle, waiting for foragers"}
		}
		maxDrops = (maxDrops + 1) / 2
	default:
		return &Decision{Action: ActionNone, Rationale: fmt.Sprintf("colony is %s", health.CrisisLevel)}
	}

	cmds := dropsFor(snap.Ants, maxDrops)
	if len(cmds) == 0 {
		return &Decision{Action: ActionNone, Rationale: "no hungry ant can be reached"}
	}
	return &Decision{
		Action:    ActionFeed,
		Rationale: fmt.Sprintf("%s: %d of %d ants hungry", health.CrisisLevel, health.Hungry, health.Alive),
		Commands:  cmds,
	}
}

// dropsFor targets Hungry-or-worse ants without food, hungriest first.
func dropsFor(ants []AntInfo, limit int) []Command {
	var hungry []AntInfo
	for _, a := range ants {
		if a.Carrying == "Food" || a.HungerMax <= 0 {
			continue
		}
		switch a.Tier {
		case "Hungry", "Starving":
			hungry = append(hungry, a)
		}
	}
	sort.SliceStable(hungry, func(i, j int) bool {
		return hungry[i].Hunger/hungry[i].HungerMax > hungry[j].Hunger/hungry[j].HungerMax
	})

	seen := make(map[Position]bool)
	var cmds []Command
	for _, a := range hungry {
		if len(cmds) == limit {
			break
		}
		p := a.Ahead
		if p.X < 0 || p.Y < 0 || seen[p] {
			continue
		}
		seen[p] = true
		cmds = append(cmds, Command{Kind: "spawn_food", X: p.X, Y: p.Y})
	}
	return cmds
}
