package gardener

// Crisis levels, most severe first.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
	LevelWatch    = "WATCH"
	LevelHealthy  = "HEALTHY"
)

// ColonyHealth holds derived diagnostic signals computed from a snapshot.
type ColonyHealth struct {
	Alive       int
	Hungry      int     // Hungry or worse
	Starving    int     // Starving or Starved
	HungryShare float64 // Hungry / Alive
	FoodPerAnt  float64 // Placed plus carried food per living ant
	AvgHunger   float64
	CrisisLevel string
	CatchingUp  bool // Story is fast-forwarding; hold off
}

// Triage computes a ColonyHealth from the snapshot's data.
func Triage(snap *ColonySnapshot) *ColonyHealth {
	st := snap.Status.Stats
	h := &ColonyHealth{
		Alive:      len(snap.Ants),
		AvgHunger:  st.AvgHunger,
		CatchingUp: snap.Status.Playback == "fast_forwarding",
	}

	for _, a := range snap.Ants {
		switch a.Tier {
		case "Starving", "Starved":
			h.Starving++
			h.Hungry++
		case "Hungry":
			h.Hungry++
		}
	}

	if h.Alive == 0 {
		h.CrisisLevel = LevelHealthy // Nothing left to tend
		return h
	}
	h.HungryShare = float64(h.Hungry) / float64(h.Alive)
	h.FoodPerAnt = float64(st.Food+st.CarryingFood) / float64(h.Alive)

	switch {
	case h.Starving > 0 && h.FoodPerAnt < 1:
		h.CrisisLevel = LevelCritical
	case h.HungryShare > 0.5, h.FoodPerAnt < 0.25:
		h.CrisisLevel = LevelWarning
	case h.Hungry > 0, h.FoodPerAnt < 1:
		h.CrisisLevel = LevelWatch
	default:
		h.CrisisLevel = LevelHealthy
	}
	return h
}
