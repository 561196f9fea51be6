package engine

// wanderSystem moves ants that still hold their movement initiative. An ant
// steps into the empty cell ahead; if that cell is solid or off the grid it
// turns around instead. Now and then an ant turns around unprompted so the
// colony spreads out. Only the cell ahead is ever considered.
func (s *Simulation) wanderSystem() {
	for _, a := range s.Ants {
		if !a.Alive() || !a.Initiative.CanMove() {
			continue
		}

		if s.cfg.TurnChance > 0 && s.rng.Float64() < s.cfg.TurnChance {
			a.Orientation = a.Orientation.TurnAround()
			a.Initiative.ConsumeMovement()
			continue
		}

		ahead := a.Ahead()
		if s.World.IsEmpty(ahead) {
			a.Position = ahead
		} else {
			a.Orientation = a.Orientation.TurnAround()
		}
		a.Initiative.ConsumeMovement()
	}
}
