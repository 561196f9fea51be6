// Regurgitation: well-fed ants share food with hungry neighbours they are
// face to face with or standing on top of.
package engine

import (
	"math"

	"github.com/talgya/mini-colony/internal/agents"
)

// RegurgitationFraction caps a donation at this share of the donor's max.
const RegurgitationFraction = 0.20

// Transfer is a proposed donation between two ants, referenced by their
// index in Simulation.Ants for the current tick.
type Transfer struct {
	To     int // Candidate
	From   int // Donor
	Amount float64
}

// regurgitationSystem pairs candidates with donors against a stable view of
// the colony, then commits the pairs in order. A pair is dropped whole if
// either ant already spent its initiative on an earlier pair this tick.
func (s *Simulation) regurgitationSystem() {
	for _, t := range s.proposeTransfers() {
		s.applyTransfer(t)
	}
}

// proposeTransfers reads but never mutates ant state.
func (s *Simulation) proposeTransfers() []Transfer {
	var transfers []Transfer
	for i, cand := range s.Ants {
		if !s.isCandidate(cand) {
			continue
		}
		j, ok := s.findDonor(i)
		if !ok {
			continue
		}
		donor := s.Ants[j]
		if !s.mayReceive(cand, donor) {
			continue
		}
		amount := math.Min(donor.Hunger.Max()*RegurgitationFraction, donor.Hunger.Value())
		// Keep the pair's total unchanged; the candidate cannot hold more than max.
		amount = math.Min(amount, cand.Hunger.Headroom())
		if amount <= 0 {
			continue
		}
		transfers = append(transfers, Transfer{To: i, From: j, Amount: amount})
	}
	return transfers
}

func (s *Simulation) isCandidate(a *agents.Ant) bool {
	return a.Alive() &&
		a.CanAct() &&
		s.Tiers.Of(a.Hunger).AtLeast(agents.TierPeckish) &&
		a.Inventory.Empty()
}

// findDonor returns the first ant, in creation order, that can act with
// free mandibles and is either directly ahead of the candidate facing back,
// or a different ant on the candidate's cell.
func (s *Simulation) findDonor(i int) (int, bool) {
	cand := s.Ants[i]
	ahead := cand.Ahead()
	for j, other := range s.Ants {
		if j == i || !other.Alive() || !other.CanAct() || !other.Inventory.Empty() {
			continue
		}
		if other.Position == ahead && other.Ahead() == cand.Position {
			return j, true
		}
		if other.Position == cand.Position {
			return j, true
		}
	}
	return 0, false
}

// mayReceive keeps donors productive: a queen takes from anyone, a starving
// ant takes from anyone not yet hungry, and a hungry ant only from a full one.
func (s *Simulation) mayReceive(cand, donor *agents.Ant) bool {
	ct := s.Tiers.Of(cand.Hunger)
	dt := s.Tiers.Of(donor.Hunger)
	switch {
	case cand.Role == agents.RoleQueen:
		return true
	case ct.AtLeast(agents.TierStarving):
		return !dt.AtLeast(agents.TierHungry)
	case ct.AtLeast(agents.TierHungry):
		return dt == agents.TierFull
	}
	return false
}

// applyTransfer re-checks both parties before committing.
func (s *Simulation) applyTransfer(t Transfer) bool {
	if t.To < 0 || t.To >= len(s.Ants) || t.From < 0 || t.From >= len(s.Ants) {
		return false
	}
	cand, donor := s.Ants[t.To], s.Ants[t.From]
	if !cand.CanAct() || !donor.CanAct() {
		return false
	}

	donor.Hunger.Reduce(t.Amount)
	cand.Hunger.Add(t.Amount)
	cand.Initiative.Consume()
	donor.Initiative.Consume()

	s.Stats.Regurgitated++
	s.Events.Emit(Event{
		Tick:        s.CurrentTick(),
		Category:    "regurgitate",
		Description: donor.Name + " fed " + cand.Name,
		Meta:        map[string]any{"from": donor.ID, "to": cand.ID, "amount": t.Amount},
	})
	// A donation can fill the candidate to max after the hunger pass ran.
	s.killIfStarved(cand)
	return true
}
